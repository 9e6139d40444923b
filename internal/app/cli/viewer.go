package cli

import (
	"github.com/spf13/cobra"

	"logwatch/internal/config"
)

// ViewerOptions is the result of parsing the logwatch-view command line.
type ViewerOptions struct {
	Host       string
	Port       int
	ConfigPath string
	ViewName   string
	Verbose    bool
}

// ParseViewerArgs parses args for logwatch-view.
func ParseViewerArgs(args []string) (*ViewerOptions, error) {
	opts := &ViewerOptions{Host: config.DefaultSocketAddr, Port: config.DefaultSocketPort}

	cmd := &cobra.Command{
		Use:           "logwatch-view",
		Short:         "Connect to a LogWatch server and watch its action stream",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Host, "host", "h", opts.Host, "server host")
	flags.IntVarP(&opts.Port, "port", "p", opts.Port, "server port")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML file naming the view to use")
	flags.StringVarP(&opts.ViewName, "view", "n", "", "named view to load from the config file")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log diagnostics to stderr")

	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		return nil, err
	}

	return opts, nil
}
