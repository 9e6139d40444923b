package cli

import (
	"github.com/spf13/cobra"

	"logwatch/internal/config"
)

// ControlOptions is the result of parsing the logwatch-ctl command line.
type ControlOptions struct {
	Host            string
	Port            int
	SetMarker       bool
	MarkerName      string
	SendStdin       bool
	StdinRegister   string
	StdinData       string
	StopAll         bool
}

// ParseControlArgs parses args for logwatch-ctl: --set-marker[=NAME],
// --send-stdin REGISTER,DATA and --stop-all. It does not check that only one
// of them is given.
func ParseControlArgs(args []string) (*ControlOptions, error) {
	opts := &ControlOptions{Host: config.DefaultSocketAddr, Port: config.DefaultSocketPort}

	var sendStdin []string

	cmd := &cobra.Command{
		Use:           "logwatch-ctl",
		Short:         "Send a control request to a running LogWatch server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if len(sendStdin) > 0 {
				opts.SendStdin = true
				opts.StdinRegister = sendStdin[0]

				if len(sendStdin) > 1 {
					opts.StdinData = sendStdin[1]
				}
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Host, "host", opts.Host, "server host")
	flags.IntVar(&opts.Port, "port", opts.Port, "server port")
	flags.BoolVar(&opts.StopAll, "stop-all", false, "stop every action and disconnect")

	flags.StringVar(&opts.MarkerName, "set-marker", "", "place a marker, auto-numbered if no name given")
	cmd.Flag("set-marker").NoOptDefVal = " "

	flags.StringSliceVar(&sendStdin, "send-stdin", nil, "REGISTER,DATA — inject data into one endpoint's stdin")

	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("set-marker") {
		opts.SetMarker = true

		if opts.MarkerName == " " {
			opts.MarkerName = ""
		}
	}

	return opts, nil
}
