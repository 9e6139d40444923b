// Package cli parses the command lines for the three LogWatch binaries:
// the server (logwatchd), the control client (logwatch-ctl) and the
// interactive viewer (logwatch-view).
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	appErrors "logwatch/internal/app/errors"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

// processFlags collects repeated `-p name=command` flags into ad hoc
// endpoint configs, for launching one-off actions without a YAML file.
type processFlags struct {
	values []string
}

func (p *processFlags) String() string { return strings.Join(p.values, ",") }
func (p *processFlags) Type() string   { return "name=command" }

func (p *processFlags) Set(raw string) error {
	if !strings.Contains(raw, "=") {
		return fmt.Errorf("invalid --process value %q, want name=command", raw)
	}

	p.values = append(p.values, raw)

	return nil
}

func (p *processFlags) endpoints() ([]config.EndpointConfig, error) {
	endpoints := make([]config.EndpointConfig, 0, len(p.values))

	for i, raw := range p.values {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --process value %q, want name=command", raw)
		}

		endpoints = append(endpoints, config.EndpointConfig{
			Register: fmt.Sprintf("%d", i+1),
			Name:      parts[0],
			Type:      config.KindSubprocess,
			Command:   parts[1],
		})
	}

	return endpoints, nil
}

// ServerOptions is the result of parsing the logwatchd command line.
type ServerOptions struct {
	Config *config.Config
}

// ParseServerArgs parses args (typically os.Args[1:]) for logwatchd: an
// optional positional YAML config path, repeatable -p/--process for ad hoc
// endpoints, -P/--port, -a/--stay-active and -v/-vv verbosity.
func ParseServerArgs(args []string) (*ServerOptions, error) {
	var (
		procs       processFlags
		port        int
		stayActive  bool
		verbosity   int
		configPath  string
	)

	cmd := &cobra.Command{
		Use:           "logwatchd [config.yaml]",
		Short:         "Launch and multiplex the output of one or more actions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, cmdArgs []string) error {
			if len(cmdArgs) == 1 {
				configPath = cmdArgs[0]
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.VarP(&procs, "process", "p", "launch an ad hoc action as name=command (repeatable)")
	flags.IntVarP(&port, "port", "P", 0, "override the broadcast bus port")
	flags.BoolVarP(&stayActive, "stay-active", "a", false, "keep the server running after every action finishes")
	flags.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")

	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		return nil, err
	}

	var cfg *config.Config

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	adHoc, err := procs.endpoints()
	if err != nil {
		return nil, err
	}

	cfg.Endpoints = append(cfg.Endpoints, adHoc...)

	if port != 0 {
		cfg.Server.SocketPort = port
	}

	if stayActive {
		cfg.Server.StayActive = true
	}

	switch verbosity {
	case 1:
		cfg.Logging.Level = logger.DebugLevel
	case 2:
		cfg.Logging.Level = logger.TraceLevel
	}

	cfg.ApplyDefaults()

	if len(cfg.Endpoints) == 0 && len(cfg.Actions) == 0 {
		return nil, fmt.Errorf("%w: no endpoints or actions configured", appErrors.ErrConfigInvalid)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &ServerOptions{Config: cfg}, nil
}

var _ pflag.Value = (*processFlags)(nil)
