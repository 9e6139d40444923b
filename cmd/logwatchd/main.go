// Command logwatchd launches and multiplexes the output of one or more
// actions, broadcasting their combined stream to any connected viewers.
package main

import (
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"logwatch/internal/app"
	"logwatch/internal/app/cli"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

func main() {
	opts, err := cli.ParseServerArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "logwatchd: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		fx.WithLogger(fxLogger(opts.Config)),
		fx.Supply(opts.Config),
		app.Module,
	).Run()
}

func fxLogger(cfg *config.Config) func() fxevent.Logger {
	return func() fxevent.Logger {
		if cfg.Logging.Level == logger.DebugLevel || cfg.Logging.Level == logger.TraceLevel {
			return &fxevent.ConsoleLogger{W: os.Stdout}
		}

		return fxevent.NopLogger
	}
}
