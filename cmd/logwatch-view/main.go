// Command logwatch-view connects to a running logwatchd server and renders
// its combined action stream in an interactive terminal UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"logwatch/internal/app/cli"
	"logwatch/internal/app/viewer"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

func main() {
	opts, err := cli.ParseViewerArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-view: %v\n", err)
		os.Exit(1)
	}

	viewerOpts, err := resolveOptions(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-view: %v\n", err)
		os.Exit(1)
	}

	logCfg := config.DefaultConfig()
	if opts.Verbose {
		logCfg.Logging.Level = logger.DebugLevel
	}

	app, err := viewer.New(viewerOpts, logger.NewLoggerWithOutput(logCfg, os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-view: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-view: %v\n", err)
		os.Exit(1)
	}
}

func resolveOptions(opts *cli.ViewerOptions) (viewer.Options, error) {
	out := viewer.Options{
		Addr:                fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		LineFormat:          config.DefaultLineFormat,
		ContinuedLineFormat: config.DefaultContinuedLineFormat,
		MaxHeldLines:        config.DefaultMaxHeldLines,
	}

	if opts.ConfigPath == "" {
		return out, nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return out, err
	}

	view, ok := selectView(cfg.Views, opts.ViewName)
	if !ok {
		return out, nil
	}

	out.Addr = fmt.Sprintf("%s:%d", view.Host, view.ServerPort)
	out.MaxHeldLines = view.MaxHeldLines
	out.DefaultEndpoint = view.DefaultEndpoint
	out.Styles = view.Styles
	out.Filtered = view.Filtered
	out.Show = view.Show

	out.Commands = make(map[string]string, len(view.Commands))
	for _, c := range view.Commands {
		out.Commands[c.Register] = c.Command
	}

	if view.LineFormat != "" {
		out.LineFormat = view.LineFormat
	}

	if view.ContinuedLineFormat != "" {
		out.ContinuedLineFormat = view.ContinuedLineFormat
	}

	return out, nil
}

func selectView(views map[string]config.ViewConfig, name string) (config.ViewConfig, bool) {
	if name != "" {
		v, ok := views[name]
		return v, ok
	}

	if len(views) == 1 {
		for _, v := range views {
			return v, true
		}
	}

	return config.ViewConfig{}, false
}
