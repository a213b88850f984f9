package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vcal/internal/app"
	"vcal/internal/calendar"
	"vcal/internal/config"
	appLog "vcal/internal/log"
)

const version = "0.1.0"

type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "vcal",
		Short:         "Virtual calendars with conflict checking, timezone-aware copy and ICS import",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "./vcal.yaml", "Path to config file (created on first run)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newCalendarsCmd(flags),
		newEventsCmd(flags),
		newBusyCmd(flags),
		newExportCmd(flags),
		newCopyCmd(flags),
		newServeCmd(flags),
	)
	return root
}

// load reads the config, applies the log level and builds the registry.
func load(ctx context.Context, flags *rootFlags) (*config.Config, *app.Builder, *calendar.Registry, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	levelName := cfg.LogLevel
	if flags.logLevel != "" {
		levelName = flags.logLevel
	}
	level, ok := appLog.ParseLevel(levelName)
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown log level %q", levelName)
	}
	appLog.SetLevel(level)

	b := app.NewBuilder(cfg)
	reg, report, err := b.Build(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, e := range report.SourceErrors {
		appLog.Warn("source skipped", "err", e.Error())
	}
	return cfg, b, reg, nil
}

// pick returns the named calendar, or the active one when name is empty.
func pick(reg *calendar.Registry, name string) (*calendar.Calendar, error) {
	if name == "" {
		return reg.Active()
	}
	return reg.Get(name)
}
