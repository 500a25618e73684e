package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ca-srg/copilot-exporter/infrastructure/di"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "copilot-exporter: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "copilot-exporter",
		Usage:     "Export GitHub Copilot usage of an organization as Prometheus metrics",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the JSON configuration file (default ~/.config/copilot-exporter/config.json)",
				EnvVars: []string{"COPILOT_EXPORTER_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load environment variables from these .env files",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:  "listen-address",
				Usage: "Address the HTTP server listens on (overrides configuration)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging in console format",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Poll once, print the published gauges and exit",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format of --once: text, json",
				Value:   "text",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	container, err := di.NewContainer(
		di.WithConfigPath(c.String("config")),
		di.WithDotEnv(c.StringSlice("env-file")...),
		di.WithListenAddress(c.String("listen-address")),
		di.WithDebugMode(c.Bool("debug")),
		di.WithOutput(c.App.Writer),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() { _ = container.Shutdown() }()

	if c.Bool("once") {
		return container.RunOnce(c.Context, c.String("output"))
	}
	return container.Run(c.Context)
}
