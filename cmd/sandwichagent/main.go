package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"SandwichAgent/internal/app"
	"SandwichAgent/internal/config"
	"SandwichAgent/internal/logging"
	"SandwichAgent/internal/usecase"
)

func main() {
	cliApp := &cli.App{
		Name:  "sandwichagent",
		Usage: "forage content and assemble sandwich artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to YAML config",
				EnvVars: []string{"SANDWICH_AGENT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a single foraging session",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-sandwiches", Usage: "stop after N sandwiches"},
					&cli.DurationFlag{Name: "max-duration", Usage: "stop after this long"},
				},
				Action: runOnce,
			},
			{
				Name:   "watch",
				Usage:  "run sessions on the configured interval",
				Action: runRecurring,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runOnce(c *cli.Context) error {
	application, opts, err := build(c)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := application.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("\n--- Session Summary ---\n")
	fmt.Printf("Session ID: %s\n", summary.SessionID)
	fmt.Printf("Duration: %s\n", summary.EndedAt.Sub(summary.StartedAt).Round(time.Second))
	fmt.Printf("Sandwiches made: %d\n", summary.SandwichesMade)
	fmt.Printf("Foraging attempts: %d\n", summary.ForagingAttempts)
	return nil
}

func runRecurring(c *cli.Context) error {
	application, opts, err := build(c)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.RunRecurring(ctx, opts)
}

func build(c *cli.Context) (*app.Application, usecase.Options, error) {
	if path := c.String("config"); path != "" {
		os.Setenv("SANDWICH_AGENT_CONFIG", path)
	}

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, usecase.Options{}, err
	}

	opts := usecase.Options{
		MaxSandwiches: cfg.Session.MaxSandwiches,
		MaxDuration:   time.Duration(cfg.Session.MaxDuration),
	}
	if c.IsSet("max-sandwiches") {
		opts.MaxSandwiches = c.Int("max-sandwiches")
	}
	if c.IsSet("max-duration") {
		opts.MaxDuration = c.Duration("max-duration")
	}

	return application, opts, nil
}
