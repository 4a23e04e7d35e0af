package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/setup"
	"github.com/venlyx/sentinel/internal/worker/maintenance"
)

const (
	// SweeperLogDir specifies where sweeper log files are stored.
	SweeperLogDir = "logs/worker_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "sweeper",
		Usage: "Reclaim expired cooldown entries from storage",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Value:   maintenance.DefaultInterval,
				Usage:   "Time between sweep runs",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep and exit",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSweeper(ctx, c.Duration("interval"), c.Bool("once"))
		},
	}

	return app.Run(context.Background(), os.Args)
}

func runSweeper(ctx context.Context, interval time.Duration, once bool) error {
	app, err := setup.InitializeApp(SweeperLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	logger := setup.GetWorkerLogger(
		"sweeper",
		SweeperLogDir,
		app.Config.Common.Debug.LogLevel,
	)

	worker := maintenance.New(app, logger)
	if once {
		worker.RunOnce(ctx)
		return nil
	}

	// Sweep until interrupted.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	logger.Info("Sweeper started", zap.Duration("interval", interval))
	worker.Start(ctx, interval)

	return nil
}
