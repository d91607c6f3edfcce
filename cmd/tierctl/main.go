package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tierline/tierline/cmd/tierctl/cli"
	"github.com/tierline/tierline/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 2
	}
	logger := app.NewLoggerTo(cfg, os.Stderr)

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open document store", slog.String("driver", cfg.DocstoreDriver), slog.Any("error", err))
		return 1
	}
	defer closeStore()

	services, err := app.NewServices(cfg, store, nil, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		return 1
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	root := cli.NewRootCommand(cli.Deps{
		Levels:  services.Levels,
		Reports: services.Reports,
		Jobs:    jobsCLI,
		Format:  services.Format,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tierctl:", err)
		return 1
	}
	return 0
}
