package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swing-signals/internal/logger"
	"swing-signals/internal/scheduler"
)

func main() {
	if err := initializeSystem(); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(sctx)
	}()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return 1
	}
	if err := cfg.EnsureDirectories(); err != nil {
		logger.ErrorWithErr(ctx, "Failed to create output directories", err)
		return 1
	}

	pipeline, closeAll, err := initializePipeline(cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize pipeline", err)
		return 1
	}
	defer closeAll()

	if cfg.Schedule == "" || os.Getenv("PIPELINE_RUN_ONCE") == "true" {
		if _, err := pipeline.Run(ctx); err != nil {
			return 1
		}
		return 0
	}

	sched, err := scheduler.New(cfg.Schedule, cfg.Location(), pipeline)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to create scheduler", err)
		return 1
	}
	sched.Start(ctx)
	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down scheduler")
	sched.Stop()
	return 0
}
