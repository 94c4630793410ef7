package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"swing-signals/internal/engine"
	"swing-signals/internal/engine/engineobs"
	"swing-signals/internal/eod"
	"swing-signals/internal/eod/eodobs"
	"swing-signals/internal/finviz"
	"swing-signals/internal/finviz/finvizobs"
	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/marketdata"
	"swing-signals/internal/marketdata/marketdataobs"
	"swing-signals/internal/metrics"
	"swing-signals/internal/runlog"
	"swing-signals/internal/store"
	"swing-signals/internal/strategy"
	"swing-signals/internal/trace"
)

const defaultConfigPath = "configs/settings.yaml"

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig reads PIPELINE_CONFIG, or the default path. Only a missing
// default file falls back to built-in settings.
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("PIPELINE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := store.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		logger.Warn(ctx, "No config file found, using built-in defaults", "path", path)
		return store.Default(), nil
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	logger.Info(ctx, "Config loaded", "path", path, "data_source", cfg.DataSource, "schedule", cfg.Schedule)
	return cfg, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// initializeWatchlists builds the Finviz scraper with observability
func initializeWatchlists(cfg *store.Config) interfaces.WatchlistSource {
	scraper := finviz.NewScraper(finviz.Options{
		UserAgent: cfg.Finviz.UserAgent,
		Throttle:  seconds(cfg.Finviz.ThrottleSeconds),
		MaxPages:  cfg.Finviz.MaxPages,
		Timeout:   time.Duration(cfg.Finviz.TimeoutSeconds) * time.Second,
	})
	return finvizobs.Wrap(scraper)
}

// initializePrices builds the configured price source and the snapshot
// fetcher around it. The returned closer flushes the audit log.
func initializePrices(cfg *store.Config, rec *metrics.Recorder) (interfaces.PriceFetcher, func(), error) {
	tally := marketdata.NewTally()
	observe := func(source, symbol string, err error) {
		tally.Observe(source, symbol, err)
		if err != nil {
			rec.RecordFetchFailure(source)
		}
	}

	src, err := marketdata.NewSource(cfg.DataSource, marketdata.SourceConfig{
		StooqURL: cfg.Prices.StooqURL,
		YahooURL: cfg.Prices.YahooURL,
		Throttle: seconds(cfg.Prices.ThrottleSeconds),
		Timeout:  time.Duration(cfg.Prices.TimeoutSeconds) * time.Second,
		Observer: observe,
	})
	if err != nil {
		return nil, nil, err
	}

	audit, err := marketdata.NewAuditLog(cfg.FetchLogFile())
	if err != nil {
		return nil, nil, fmt.Errorf("open fetch log: %w", err)
	}

	fetcher := marketdata.NewFetcher(marketdataobs.Wrap(src), marketdata.FetcherOptions{
		SnapshotPath: cfg.PricesFile(),
		LookbackDays: cfg.LookbackDays,
		Audit:        audit,
		Tally:        tally,
		Now:          func() time.Time { return time.Now().In(cfg.Location()) },
	})
	return fetcher, func() { _ = audit.Sync() }, nil
}

// initializeWriter builds the CSV writer with observability
func initializeWriter(cfg *store.Config) interfaces.SignalWriter {
	w := eod.NewWriter(eod.Options{
		OutputsDir:         cfg.Paths.OutputsDir,
		DocsDir:            cfg.Paths.DocsDir,
		HistoryDays:        cfg.SignalHistoryDays,
		FeaturesWindowDays: cfg.FeaturesWindowDays,
	})
	return eodobs.Wrap(w)
}

// initializePipeline wires every stage into the engine
func initializePipeline(cfg *store.Config) (interfaces.Pipeline, func(), error) {
	rec := metrics.New()

	prices, closePrices, err := initializePrices(cfg, rec)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(engine.Options{
		Config:     cfg,
		Registry:   strategy.DefaultRegistry(),
		Watchlists: initializeWatchlists(cfg),
		Prices:     prices,
		Writer:     initializeWriter(cfg),
		Metrics:    rec,
		Journal:    runlog.New(cfg.RunLogDir(), cfg.Location()),
		Now:        func() time.Time { return time.Now().In(cfg.Location()) },
	})
	if err != nil {
		closePrices()
		return nil, nil, err
	}
	return engineobs.Wrap(eng), closePrices, nil
}
