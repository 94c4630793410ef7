package marketdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/types"
)

// NewAuditLog opens the append-only fetch.log next to the price snapshot.
func NewAuditLog(path string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.CallerKey = ""
	cfg.EncoderConfig.StacktraceKey = ""
	cfg.Sampling = nil
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

type FetcherOptions struct {
	SnapshotPath string
	LookbackDays int
	Audit        *zap.Logger
	Tally        *Tally
	Now          func() time.Time
}

// Fetcher downloads the price window for a symbol list and keeps the
// snapshot file up to date.
type Fetcher struct {
	source interfaces.PriceSource
	opts   FetcherOptions
}

func NewFetcher(source interfaces.PriceSource, opts FetcherOptions) *Fetcher {
	if opts.Audit == nil {
		opts.Audit = zap.NewNop()
	}
	if opts.Tally == nil {
		opts.Tally = NewTally()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 200
	}
	return &Fetcher{source: source, opts: opts}
}

// Fetch returns the history of every requested symbol that has data, merged
// with the existing snapshot. It fails with types.ErrNoPriceData only when
// neither the download nor the snapshot produced anything.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string) (map[string]types.Series, error) {
	today := types.TruncateDay(f.opts.Now())
	start := today.AddDate(0, 0, -f.opts.LookbackDays)
	end := today.AddDate(0, 0, 1)
	audit := f.opts.Audit

	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols requested", types.ErrNoPriceData)
	}

	existing, err := LoadSnapshot(f.opts.SnapshotPath)
	if err != nil {
		logger.Warn(ctx, "Ignoring unreadable price snapshot", "path", f.opts.SnapshotPath, "error", err)
		existing = map[string]types.Series{}
	}

	f.opts.Tally.Reset()
	audit.Info("Starting fetch",
		zap.Int("tickers", len(symbols)),
		zap.Int("lookback_days", f.opts.LookbackDays),
		zap.String("source", f.source.Name()),
	)

	fresh, fetchErr := f.source.FetchHistory(ctx, symbols, start, end)
	if fetchErr != nil && !errors.Is(fetchErr, types.ErrNoPriceData) {
		audit.Error("Fetch aborted", zap.Error(fetchErr))
		return nil, fetchErr
	}
	if len(fresh) == 0 {
		audit.Warn("No fresh data; reusing existing snapshot", zap.Int("snapshot_tickers", len(existing)))
	}

	merged := Merge(existing, fresh, start)
	if len(fresh) > 0 {
		if err := WriteSnapshot(f.opts.SnapshotPath, merged); err != nil {
			audit.Error("Snapshot write failed", zap.Error(err))
			return nil, fmt.Errorf("write price snapshot: %w", err)
		}
	}

	out := make(map[string]types.Series, len(symbols))
	for _, s := range symbols {
		if series, ok := merged[s]; ok {
			out[s] = series
		}
	}

	fields := []zap.Field{zap.Int("symbols_with_data", len(out)), zap.Int("fresh", len(fresh))}
	for _, src := range []string{KindYahoo, KindStooq} {
		ok, failed := f.opts.Tally.Counts(src)
		fields = append(fields, zap.Int(src+"_success", ok), zap.Int(src+"_fail", failed))
	}
	audit.Info("Fetch complete", fields...)
	_ = audit.Sync()

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: all sources failed and no snapshot covers the request", types.ErrNoPriceData)
	}
	return out, nil
}
