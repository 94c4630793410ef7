// Package marketdata downloads daily OHLCV history and keeps the local
// price snapshot that every strategy reads from.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"swing-signals/internal/api"
	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/types"
)

const (
	KindAuto  = "auto"
	KindStooq = "stooq"
	KindYahoo = "yahoo"
)

// FetchObserver is told about every per-symbol download attempt.
type FetchObserver func(source, symbol string, err error)

type SourceConfig struct {
	StooqURL string
	YahooURL string
	Throttle time.Duration
	Timeout  time.Duration
	Observer FetchObserver
}

// NewSource builds the price source selected by kind.
func NewSource(kind string, cfg SourceConfig) (interfaces.PriceSource, error) {
	switch kind {
	case KindStooq:
		return NewStooq(cfg), nil
	case KindYahoo:
		return NewYahoo(cfg), nil
	case KindAuto, "":
		return NewAuto(NewYahoo(cfg), NewStooq(cfg)), nil
	}
	return nil, fmt.Errorf("unknown data source %q", kind)
}

func newClient(cfg SourceConfig, throttle *api.Throttle, headers map[string]string) *api.Client {
	opts := []api.ClientOption{api.WithThrottle(throttle), api.WithLogging(true)}
	if cfg.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.Timeout))
	}
	for k, v := range headers {
		opts = append(opts, api.WithHeader(k, v))
	}
	return api.NewClient(opts...)
}

type fetchOneFunc func(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error)

// fetchEach downloads symbols one at a time. A symbol that fails or has no
// bars in range is left out; the call fails only when nothing came back.
func fetchEach(ctx context.Context, source string, symbols []string, start, end time.Time, observe FetchObserver, one fetchOneFunc) (map[string]types.Series, error) {
	out := make(map[string]types.Series, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		bars, err := one(ctx, sym, start, end)
		if err == nil {
			series := types.NewSeries(sym, bars).Since(start)
			series = until(series, end)
			if series.Len() == 0 {
				err = fmt.Errorf("%w: %s returned no bars in range", types.ErrSymbolDataMissing, source)
			} else {
				out[sym] = series
			}
		}
		if err != nil && !errors.Is(err, types.ErrSymbolDataMissing) {
			err = fmt.Errorf("%w: %s: %v", types.ErrSymbolDataMissing, source, err)
		}
		if err != nil {
			logger.Warn(ctx, "Price download failed", "source", source, "symbol", sym, "error", err)
		}
		if observe != nil {
			observe(source, sym, err)
		}
	}
	if len(symbols) > 0 && len(out) == 0 {
		return out, fmt.Errorf("%w from %s for %d symbols", types.ErrNoPriceData, source, len(symbols))
	}
	return out, nil
}

func until(s types.Series, end time.Time) types.Series {
	end = types.TruncateDay(end)
	i := len(s.Bars)
	for i > 0 && s.Bars[i-1].Date.After(end) {
		i--
	}
	return types.Series{Ticker: s.Ticker, Bars: s.Bars[:i]}
}

// Tally counts download outcomes per source for the audit log.
type Tally struct {
	mu     sync.Mutex
	counts map[string]*[2]int
}

func NewTally() *Tally {
	return &Tally{counts: make(map[string]*[2]int)}
}

func (t *Tally) Observe(source, _ string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counts[source]
	if !ok {
		c = &[2]int{}
		t.counts[source] = c
	}
	if err == nil {
		c[0]++
	} else {
		c[1]++
	}
}

// Counts returns successes and failures recorded for source.
func (t *Tally) Counts(source string) (ok, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, found := t.counts[source]; found {
		return c[0], c[1]
	}
	return 0, 0
}

func (t *Tally) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[string]*[2]int)
}
