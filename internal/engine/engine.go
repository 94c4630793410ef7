// Package engine runs the pipeline once: watchlists, prices, indicators,
// strategies and the output tables.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"swing-signals/internal/finviz"
	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/metrics"
	"swing-signals/internal/runlog"
	"swing-signals/internal/store"
	"swing-signals/internal/strategy"
	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

type Options struct {
	Config     *store.Config
	Registry   *strategy.Registry
	Watchlists interfaces.WatchlistSource
	Prices     interfaces.PriceFetcher
	Writer     interfaces.SignalWriter
	// Metrics and Journal are optional.
	Metrics *metrics.Recorder
	Journal *runlog.Journal
	Now     func() time.Time
}

type Engine struct {
	cfg        *store.Config
	registry   *strategy.Registry
	watchlists interfaces.WatchlistSource
	prices     interfaces.PriceFetcher
	writer     interfaces.SignalWriter
	metrics    *metrics.Recorder
	journal    *runlog.Journal
	now        func() time.Time
}

var _ interfaces.Pipeline = (*Engine)(nil)

func New(opts Options) (*Engine, error) {
	if opts.Config == nil || opts.Watchlists == nil || opts.Prices == nil || opts.Writer == nil {
		return nil, errors.New("engine needs config, watchlist source, price fetcher and writer")
	}
	if opts.Registry == nil {
		opts.Registry = strategy.DefaultRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		cfg:        opts.Config,
		registry:   opts.Registry,
		watchlists: opts.Watchlists,
		prices:     opts.Prices,
		writer:     opts.Writer,
		metrics:    opts.Metrics,
		journal:    opts.Journal,
		now:        opts.Now,
	}, nil
}

// Run executes one pass. Only configuration and output write failures are
// returned; a skipped watchlist or a missing symbol is recorded in the
// summary instead.
func (e *Engine) Run(ctx context.Context) (*types.RunSummary, error) {
	started := e.now()
	sum := &types.RunSummary{
		StartedAt:        started,
		SignalsByName:    map[string]int{},
		SignalsGenerated: e.cfg.GenerateSignals,
	}

	err := e.run(ctx, sum)
	sum.Duration = e.now().Sub(started)
	e.record(ctx, sum, err)
	return sum, err
}

func (e *Engine) run(ctx context.Context, sum *types.RunSummary) error {
	strats := e.enabled()
	sum.Strategies = len(strats)

	watchlists := make(map[string][]string, len(strats))
	lists := make([][]string, 0, len(strats))
	for _, s := range strats {
		name := s.Name()
		tickers, err := e.watchlists.FetchWatchlist(ctx, e.cfg.StrategyURLs(name, s.DefaultURLs()))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.SourceSkipped(ctx, name, err.Error())
			sum.SkippedSources = append(sum.SkippedSources, name)
			if e.metrics != nil {
				e.metrics.RecordSourceSkipped(name)
			}
			continue
		}
		if err := finviz.SaveWatchlist(filepath.Join(e.cfg.WatchlistDir(), name+".csv"), tickers); err != nil {
			return fmt.Errorf("save watchlist %s: %w", name, err)
		}
		watchlists[name] = tickers
		lists = append(lists, tickers)
	}

	union := finviz.Union(e.cfg.MaxUnionTickers, lists...)
	sum.UnionTickers = len(union)
	inUnion := make(map[string]struct{}, len(union))
	for _, t := range union {
		inUnion[t] = struct{}{}
	}

	var data map[string]types.Series
	if len(union) > 0 {
		var err error
		data, err = e.prices.Fetch(ctx, union)
		if err != nil && !errors.Is(err, types.ErrNoPriceData) {
			return fmt.Errorf("fetch prices: %w", err)
		}
		if err != nil {
			logger.Warn(ctx, "No price data for this run; writing empty outputs", "error", err)
		}
	} else {
		logger.Warn(ctx, "No tickers from any watchlist; writing empty outputs")
	}

	sum.SymbolsWithData = len(data)
	for _, t := range union {
		if _, ok := data[t]; !ok {
			sum.MissingSymbols = append(sum.MissingSymbols, t)
		}
	}

	inds := make(map[string]ta.IndicatorSet, len(data))
	latest := make(map[string]types.Bar, len(data))
	var newest time.Time
	for t, series := range data {
		inds[t] = ta.Compute(series, ta.Params{RSIPeriod: e.cfg.RSIPeriod})
		if b, ok := series.Last(); ok {
			latest[t] = b
			if b.Date.After(newest) {
				newest = b.Date
			}
		}
	}

	featuresPath, err := e.writer.WriteFeatures(ctx, featureRows(data, inds))
	if err != nil {
		return fmt.Errorf("write features: %w", err)
	}
	logger.Debug(ctx, "Features written", "path", featuresPath)
	for _, rows := range data {
		sum.FeatureRows += rows.Len()
	}

	if !e.cfg.GenerateSignals {
		logger.Info(ctx, "Signal generation disabled; features only")
		return nil
	}

	since := newest.AddDate(0, 0, -(e.cfg.SignalHistoryDays - 1))
	short := shortHistory(ctx, union, data)
	sum.ShortHistory = short
	skip := make(map[string]struct{}, len(short))
	for _, t := range short {
		skip[t] = struct{}{}
	}
	byStrategy := make(map[string][]types.Signal, len(watchlists))
	for _, s := range strats {
		name := s.Name()
		tickers, ok := watchlists[name]
		if !ok {
			continue
		}
		op := logger.StartOperation(ctx, "strategy.Evaluate", "strategy", name, "tickers", len(tickers))
		sctx := e.strategyContext(name)
		var sigs []types.Signal
		for _, t := range tickers {
			if _, ok := inUnion[t]; !ok {
				continue
			}
			series, ok := data[t]
			if !ok {
				continue
			}
			if _, ok := skip[t]; ok {
				continue
			}
			sigs = append(sigs, evaluate(s, series, inds[t], since, sctx)...)
		}
		if sel, ok := s.(strategy.Selector); ok {
			sigs = sel.Select(sigs, latest)
		}
		types.SortSignals(sigs)
		op.End("signals", len(sigs))
		for _, sig := range sigs {
			logger.Signal(op.Context(), name, sig.Ticker, string(sig.Side), sig.R.InexactFloat64(), sig.Grade,
				"date", sig.Date.Format(types.DateLayout),
				"entry", sig.EntryTrigger.StringFixed(2),
				"stop", sig.Stop.StringFixed(2),
				"target", sig.Target.StringFixed(2),
			)
		}
		byStrategy[name] = sigs
		sum.SignalsByName[name] = len(sigs)
	}

	res, err := e.writer.WriteSignals(ctx, byStrategy)
	if err != nil {
		return fmt.Errorf("write signals: %w", err)
	}
	sum.CombinedRows = res.CombinedRows
	return nil
}

func (e *Engine) enabled() []strategy.Strategy {
	var out []strategy.Strategy
	for _, s := range e.registry.All() {
		if e.cfg.StrategyEnabled(s.Name()) {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) strategyContext(name string) strategy.Context {
	g := e.cfg.StrategyGrades(name)
	return strategy.Context{
		MinR:           decimal.NewFromFloat(e.cfg.MinR),
		TargetMultiple: decimal.NewFromFloat(e.cfg.StrategyTargetMultiple(name)),
		Grades: strategy.Grades{
			APlus: decimal.NewFromFloat(g.APlus),
			A:     decimal.NewFromFloat(g.A),
			BPlus: decimal.NewFromFloat(g.BPlus),
		},
	}
}

// minSignalBars is the shortest series any strategy can size: stops hang off
// the three bars before the signal bar.
const minSignalBars = 4

// shortHistory lists the union symbols whose series are too short to carry a
// signal, in union order.
func shortHistory(ctx context.Context, union []string, data map[string]types.Series) []string {
	var out []string
	for _, t := range union {
		series, ok := data[t]
		if !ok || series.Len() >= minSignalBars {
			continue
		}
		err := fmt.Errorf("%w: %s has %d bars, need %d", types.ErrInsufficientHistory, t, series.Len(), minSignalBars)
		logger.Debug(ctx, "Symbol skipped for signals", "ticker", t, "error", err)
		out = append(out, t)
	}
	return out
}

// evaluate runs s over every bar dated on or after since.
func evaluate(s strategy.Strategy, series types.Series, inds ta.IndicatorSet, since time.Time, sctx strategy.Context) []types.Signal {
	var out []types.Signal
	for i := series.Len() - 1; i >= 0 && !series.Bars[i].Date.Before(since); i-- {
		if sig, ok := s.Evaluate(series, inds, i, sctx); ok {
			out = append(out, sig)
		}
	}
	return out
}

func featureRows(data map[string]types.Series, inds map[string]ta.IndicatorSet) []types.FeatureRow {
	tickers := make([]string, 0, len(data))
	for t := range data {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var rows []types.FeatureRow
	for _, t := range tickers {
		set := inds[t]
		for i, b := range data[t].Bars {
			rows = append(rows, types.FeatureRow{
				Bar:              b,
				Ticker:           t,
				RSI:              set.RSI[i],
				L3:               set.L3[i],
				H3:               set.H3[i],
				BullishEngulfing: set.Engulfing[i] == ta.BullishEngulfing,
				BearishEngulfing: set.Engulfing[i] == ta.BearishEngulfing,
			})
		}
	}
	return rows
}

func (e *Engine) record(ctx context.Context, sum *types.RunSummary, runErr error) {
	if e.metrics != nil {
		e.metrics.RecordRun(runErr == nil, sum.Duration, sum.StartedAt)
		for name, n := range sum.SignalsByName {
			e.metrics.RecordSignals(name, n)
		}
		e.metrics.RecordSymbols(sum.SymbolsWithData, len(sum.MissingSymbols))
		e.metrics.RecordCombinedRows(sum.CombinedRows)
		if path := e.cfg.MetricsFile; path != "" {
			if err := e.metrics.WriteTextfile(path); err != nil {
				logger.ErrorWithErr(ctx, "Failed to write metrics textfile", err, "path", path)
			}
		}
	}
	if e.journal != nil {
		if err := e.journal.Append(*sum, runErr); err != nil {
			logger.ErrorWithErr(ctx, "Failed to append run journal", err)
		}
		if err := e.journal.CompressOlder(e.cfg.RunLogRetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old run journals", "error", err)
		}
	}
}
