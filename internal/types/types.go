package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the on-disk date format for every CSV the pipeline writes.
const DateLayout = "2006-01-02"

// Bar is one trading day for one symbol.
type Bar struct {
	Date                   time.Time
	Open, High, Low, Close float64
	Volume                 float64
}

func (b Bar) Validate() error {
	if b.Date.IsZero() {
		return fmt.Errorf("bar has no date")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar %s has non-positive price", b.Date.Format(DateLayout))
	}
	if b.High < b.Low {
		return fmt.Errorf("bar %s has high %.4f below low %.4f", b.Date.Format(DateLayout), b.High, b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s has negative volume", b.Date.Format(DateLayout))
	}
	return nil
}

// Series is the ordered daily history of a single ticker.
// Dates are strictly increasing; missing days are simply absent.
type Series struct {
	Ticker string
	Bars   []Bar
}

// NewSeries sorts bars by date, keeps the last bar seen for a duplicated
// date and drops bars that fail validation.
func NewSeries(ticker string, bars []Bar) Series {
	byDate := make(map[time.Time]Bar, len(bars))
	for _, b := range bars {
		if b.Validate() != nil {
			continue
		}
		b.Date = TruncateDay(b.Date)
		byDate[b.Date] = b
	}
	out := make([]Bar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return Series{Ticker: ticker, Bars: out}
}

func (s Series) Len() int { return len(s.Bars) }

func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

func (s Series) Closes() []float64 { return s.column(func(b Bar) float64 { return b.Close }) }
func (s Series) Opens() []float64  { return s.column(func(b Bar) float64 { return b.Open }) }
func (s Series) Highs() []float64  { return s.column(func(b Bar) float64 { return b.High }) }
func (s Series) Lows() []float64   { return s.column(func(b Bar) float64 { return b.Low }) }

func (s Series) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = f(b)
	}
	return out
}

// Since returns the bars dated on or after start.
func (s Series) Since(start time.Time) Series {
	start = TruncateDay(start)
	i := sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Date.Before(start) })
	return Series{Ticker: s.Ticker, Bars: s.Bars[i:]}
}

// TruncateDay drops the clock part, keeping the calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Signal is one candidate trade emitted by a strategy.
type Signal struct {
	Date         time.Time
	Ticker       string
	Strategy     string
	Setup        string
	Side         Side
	EntryTrigger decimal.Decimal
	Stop         decimal.Decimal
	Target       decimal.Decimal
	R            decimal.Decimal
	Grade        string
	GradeBasis   string
	Reason       string
}

// Key identifies a signal row across runs.
func (s Signal) Key() string {
	return s.Date.Format(DateLayout) + "|" + s.Ticker + "|" + s.Strategy
}

// Validate checks the sizing invariants: R at least minR, and stop and
// target on the correct side of the entry for the signal's side.
func (s Signal) Validate(minR decimal.Decimal) error {
	if s.R.LessThan(minR) {
		return fmt.Errorf("%s %s: R %s below minimum %s", s.Strategy, s.Ticker, s.R.String(), minR.String())
	}
	switch s.Side {
	case Long:
		if !(s.Stop.LessThan(s.EntryTrigger) && s.EntryTrigger.LessThan(s.Target)) {
			return fmt.Errorf("%s %s: long levels out of order (stop %s, entry %s, target %s)",
				s.Strategy, s.Ticker, s.Stop, s.EntryTrigger, s.Target)
		}
	case Short:
		if !(s.Target.LessThan(s.EntryTrigger) && s.EntryTrigger.LessThan(s.Stop)) {
			return fmt.Errorf("%s %s: short levels out of order (stop %s, entry %s, target %s)",
				s.Strategy, s.Ticker, s.Stop, s.EntryTrigger, s.Target)
		}
	default:
		return fmt.Errorf("%s %s: unknown side %q", s.Strategy, s.Ticker, s.Side)
	}
	return nil
}

// SortSignals orders rows by date, then strategy, then ticker.
func SortSignals(sigs []Signal) {
	sort.SliceStable(sigs, func(i, j int) bool {
		a, b := sigs[i], sigs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Strategy != b.Strategy {
			return a.Strategy < b.Strategy
		}
		return a.Ticker < b.Ticker
	})
}

// RunSummary is what one pipeline run produced.
type RunSummary struct {
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration_ns"`
	Strategies       int            `json:"strategies"`
	SkippedSources   []string       `json:"skipped_sources,omitempty"`
	UnionTickers     int            `json:"union_tickers"`
	SymbolsWithData  int            `json:"symbols_with_data"`
	MissingSymbols   []string       `json:"missing_symbols,omitempty"`
	ShortHistory     []string       `json:"short_history,omitempty"`
	SignalsByName    map[string]int `json:"signals_by_strategy"`
	CombinedRows     int            `json:"combined_rows"`
	FeatureRows      int            `json:"feature_rows"`
	SignalsGenerated bool           `json:"signals_generated"`
}

// FeatureRow is one bar of the features hand-off table.
type FeatureRow struct {
	Bar
	Ticker           string
	RSI, L3, H3      float64
	BullishEngulfing bool
	BearishEngulfing bool
}

// WriteResult describes what the signal writer put on disk.
type WriteResult struct {
	RowsByStrategy map[string]int
	CombinedRows   int
	Files          []string
}
