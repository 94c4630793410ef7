// Package strategy holds the rule sets that turn a ticker's bars and
// indicators into candidate trades.
//
// A Strategy is evaluated one bar at a time and must be a pure function of
// its inputs: it may not mutate the series or the indicator set, and a NaN
// indicator simply means "no signal".
package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

const (
	GradeBasisRR = "rr_fallback"

	oversold   = 30.0
	overbought = 70.0
	minPrice   = 30.0
)

type Strategy interface {
	// Name is the registry key and the Strategy column value.
	Name() string
	// DefaultURLs are the screener queries used when config has none.
	DefaultURLs() []string
	// Evaluate inspects bar i of the series.
	Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool)
}

// Selector is implemented by strategies that rank or cap their candidates
// across tickers after every symbol has been evaluated. latest holds each
// ticker's most recent bar.
type Selector interface {
	Select(sigs []types.Signal, latest map[string]types.Bar) []types.Signal
}

// Context carries the run-level sizing parameters into Evaluate.
type Context struct {
	MinR           decimal.Decimal
	TargetMultiple decimal.Decimal
	Grades         Grades
}

func DefaultContext() Context {
	return Context{
		MinR:           decimal.RequireFromString("1.25"),
		TargetMultiple: decimal.RequireFromString("1.25"),
		Grades:         DefaultGrades(),
	}
}

// Grades are the inclusive lower R bounds of each quality tier.
type Grades struct {
	APlus decimal.Decimal
	A     decimal.Decimal
	BPlus decimal.Decimal
}

func DefaultGrades() Grades {
	return Grades{
		APlus: decimal.RequireFromString("1.75"),
		A:     decimal.RequireFromString("1.5"),
		BPlus: decimal.RequireFromString("1.25"),
	}
}

// Grade buckets an R multiple. Below the lowest tier it returns "".
func (g Grades) Grade(r decimal.Decimal) string {
	switch {
	case r.GreaterThanOrEqual(g.APlus):
		return "A+"
	case r.GreaterThanOrEqual(g.A):
		return "A"
	case r.GreaterThanOrEqual(g.BPlus):
		return "B+"
	}
	return ""
}

// candidate is what a rule produces before sizing.
type candidate struct {
	strategy string
	setup    string
	side     types.Side
	ticker   string
	date     time.Time
	entry    float64
	stop     float64
	rule     string
}

// emit sizes a candidate and turns it into a Signal. Candidates with a
// non-positive risk distance or an R below the minimum are dropped.
func (c Context) emit(cand candidate) (types.Signal, bool) {
	if !ta.Valid(cand.entry) || !ta.Valid(cand.stop) {
		return types.Signal{}, false
	}
	entry := decimal.NewFromFloat(cand.entry)
	stop := decimal.NewFromFloat(cand.stop)
	target, r, ok := Size(cand.side, entry, stop, c.TargetMultiple, c.MinR)
	if !ok {
		return types.Signal{}, false
	}
	sig := types.Signal{
		Date:         cand.date,
		Ticker:       cand.ticker,
		Strategy:     cand.strategy,
		Setup:        cand.setup,
		Side:         cand.side,
		EntryTrigger: entry,
		Stop:         stop,
		Target:       target,
		R:            r,
		Grade:        c.Grades.Grade(r),
		GradeBasis:   GradeBasisRR,
		Reason:       fmt.Sprintf("%s; R=%s", cand.rule, r.StringFixed(2)),
	}
	if sig.Validate(c.MinR) != nil {
		return types.Signal{}, false
	}
	return sig, true
}

func newCandidate(s Strategy, setup string, side types.Side, series types.Series, i int) candidate {
	bar := series.Bars[i]
	return candidate{
		strategy: s.Name(),
		setup:    setup,
		side:     side,
		ticker:   series.Ticker,
		date:     bar.Date,
	}
}

func inRange(inds ta.IndicatorSet, series types.Series, i int) bool {
	return i >= 0 && i < series.Len() && i < inds.Len()
}
