package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

var abcCloses = []float64{111, 109, 107, 108, 106, 104, 105, 103, 101, 102, 100, 99, 98, 96, 100, 101, 102, 103, 104, 105}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func buildSeries(ticker string, opens, closes []float64, lows map[int]float64) types.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))
	for i := range closes {
		hi, lo := math.Max(opens[i], closes[i]), math.Min(opens[i], closes[i])
		low := lo - 0.5
		if v, ok := lows[i]; ok {
			low = v
		}
		bars[i] = types.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   opens[i],
			High:   hi + 0.5,
			Low:    low,
			Close:  closes[i],
			Volume: 1_000_000,
		}
	}
	return types.NewSeries(ticker, bars)
}

func abcSeries(open14 float64) types.Series {
	opens := append([]float64(nil), abcCloses...)
	opens[13] = 98
	opens[14] = open14
	return buildSeries("ABC", opens, abcCloses, map[int]float64{13: 95})
}

func evaluateAll(s Strategy, series types.Series, ctx Context) []types.Signal {
	inds := ta.Compute(series, ta.DefaultParams())
	var out []types.Signal
	for i := 0; i < series.Len(); i++ {
		if sig, ok := s.Evaluate(series, inds, i, ctx); ok {
			out = append(out, sig)
		}
	}
	return out
}

func TestSizeAcceptsMinimumRInclusive(t *testing.T) {
	target, r, ok := Size(types.Long, dec("100"), dec("95"), dec("1.25"), dec("1.25"))
	require.True(t, ok)
	assert.Equal(t, "106.25", target.StringFixed(2))
	assert.True(t, r.Equal(dec("1.25")))

	_, _, ok = Size(types.Long, dec("100"), dec("95"), dec("1.2499"), dec("1.25"))
	assert.False(t, ok, "R of 1.2499 must be rejected")
}

func TestSizeRejectsNonPositiveRisk(t *testing.T) {
	_, _, ok := Size(types.Long, dec("100"), dec("100"), dec("1.25"), dec("1.25"))
	assert.False(t, ok)
	_, _, ok = Size(types.Long, dec("100"), dec("101"), dec("1.25"), dec("1.25"))
	assert.False(t, ok)
	_, _, ok = Size(types.Short, dec("100"), dec("99"), dec("1.25"), dec("1.25"))
	assert.False(t, ok)
}

func TestSizeRejectsNonPositiveShortTarget(t *testing.T) {
	_, _, ok := Size(types.Short, dec("10"), dec("20"), dec("1.25"), dec("1.25"))
	assert.False(t, ok)
}

func TestEmitKeepsSideOrdering(t *testing.T) {
	ctx := DefaultContext()
	long, ok := ctx.emit(candidate{strategy: "x", side: types.Long, ticker: "T", entry: 50, stop: 48, rule: "r"})
	require.True(t, ok)
	assert.True(t, long.Stop.LessThan(long.EntryTrigger))
	assert.True(t, long.EntryTrigger.LessThan(long.Target))

	short, ok := ctx.emit(candidate{strategy: "x", side: types.Short, ticker: "T", entry: 50, stop: 52, rule: "r"})
	require.True(t, ok)
	assert.True(t, short.Target.LessThan(short.EntryTrigger))
	assert.True(t, short.EntryTrigger.LessThan(short.Stop))
	assert.Equal(t, "47.50", short.Target.StringFixed(2))

	_, ok = ctx.emit(candidate{strategy: "x", side: types.Short, ticker: "T", entry: 50, stop: math.NaN()})
	assert.False(t, ok)
}

func TestGrades(t *testing.T) {
	g := DefaultGrades()
	assert.Equal(t, "A+", g.Grade(dec("1.75")))
	assert.Equal(t, "A", g.Grade(dec("1.5")))
	assert.Equal(t, "A", g.Grade(dec("1.7499")))
	assert.Equal(t, "B+", g.Grade(dec("1.25")))
	assert.Equal(t, "", g.Grade(dec("1.2")))
}

func TestRSIReversalLongScenario(t *testing.T) {
	sigs := evaluateAll(RSIReversalLong{}, abcSeries(95.5), DefaultContext())
	require.Len(t, sigs, 1)

	sig := sigs[0]
	assert.Equal(t, "2024-01-15", sig.Date.Format(types.DateLayout))
	assert.Equal(t, "ABC", sig.Ticker)
	assert.Equal(t, "rsi_reversal_long", sig.Strategy)
	assert.Equal(t, types.Long, sig.Side)
	assert.Equal(t, "100.00", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "95.00", sig.Stop.StringFixed(2))
	assert.Equal(t, "106.25", sig.Target.StringFixed(2))
	assert.Equal(t, "1.25", sig.R.StringFixed(2))
	assert.Equal(t, "B+", sig.Grade)
	assert.Equal(t, GradeBasisRR, sig.GradeBasis)
	assert.Contains(t, sig.Reason, "R=1.25")
}

func TestRSIReversalLongWithoutEngulfing(t *testing.T) {
	sigs := evaluateAll(RSIReversalLong{}, abcSeries(99), DefaultContext())
	assert.Empty(t, sigs)
}

func TestTargetMultipleOverride(t *testing.T) {
	ctx := DefaultContext()
	ctx.TargetMultiple = dec("2")
	sigs := evaluateAll(RSIReversalLong{}, abcSeries(95.5), ctx)
	require.Len(t, sigs, 1)
	assert.Equal(t, "110.00", sigs[0].Target.StringFixed(2))
	assert.Equal(t, "A+", sigs[0].Grade)
}

func TestStrategiesTolerateShortSeries(t *testing.T) {
	series := buildSeries("TINY", []float64{10, 11}, []float64{11, 10}, nil)
	for _, s := range DefaultRegistry().All() {
		assert.NotPanics(t, func() {
			assert.Empty(t, evaluateAll(s, series, DefaultContext()), s.Name())
		})
	}
}

func TestMAMomentumLongNearHigh(t *testing.T) {
	n := 60
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 40 + float64(i)
	}
	series := buildSeries("UP", closes, closes, nil)
	inds := ta.Compute(series, ta.DefaultParams())

	sig, ok := MAMomentumLong{}.Evaluate(series, inds, n-1, DefaultContext())
	require.True(t, ok)
	assert.Equal(t, types.Long, sig.Side)
	assert.Equal(t, "99.50", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "95.50", sig.Stop.StringFixed(2))
	assert.Contains(t, sig.Reason, "near 20d high")

	_, ok = MAMomentumShort{}.Evaluate(series, inds, n-1, DefaultContext())
	assert.False(t, ok)
}

// blankIndicators is an n-bar set with every value undefined.
func blankIndicators(n int) ta.IndicatorSet {
	nan := func() []float64 {
		v := make([]float64, n)
		for i := range v {
			v[i] = math.NaN()
		}
		return v
	}
	return ta.IndicatorSet{
		RSI: nan(), Engulfing: make([]ta.Engulfing, n), H3: nan(), L3: nan(),
		SMA50: nan(), SMA100: nan(), SMA200: nan(),
		EMA9: nan(), EMA21: nan(),
		MACD: nan(), MACDSignal: nan(),
		Momentum: nan(), MomentumSig: nan(),
		High20: nan(), Low20: nan(),
	}
}

// flatSeries closes every bar at 100 unless overridden, so each bar spans
// 99.50 to 100.50.
func flatSeries(n int, closes map[int]float64) types.Series {
	c := make([]float64, n)
	for i := range c {
		c[i] = 100
		if v, ok := closes[i]; ok {
			c[i] = v
		}
	}
	return buildSeries("FLAT", c, c, nil)
}

type setupCase struct {
	name   string
	mutate func(*ta.IndicatorSet)
}

// runSetups evaluates s on the last bar of series once per case, each case
// starting from a fresh copy of base.
func runSetups(t *testing.T, s Strategy, series types.Series, base func() ta.IndicatorSet, cases []setupCase) {
	t.Helper()
	for _, tc := range cases {
		inds := base()
		if tc.mutate != nil {
			tc.mutate(&inds)
		}
		_, ok := s.Evaluate(series, inds, series.Len()-1, DefaultContext())
		assert.False(t, ok, tc.name)
	}
}

func assertShortOrdering(t *testing.T, sig types.Signal) {
	t.Helper()
	assert.Equal(t, types.Short, sig.Side)
	assert.True(t, sig.Target.LessThan(sig.EntryTrigger), "target below entry")
	assert.True(t, sig.EntryTrigger.LessThan(sig.Stop), "entry below stop")
}

func TestRSIReversalShortScenario(t *testing.T) {
	// ABC mirrored around 100: the oversold slide becomes an overbought run
	// and the bullish engulfing bar becomes a bearish one.
	closes := make([]float64, len(abcCloses))
	for i, c := range abcCloses {
		closes[i] = 200 - c
	}
	opens := append([]float64(nil), closes...)
	opens[13] = 102
	opens[14] = 104.5
	series := buildSeries("CBA", opens, closes, nil)

	sigs := evaluateAll(RSIReversalShort{}, series, DefaultContext())
	require.Len(t, sigs, 1)
	sig := sigs[0]
	assert.Equal(t, "2024-01-15", sig.Date.Format(types.DateLayout))
	assert.Equal(t, "rsi_reversal_short", sig.Strategy)
	assertShortOrdering(t, sig)
	assert.Equal(t, "100.00", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "104.50", sig.Stop.StringFixed(2))
	assert.True(t, sig.Target.Equal(dec("94.375")))
	assert.Equal(t, "1.25", sig.R.StringFixed(2))

	assert.Empty(t, evaluateAll(RSIReversalLong{}, series, DefaultContext()))
}

func TestRSIReversalShortThreshold(t *testing.T) {
	series := flatSeries(4, nil)
	base := func() ta.IndicatorSet {
		inds := blankIndicators(4)
		inds.RSI[3] = 70
		inds.Engulfing[3] = ta.BearishEngulfing
		inds.H3[3] = 104
		return inds
	}

	sig, ok := RSIReversalShort{}.Evaluate(series, base(), 3, DefaultContext())
	require.True(t, ok, "RSI of exactly 70 counts as overbought")
	assertShortOrdering(t, sig)
	assert.Equal(t, "100.00", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "104.00", sig.Stop.StringFixed(2))
	assert.Equal(t, "95.00", sig.Target.StringFixed(2))

	runSetups(t, RSIReversalShort{}, series, base, []setupCase{
		{"rsi below 70", func(s *ta.IndicatorSet) { s.RSI[3] = 69.99 }},
		{"bullish engulfing", func(s *ta.IndicatorSet) { s.Engulfing[3] = ta.BullishEngulfing }},
		{"no engulfing", func(s *ta.IndicatorSet) { s.Engulfing[3] = ta.NoEngulfing }},
		{"no prior high", func(s *ta.IndicatorSet) { s.H3[3] = math.NaN() }},
	})
}

func TestRSIContinuationLong(t *testing.T) {
	series := flatSeries(4, nil)
	base := func() ta.IndicatorSet {
		inds := blankIndicators(4)
		inds.RSI[2] = 70
		inds.RSI[3] = 70.01
		inds.L3[3] = 96
		return inds
	}

	sig, ok := RSIContinuationLong{}.Evaluate(series, base(), 3, DefaultContext())
	require.True(t, ok)
	assert.Equal(t, "rsi_continuation_long", sig.Strategy)
	assert.Equal(t, types.Long, sig.Side)
	assert.Equal(t, "100.00", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "96.00", sig.Stop.StringFixed(2))
	assert.Equal(t, "105.00", sig.Target.StringFixed(2))

	runSetups(t, RSIContinuationLong{}, series, base, []setupCase{
		{"rsi at 70", func(s *ta.IndicatorSet) { s.RSI[2], s.RSI[3] = 69, 70 }},
		{"rsi flat", func(s *ta.IndicatorSet) { s.RSI[2], s.RSI[3] = 75, 75 }},
		{"rsi falling", func(s *ta.IndicatorSet) { s.RSI[2], s.RSI[3] = 80, 75 }},
		{"no previous rsi", func(s *ta.IndicatorSet) { s.RSI[2] = math.NaN() }},
		{"no prior low", func(s *ta.IndicatorSet) { s.L3[3] = math.NaN() }},
	})

	_, ok = RSIContinuationLong{}.Evaluate(series, base(), 0, DefaultContext())
	assert.False(t, ok, "first bar has no previous rsi")
}

func TestRSIContinuationShort(t *testing.T) {
	series := flatSeries(4, nil)
	base := func() ta.IndicatorSet {
		inds := blankIndicators(4)
		inds.RSI[2] = 29
		inds.RSI[3] = 28
		inds.H3[3] = 104
		return inds
	}

	sig, ok := RSIContinuationShort{}.Evaluate(series, base(), 3, DefaultContext())
	require.True(t, ok)
	assert.Equal(t, "rsi_continuation_short", sig.Strategy)
	assertShortOrdering(t, sig)
	assert.Equal(t, "104.00", sig.Stop.StringFixed(2))
	assert.Equal(t, "95.00", sig.Target.StringFixed(2))

	runSetups(t, RSIContinuationShort{}, series, base, []setupCase{
		{"rsi at 30", func(s *ta.IndicatorSet) { s.RSI[2], s.RSI[3] = 31, 30 }},
		{"rsi rising", func(s *ta.IndicatorSet) { s.RSI[2], s.RSI[3] = 28, 29 }},
		{"rsi flat", func(s *ta.IndicatorSet) { s.RSI[2], s.RSI[3] = 25, 25 }},
		{"no prior high", func(s *ta.IndicatorSet) { s.H3[3] = math.NaN() }},
	})
}

func TestMAMomentumShortNearLow(t *testing.T) {
	n := 60
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 159 - float64(i)
	}
	series := buildSeries("DOWN", closes, closes, nil)
	inds := ta.Compute(series, ta.DefaultParams())

	sig, ok := MAMomentumShort{}.Evaluate(series, inds, n-1, DefaultContext())
	require.True(t, ok)
	assert.Equal(t, "ma_momentum_short", sig.Strategy)
	assertShortOrdering(t, sig)
	assert.Equal(t, "99.50", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "103.50", sig.Stop.StringFixed(2))
	assert.Equal(t, "94.50", sig.Target.StringFixed(2))
	assert.Contains(t, sig.Reason, "near 20d low")

	_, ok = MAMomentumLong{}.Evaluate(series, inds, n-1, DefaultContext())
	assert.False(t, ok)
}

func TestMAMomentumShortCrossDown(t *testing.T) {
	series := flatSeries(4, nil)
	base := func() ta.IndicatorSet {
		inds := blankIndicators(4)
		inds.SMA50[3] = 110
		inds.H3[3] = 102.5
		inds.EMA21[2], inds.EMA21[3] = 120, 120
		inds.EMA9[2], inds.EMA9[3] = 121, 118
		inds.Low20[3] = 90
		return inds
	}

	sig, ok := MAMomentumShort{}.Evaluate(series, base(), 3, DefaultContext())
	require.True(t, ok)
	assertShortOrdering(t, sig)
	assert.Equal(t, "99.50", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "102.50", sig.Stop.StringFixed(2))
	assert.Equal(t, "95.75", sig.Target.StringFixed(2))
	assert.Contains(t, sig.Reason, "ema9/21 cross down")
	assert.NotContains(t, sig.Reason, "near 20d low")

	runSetups(t, MAMomentumShort{}, series, base, []setupCase{
		{"ema9 already below", func(s *ta.IndicatorSet) { s.EMA9[2] = 119 }},
		{"close above sma50", func(s *ta.IndicatorSet) { s.SMA50[3] = 95 }},
		{"no prior high", func(s *ta.IndicatorSet) { s.H3[3] = math.NaN() }},
	})
}

func TestMACDShortCross(t *testing.T) {
	series := flatSeries(4, nil)
	base := func() ta.IndicatorSet {
		inds := blankIndicators(4)
		inds.SMA50[3] = 110
		inds.H3[3] = 102.5
		// previous bar sits exactly on the signal line
		inds.MACD[2], inds.MACDSignal[2] = 0.1, 0.1
		inds.MACD[3], inds.MACDSignal[3] = -0.5, 0
		return inds
	}

	sig, ok := MACDShort{}.Evaluate(series, base(), 3, DefaultContext())
	require.True(t, ok)
	assert.Equal(t, "macd_short", sig.Strategy)
	assertShortOrdering(t, sig)
	assert.Equal(t, "99.50", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "102.50", sig.Stop.StringFixed(2))
	assert.Equal(t, "95.75", sig.Target.StringFixed(2))

	runSetups(t, MACDShort{}, series, base, []setupCase{
		{"already below signal", func(s *ta.IndicatorSet) { s.MACD[2] = 0.05 }},
		{"still above signal", func(s *ta.IndicatorSet) { s.MACD[3] = 0.2 }},
		{"close above sma50", func(s *ta.IndicatorSet) { s.SMA50[3] = 95 }},
		{"no sma50", func(s *ta.IndicatorSet) { s.SMA50[3] = math.NaN() }},
	})
}

// trendSetup builds n flat bars whose last bar reclaims (long) or loses
// (short) EMA21 inside stacked averages with a fresh momentum cross.
func trendSetup(n int, side types.Side) (types.Series, func() ta.IndicatorSet) {
	last, prev := n-1, n-2
	if side == types.Long {
		return flatSeries(n, map[int]float64{prev: 98}), func() ta.IndicatorSet {
			inds := blankIndicators(n)
			inds.EMA21[prev], inds.EMA21[last] = 99, 99
			inds.SMA50[last], inds.SMA100[last], inds.SMA200[last] = 97, 95, 90
			inds.Momentum[prev], inds.MomentumSig[prev] = 0.05, 0.1
			inds.Momentum[last], inds.MomentumSig[last] = 0.2, 0.1
			inds.L3[last], inds.H3[last] = 96, 101
			return inds
		}
	}
	return flatSeries(n, map[int]float64{prev: 102}), func() ta.IndicatorSet {
		inds := blankIndicators(n)
		inds.EMA21[prev], inds.EMA21[last] = 101, 101
		inds.SMA50[last], inds.SMA100[last], inds.SMA200[last] = 103, 105, 110
		inds.Momentum[prev], inds.MomentumSig[prev] = -0.05, -0.1
		inds.Momentum[last], inds.MomentumSig[last] = -0.2, -0.1
		inds.L3[last], inds.H3[last] = 95, 104
		return inds
	}
}

func TestMATrendLong(t *testing.T) {
	series, base := trendSetup(200, types.Long)
	last := series.Len() - 1

	sig, ok := MATrendLong{}.Evaluate(series, base(), last, DefaultContext())
	require.True(t, ok)
	assert.Equal(t, "ma_trend_long", sig.Strategy)
	assert.Equal(t, types.Long, sig.Side)
	assert.Equal(t, "100.00", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "96.00", sig.Stop.StringFixed(2))
	assert.Equal(t, "105.00", sig.Target.StringFixed(2))

	_, ok = MATrendShort{}.Evaluate(series, base(), last, DefaultContext())
	assert.False(t, ok)

	runSetups(t, MATrendLong{}, series, base, []setupCase{
		{"more than 3% above ema21", func(s *ta.IndicatorSet) {
			s.EMA21[last], s.SMA50[last] = 97, 96
		}},
		{"averages not stacked", func(s *ta.IndicatorSet) { s.SMA100[last] = 98 }},
		{"momentum already above", func(s *ta.IndicatorSet) { s.Momentum[last-1] = 0.15 }},
		{"never below ema21", func(s *ta.IndicatorSet) { s.EMA21[last-1] = 97 }},
		{"no sma200", func(s *ta.IndicatorSet) { s.SMA200[last] = math.NaN() }},
	})

	short, shortBase := trendSetup(199, types.Long)
	_, ok = MATrendLong{}.Evaluate(short, shortBase(), short.Len()-1, DefaultContext())
	assert.False(t, ok, "needs 200 bars of history")
}

func TestMATrendShort(t *testing.T) {
	series, base := trendSetup(200, types.Short)
	last := series.Len() - 1

	sig, ok := MATrendShort{}.Evaluate(series, base(), last, DefaultContext())
	require.True(t, ok)
	assert.Equal(t, "ma_trend_short", sig.Strategy)
	assertShortOrdering(t, sig)
	assert.Equal(t, "100.00", sig.EntryTrigger.StringFixed(2))
	assert.Equal(t, "104.00", sig.Stop.StringFixed(2))
	assert.Equal(t, "95.00", sig.Target.StringFixed(2))

	_, ok = MATrendLong{}.Evaluate(series, base(), last, DefaultContext())
	assert.False(t, ok)

	runSetups(t, MATrendShort{}, series, base, []setupCase{
		{"more than 3% below ema21", func(s *ta.IndicatorSet) {
			s.EMA21[last], s.SMA50[last] = 103.5, 104
		}},
		{"averages not stacked", func(s *ta.IndicatorSet) { s.SMA100[last] = 102 }},
		{"momentum already below", func(s *ta.IndicatorSet) { s.Momentum[last-1] = -0.2 }},
		{"never above ema21", func(s *ta.IndicatorSet) { s.EMA21[last-1] = 103 }},
	})

	short, shortBase := trendSetup(199, types.Short)
	_, ok = MATrendShort{}.Evaluate(short, shortBase(), short.Len()-1, DefaultContext())
	assert.False(t, ok, "needs 200 bars of history")
}

func TestPatternStrategiesOnlyUseLatestBar(t *testing.T) {
	series := abcSeries(95.5)
	sigs := evaluateAll(BearFlagShort{}, series, DefaultContext())
	require.Len(t, sigs, 1)
	assert.Equal(t, "2024-01-20", sigs[0].Date.Format(types.DateLayout))
	assert.Equal(t, types.Short, sigs[0].Side)
	assert.Equal(t, "104.50", sigs[0].EntryTrigger.StringFixed(2))
	assert.Equal(t, "105.50", sigs[0].Stop.StringFixed(2))
}

func TestChannelDownSelectKeepsTopDollarVolume(t *testing.T) {
	s := ChannelDownShort{TopN: 2}
	sigs := []types.Signal{{Ticker: "AAA"}, {Ticker: "BBB"}, {Ticker: "CCC"}}
	latest := map[string]types.Bar{
		"AAA": {Close: 10, Volume: 100},
		"BBB": {Close: 50, Volume: 100},
		"CCC": {Close: 20, Volume: 100},
	}
	got := s.Select(sigs, latest)
	require.Len(t, got, 2)
	assert.Equal(t, "BBB", got[0].Ticker)
	assert.Equal(t, "CCC", got[1].Ticker)
	assert.Len(t, sigs, 3)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, 11, r.Len())
	names := r.Names()
	assert.IsIncreasing(t, names)
	for _, n := range names {
		s, ok := r.Get(n)
		require.True(t, ok)
		assert.NotEmpty(t, s.DefaultURLs(), n)
	}

	_, err := NewRegistry(MACDShort{}, MACDShort{})
	assert.Error(t, err)
}
