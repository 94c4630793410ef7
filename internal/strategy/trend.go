package strategy

import (
	"math"

	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

const (
	trendMinBars = 200
	maxExtension = 0.03
)

// MATrendLong buys the day price reclaims EMA21 inside a fully stacked
// uptrend, confirmed by a momentum cross.
type MATrendLong struct{}

func (MATrendLong) Name() string { return "ma_trend_long" }

func (MATrendLong) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=exch_nasd,sh_avgvol_o500,sh_price_o10"}
}

func (s MATrendLong) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !trendReady(series, inds, i) {
		return types.Signal{}, false
	}
	bar, prev := series.Bars[i], series.Bars[i-1]
	ema21, sma50, sma100, sma200 := inds.EMA21[i], inds.SMA50[i], inds.SMA100[i], inds.SMA200[i]

	stacked := bar.Close > sma50 && ema21 > sma50 && sma50 > sma100 && sma100 > sma200
	reclaimed := prev.Close < inds.EMA21[i-1] && bar.Close > ema21
	momCross := inds.Momentum[i] > inds.MomentumSig[i] && inds.Momentum[i-1] <= inds.MomentumSig[i-1]
	notExtended := bar.Close <= ema21*(1+maxExtension)
	if !(stacked && reclaimed && momCross && notExtended) {
		return types.Signal{}, false
	}

	c := newCandidate(s, "MA Trend Long", types.Long, series, i)
	c.entry = bar.Close
	c.stop = math.Min(inds.L3[i], bar.Low)
	c.rule = "EMA21>SMA50>100>200, reclaimed EMA21, momentum cross up"
	return ctx.emit(c)
}

// MATrendShort mirrors MATrendLong in a stacked downtrend.
type MATrendShort struct{}

func (MATrendShort) Name() string { return "ma_trend_short" }

func (MATrendShort) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=exch_nasd,sh_avgvol_o500,sh_price_o10"}
}

func (s MATrendShort) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !trendReady(series, inds, i) {
		return types.Signal{}, false
	}
	bar, prev := series.Bars[i], series.Bars[i-1]
	ema21, sma50, sma100, sma200 := inds.EMA21[i], inds.SMA50[i], inds.SMA100[i], inds.SMA200[i]

	stacked := bar.Close < sma50 && ema21 < sma50 && sma50 < sma100 && sma100 < sma200
	rejected := prev.Close > inds.EMA21[i-1] && bar.Close < ema21
	momCross := inds.Momentum[i] < inds.MomentumSig[i] && inds.Momentum[i-1] >= inds.MomentumSig[i-1]
	notExtended := bar.Close >= ema21*(1-maxExtension)
	if !(stacked && rejected && momCross && notExtended) {
		return types.Signal{}, false
	}

	c := newCandidate(s, "MA Trend Short", types.Short, series, i)
	c.entry = bar.Close
	c.stop = math.Max(inds.H3[i], bar.High)
	c.rule = "EMA21<SMA50<100<200, rejected at EMA21, momentum cross down"
	return ctx.emit(c)
}

func trendReady(series types.Series, inds ta.IndicatorSet, i int) bool {
	if !inRange(inds, series, i) || i+1 < trendMinBars || i == 0 {
		return false
	}
	for _, v := range []float64{inds.EMA21[i], inds.SMA50[i], inds.SMA100[i], inds.SMA200[i], inds.L3[i], inds.H3[i]} {
		if !ta.Valid(v) {
			return false
		}
	}
	return true
}
