package strategy

import (
	"math"
	"strings"

	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

const (
	ema21Band  = 0.05
	sma50Band  = 0.03
	extremeGap = 0.03
)

// MAMomentumLong looks for pullback-and-go entries above a rising SMA50.
type MAMomentumLong struct{}

func (MAMomentumLong) Name() string { return "ma_momentum_long" }

func (MAMomentumLong) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=cap_midover,geo_usa,sh_opt_option,sh_price_o30,sh_avgvol_o1000,ta_sma50_pa,ta_sma200_pa"}
}

func (s MAMomentumLong) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) {
		return types.Signal{}, false
	}
	bar := series.Bars[i]
	sma50 := inds.SMA50[i]
	if !ta.Valid(sma50) || bar.Close <= sma50 || bar.Close <= minPrice || !ta.Valid(inds.L3[i]) {
		return types.Signal{}, false
	}

	var triggers []string
	if nearAverages(bar.Close, inds.EMA21[i], sma50) {
		triggers = append(triggers, "pullback")
	}
	if i > 0 && inds.EMA9[i] > inds.EMA21[i] && inds.EMA9[i-1] <= inds.EMA21[i-1] {
		triggers = append(triggers, "ema9/21 cross up")
	}
	if hi := inds.High20[i]; ta.Valid(hi) && bar.Close >= (1-extremeGap)*hi {
		triggers = append(triggers, "near 20d high")
	}
	if len(triggers) == 0 {
		return types.Signal{}, false
	}

	c := newCandidate(s, "MA Momentum Long", types.Long, series, i)
	c.entry = bar.High
	c.stop = math.Min(inds.L3[i], bar.Low)
	c.rule = "close>SMA50, " + strings.Join(triggers, "+") + "; entry=signal high, stop=structural low"
	return ctx.emit(c)
}

// MAMomentumShort mirrors MAMomentumLong below a falling SMA50.
type MAMomentumShort struct{}

func (MAMomentumShort) Name() string { return "ma_momentum_short" }

func (MAMomentumShort) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=cap_midover,geo_usa,sh_opt_option,sh_price_o30,sh_avgvol_o1000,ta_sma50_pb,ta_sma200_pb"}
}

func (s MAMomentumShort) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) {
		return types.Signal{}, false
	}
	bar := series.Bars[i]
	sma50 := inds.SMA50[i]
	if !ta.Valid(sma50) || bar.Close >= sma50 || bar.Close <= minPrice || !ta.Valid(inds.H3[i]) {
		return types.Signal{}, false
	}

	var triggers []string
	if nearAverages(bar.Close, inds.EMA21[i], sma50) {
		triggers = append(triggers, "pullback")
	}
	if i > 0 && inds.EMA9[i] < inds.EMA21[i] && inds.EMA9[i-1] >= inds.EMA21[i-1] {
		triggers = append(triggers, "ema9/21 cross down")
	}
	if lo := inds.Low20[i]; ta.Valid(lo) && bar.Close <= (1+extremeGap)*lo {
		triggers = append(triggers, "near 20d low")
	}
	if len(triggers) == 0 {
		return types.Signal{}, false
	}

	c := newCandidate(s, "MA Momentum Short", types.Short, series, i)
	c.entry = bar.Low
	c.stop = math.Max(inds.H3[i], bar.High)
	c.rule = "close<SMA50, " + strings.Join(triggers, "+") + "; entry=signal low, stop=structural high"
	return ctx.emit(c)
}

func nearAverages(close, ema21, sma50 float64) bool {
	if ta.Valid(ema21) && ema21 != 0 && math.Abs(close-ema21)/ema21 <= ema21Band {
		return true
	}
	return ta.Valid(sma50) && sma50 != 0 && math.Abs(close-sma50)/sma50 <= sma50Band
}
