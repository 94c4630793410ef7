package strategy

import (
	"math"

	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

// MACDShort fires on the day MACD(12,26) crosses below its signal line
// while price sits under SMA50.
type MACDShort struct{}

func (MACDShort) Name() string { return "macd_short" }

func (MACDShort) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=cap_midover,geo_usa,sh_opt_option,sh_price_o30,sh_avgvol_o1000,ta_sma200_pb"}
}

func (s MACDShort) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) || i == 0 {
		return types.Signal{}, false
	}
	bar := series.Bars[i]
	sma50 := inds.SMA50[i]
	if !ta.Valid(sma50) || bar.Close >= sma50 || bar.Close <= minPrice || !ta.Valid(inds.H3[i]) {
		return types.Signal{}, false
	}
	macd, sig := inds.MACD[i], inds.MACDSignal[i]
	prevMACD, prevSig := inds.MACD[i-1], inds.MACDSignal[i-1]
	if !(macd < sig && prevMACD >= prevSig) {
		return types.Signal{}, false
	}

	c := newCandidate(s, "MACD Short", types.Short, series, i)
	c.entry = bar.Low
	c.stop = math.Max(inds.H3[i], bar.High)
	c.rule = "MACD crossed below signal, close<SMA50; stop=structural high"
	return ctx.emit(c)
}
