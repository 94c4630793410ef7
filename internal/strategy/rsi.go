package strategy

import (
	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

// RSIReversalLong buys an oversold bullish engulfing candle.
type RSIReversalLong struct{}

func (RSIReversalLong) Name() string { return "rsi_reversal_long" }

func (RSIReversalLong) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=sh_opt_option,sh_price_o10,sh_avgvol_o1500,ta_rsioversold,ta_pattern_bullishengulfing"}
}

func (s RSIReversalLong) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) {
		return types.Signal{}, false
	}
	rsi, stop := inds.RSI[i], inds.L3[i]
	if !ta.Valid(rsi) || !ta.Valid(stop) || rsi > oversold || inds.Engulfing[i] != ta.BullishEngulfing {
		return types.Signal{}, false
	}
	c := newCandidate(s, "RSI Reversal Long", types.Long, series, i)
	c.entry = series.Bars[i].Close
	c.stop = stop
	c.rule = "RSI<=30 + bullish engulfing; stop=prior 3d low"
	return ctx.emit(c)
}

// RSIReversalShort sells an overbought bearish engulfing candle.
type RSIReversalShort struct{}

func (RSIReversalShort) Name() string { return "rsi_reversal_short" }

func (RSIReversalShort) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=sh_opt_option,sh_price_o10,sh_avgvol_o1500,ta_rsi_overbought,ta_pattern_bearishengulfing"}
}

func (s RSIReversalShort) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) {
		return types.Signal{}, false
	}
	rsi, stop := inds.RSI[i], inds.H3[i]
	if !ta.Valid(rsi) || !ta.Valid(stop) || rsi < overbought || inds.Engulfing[i] != ta.BearishEngulfing {
		return types.Signal{}, false
	}
	c := newCandidate(s, "RSI Reversal Short", types.Short, series, i)
	c.entry = series.Bars[i].Close
	c.stop = stop
	c.rule = "RSI>=70 + bearish engulfing; stop=prior 3d high"
	return ctx.emit(c)
}

// RSIContinuationLong follows strength: RSI above 70 and still rising.
type RSIContinuationLong struct{}

func (RSIContinuationLong) Name() string { return "rsi_continuation_long" }

func (RSIContinuationLong) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=sh_opt_option,sh_price_o10,sh_avgvol_o2000,ta_highlow52w_nh"}
}

func (s RSIContinuationLong) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) || i == 0 {
		return types.Signal{}, false
	}
	rsi, prev, stop := inds.RSI[i], inds.RSI[i-1], inds.L3[i]
	if !ta.Valid(rsi) || !ta.Valid(prev) || !ta.Valid(stop) {
		return types.Signal{}, false
	}
	if rsi <= overbought || rsi <= prev {
		return types.Signal{}, false
	}
	c := newCandidate(s, "RSI Continuation Long", types.Long, series, i)
	c.entry = series.Bars[i].Close
	c.stop = stop
	c.rule = "RSI>70 and rising; stop=prior 3d low"
	return ctx.emit(c)
}

// RSIContinuationShort follows weakness: RSI below 30 and still falling.
type RSIContinuationShort struct{}

func (RSIContinuationShort) Name() string { return "rsi_continuation_short" }

func (RSIContinuationShort) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=sh_opt_option,sh_price_o10,sh_avgvol_o2000,ta_highlow52w_nl"}
}

func (s RSIContinuationShort) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) || i == 0 {
		return types.Signal{}, false
	}
	rsi, prev, stop := inds.RSI[i], inds.RSI[i-1], inds.H3[i]
	if !ta.Valid(rsi) || !ta.Valid(prev) || !ta.Valid(stop) {
		return types.Signal{}, false
	}
	if rsi >= oversold || rsi >= prev {
		return types.Signal{}, false
	}
	c := newCandidate(s, "RSI Continuation Short", types.Short, series, i)
	c.entry = series.Bars[i].Close
	c.stop = stop
	c.rule = "RSI<30 and falling; stop=prior 3d high"
	return ctx.emit(c)
}
