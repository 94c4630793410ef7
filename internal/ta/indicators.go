package ta

import (
	"swing-signals/internal/types"
)

// Engulfing classifies the two-bar body pattern ending at a bar.
type Engulfing int

const (
	NoEngulfing Engulfing = iota
	BullishEngulfing
	BearishEngulfing
)

func (e Engulfing) String() string {
	switch e {
	case BullishEngulfing:
		return "bullish"
	case BearishEngulfing:
		return "bearish"
	default:
		return "none"
	}
}

// Params configures Compute.
type Params struct {
	RSIPeriod int
}

func DefaultParams() Params { return Params{RSIPeriod: 14} }

// IndicatorSet holds per-bar annotations aligned with the series it was
// computed from. Undefined values are NaN.
type IndicatorSet struct {
	RSI       []float64
	Engulfing []Engulfing
	H3        []float64
	L3        []float64

	SMA50, SMA100, SMA200 []float64
	EMA9, EMA21           []float64
	MACD, MACDSignal      []float64
	Momentum, MomentumSig []float64
	High20, Low20         []float64
}

// Len is the number of bars the set covers.
func (s IndicatorSet) Len() int { return len(s.RSI) }

// Compute derives every indicator for a series. It never fails: windows
// that are not yet complete leave NaN behind.
func Compute(series types.Series, p Params) IndicatorSet {
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = DefaultParams().RSIPeriod
	}
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	ema12 := EMASeries(closes, 12)
	ema26 := EMASeries(closes, 26)
	macd := Sub(ema12, ema26)
	mom := Sub(EMASeries(closes, 10), EMASeries(closes, 21))

	return IndicatorSet{
		RSI:         RSISeries(closes, p.RSIPeriod),
		Engulfing:   EngulfingSeries(series.Opens(), closes),
		H3:          PriorMax(highs, 3),
		L3:          PriorMin(lows, 3),
		SMA50:       SMASeries(closes, 50),
		SMA100:      SMASeries(closes, 100),
		SMA200:      SMASeries(closes, 200),
		EMA9:        EMASeries(closes, 9),
		EMA21:       EMASeries(closes, 21),
		MACD:        macd,
		MACDSignal:  EMASeries(macd, 9),
		Momentum:    mom,
		MomentumSig: EMASeries(mom, 5),
		High20:      RollingMax(highs, 20, 5),
		Low20:       RollingMin(lows, 20, 5),
	}
}

// EngulfingSeries flags bullish and bearish engulfing bars from the second
// bar on. Today's body must cover yesterday's body and the two candles
// must have opposite colours.
func EngulfingSeries(opens, closes []float64) []Engulfing {
	out := make([]Engulfing, len(closes))
	for i := 1; i < len(closes) && i < len(opens); i++ {
		out[i] = EngulfingAt(opens[i-1], closes[i-1], opens[i], closes[i])
	}
	return out
}

func EngulfingAt(prevOpen, prevClose, open, close float64) Engulfing {
	bodyHigh, bodyLow := maxMin(open, close)
	prevHigh, prevLow := maxMin(prevOpen, prevClose)
	covers := bodyHigh >= prevHigh && bodyLow <= prevLow
	switch {
	case covers && close > open && prevClose < prevOpen:
		return BullishEngulfing
	case covers && close < open && prevClose > prevOpen:
		return BearishEngulfing
	}
	return NoEngulfing
}

func maxMin(a, b float64) (float64, float64) {
	if a > b {
		return a, b
	}
	return b, a
}
