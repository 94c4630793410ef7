package strategy

import (
	"math"
	"sort"

	"swing-signals/internal/ta"
	"swing-signals/internal/types"
)

// The screener has already recognised the chart pattern for these two, so
// they only size a short off each ticker's latest bar.

type BearFlagShort struct{}

func (BearFlagShort) Name() string { return "bear_flag_short" }

func (BearFlagShort) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=cap_midover,geo_usa,sh_opt_option,sh_price_o30,sh_avgvol_o1000,ta_pattern_bearflag"}
}

func (s BearFlagShort) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	return latestBarShort(s, "Bear Flag Short", "screener bear flag", series, inds, i, ctx)
}

// ChannelDownShort keeps only the TopN candidates by latest dollar volume.
type ChannelDownShort struct {
	TopN int
}

func (ChannelDownShort) Name() string { return "channel_down_short" }

func (ChannelDownShort) DefaultURLs() []string {
	return []string{"https://finviz.com/screener.ashx?v=111&f=cap_midover,geo_usa,sh_opt_option,sh_price_o30,sh_avgvol_o3000,ta_sma50_pb,ta_pattern_channeldown"}
}

func (s ChannelDownShort) Evaluate(series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	return latestBarShort(s, "Channel Down Short", "screener channel down, top dollar volume", series, inds, i, ctx)
}

func (s ChannelDownShort) Select(sigs []types.Signal, latest map[string]types.Bar) []types.Signal {
	if s.TopN <= 0 || len(sigs) <= s.TopN {
		return sigs
	}
	dollar := func(t string) float64 {
		b := latest[t]
		return b.Close * b.Volume
	}
	ranked := append([]types.Signal(nil), sigs...)
	sort.SliceStable(ranked, func(a, b int) bool {
		da, db := dollar(ranked[a].Ticker), dollar(ranked[b].Ticker)
		if da != db {
			return da > db
		}
		return ranked[a].Ticker < ranked[b].Ticker
	})
	return ranked[:s.TopN]
}

func latestBarShort(s Strategy, setup, rule string, series types.Series, inds ta.IndicatorSet, i int, ctx Context) (types.Signal, bool) {
	if !inRange(inds, series, i) || i != series.Len()-1 {
		return types.Signal{}, false
	}
	bar := series.Bars[i]
	if !ta.Valid(inds.H3[i]) {
		return types.Signal{}, false
	}
	c := newCandidate(s, setup, types.Short, series, i)
	c.entry = bar.Low
	c.stop = math.Max(inds.H3[i], bar.High)
	c.rule = rule + "; entry=signal low, stop=structural high"
	return ctx.emit(c)
}
