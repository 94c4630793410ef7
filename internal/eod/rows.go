package eod

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"swing-signals/internal/types"
)

// signalRow is the on-disk shape of a signal. Field order is the column
// order of every signals CSV.
type signalRow struct {
	Date         string `csv:"Date"`
	Ticker       string `csv:"Ticker"`
	Strategy     string `csv:"Strategy"`
	Setup        string `csv:"Setup"`
	Side         string `csv:"Side"`
	EntryTrigger string `csv:"EntryTrigger"`
	Stop         string `csv:"Stop"`
	Target       string `csv:"Target"`
	R            string `csv:"R"`
	Grade        string `csv:"Grade"`
	GradeBasis   string `csv:"GradeBasis"`
	Reason       string `csv:"Reason"`
}

const signalHeader = "Date,Ticker,Strategy,Setup,Side,EntryTrigger,Stop,Target,R,Grade,GradeBasis,Reason\n"

func toSignalRow(s types.Signal) *signalRow {
	return &signalRow{
		Date:         s.Date.Format(types.DateLayout),
		Ticker:       s.Ticker,
		Strategy:     s.Strategy,
		Setup:        s.Setup,
		Side:         string(s.Side),
		EntryTrigger: s.EntryTrigger.StringFixed(2),
		Stop:         s.Stop.StringFixed(2),
		Target:       s.Target.StringFixed(2),
		R:            s.R.StringFixed(2),
		Grade:        s.Grade,
		GradeBasis:   s.GradeBasis,
		Reason:       s.Reason,
	}
}

func (r signalRow) signal() (types.Signal, error) {
	d, err := time.Parse(types.DateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return types.Signal{}, err
	}
	levels := make([]decimal.Decimal, 4)
	for i, v := range []string{r.EntryTrigger, r.Stop, r.Target, r.R} {
		if levels[i], err = decimal.NewFromString(strings.TrimSpace(v)); err != nil {
			return types.Signal{}, fmt.Errorf("row %s %s: %w", r.Date, r.Ticker, err)
		}
	}
	return types.Signal{
		Date:         d,
		Ticker:       r.Ticker,
		Strategy:     r.Strategy,
		Setup:        r.Setup,
		Side:         types.Side(r.Side),
		EntryTrigger: levels[0],
		Stop:         levels[1],
		Target:       levels[2],
		R:            levels[3],
		Grade:        r.Grade,
		GradeBasis:   r.GradeBasis,
		Reason:       r.Reason,
	}, nil
}

type featureRow struct {
	Date             string `csv:"Date"`
	Ticker           string `csv:"Ticker"`
	Open             string `csv:"Open"`
	High             string `csv:"High"`
	Low              string `csv:"Low"`
	Close            string `csv:"Close"`
	Volume           string `csv:"Volume"`
	RSI              string `csv:"RSI"`
	L3               string `csv:"L3"`
	H3               string `csv:"H3"`
	BullishEngulfing string `csv:"BullishEngulfing"`
	BearishEngulfing string `csv:"BearishEngulfing"`
}

const featureHeader = "Date,Ticker,Open,High,Low,Close,Volume,RSI,L3,H3,BullishEngulfing,BearishEngulfing\n"

func toFeatureRow(f types.FeatureRow) *featureRow {
	return &featureRow{
		Date:             f.Date.Format(types.DateLayout),
		Ticker:           f.Ticker,
		Open:             num(f.Open, 4),
		High:             num(f.High, 4),
		Low:              num(f.Low, 4),
		Close:            num(f.Close, 4),
		Volume:           num(f.Volume, 0),
		RSI:              num(f.RSI, 2),
		L3:               num(f.L3, 4),
		H3:               num(f.H3, 4),
		BullishEngulfing: strconv.FormatBool(f.BullishEngulfing),
		BearishEngulfing: strconv.FormatBool(f.BearishEngulfing),
	}
}

// num formats v with prec decimals; NaN becomes an empty cell.
func num(v float64, prec int) string {
	if v != v {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
