package marketdata

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"swing-signals/internal/types"
)

type snapshotRow struct {
	Date   string `csv:"Date"`
	Ticker string `csv:"Ticker"`
	Open   string `csv:"Open"`
	High   string `csv:"High"`
	Low    string `csv:"Low"`
	Close  string `csv:"Close"`
	Volume string `csv:"Volume"`
}

// LoadSnapshot reads the long-format price file. A missing file yields an
// empty map.
func LoadSnapshot(path string) (map[string]types.Series, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]types.Series{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]types.Series{}, nil
	}

	var rows []*snapshotRow
	if err := gocsv.UnmarshalBytes(b, &rows); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	byTicker := make(map[string][]types.Bar)
	for _, r := range rows {
		d, err := time.Parse(types.DateLayout, strings.TrimSpace(r.Date))
		if err != nil {
			continue
		}
		vals, err := parseFloats(r.Open, r.High, r.Low, r.Close)
		if err != nil {
			continue
		}
		vol, _ := strconv.ParseFloat(strings.TrimSpace(r.Volume), 64)
		t := strings.ToUpper(strings.TrimSpace(r.Ticker))
		byTicker[t] = append(byTicker[t], types.Bar{
			Date: d, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vol,
		})
	}

	out := make(map[string]types.Series, len(byTicker))
	for t, bars := range byTicker {
		if s := types.NewSeries(t, bars); s.Len() > 0 {
			out[t] = s
		}
	}
	return out, nil
}

// WriteSnapshot replaces the price file with every series, ordered by
// ticker then date.
func WriteSnapshot(path string, data map[string]types.Series) error {
	tickers := make([]string, 0, len(data))
	for t := range data {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var rows []*snapshotRow
	for _, t := range tickers {
		for _, b := range data[t].Bars {
			rows = append(rows, &snapshotRow{
				Date:   b.Date.Format(types.DateLayout),
				Ticker: t,
				Open:   formatPrice(b.Open),
				High:   formatPrice(b.High),
				Low:    formatPrice(b.Low),
				Close:  formatPrice(b.Close),
				Volume: strconv.FormatFloat(b.Volume, 'f', 0, 64),
			})
		}
	}

	var buf bytes.Buffer
	if len(rows) == 0 {
		buf.WriteString("Date,Ticker,Open,High,Low,Close,Volume\n")
	} else if err := gocsv.Marshal(&rows, &buf); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Merge overlays fresh bars on the existing snapshot. Fresh bars win on a
// (ticker, date) clash and anything dated before start is dropped.
func Merge(existing, fresh map[string]types.Series, start time.Time) map[string]types.Series {
	out := make(map[string]types.Series, len(existing)+len(fresh))
	tickers := make(map[string]struct{})
	for t := range existing {
		tickers[t] = struct{}{}
	}
	for t := range fresh {
		tickers[t] = struct{}{}
	}
	for t := range tickers {
		// NewSeries keeps the last bar per date, so fresh goes second
		bars := append(append([]types.Bar(nil), existing[t].Bars...), fresh[t].Bars...)
		if s := types.NewSeries(t, bars).Since(start); s.Len() > 0 {
			out[t] = s
		}
	}
	return out
}
