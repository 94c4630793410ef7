package marketdata

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"swing-signals/internal/api"
	"swing-signals/internal/types"
)

// stooq.pl serves Polish column names
var stooqHeaders = map[string]string{
	"Data":       "Date",
	"Otwarcie":   "Open",
	"Najwyzszy":  "High",
	"Najnizszy":  "Low",
	"Zamkniecie": "Close",
	"Wolumen":    "Volume",
}

type stooqRow struct {
	Date   string `csv:"Date"`
	Open   string `csv:"Open"`
	High   string `csv:"High"`
	Low    string `csv:"Low"`
	Close  string `csv:"Close"`
	Volume string `csv:"Volume"`
}

// Stooq downloads the daily CSV export, one request per symbol.
type Stooq struct {
	client  *api.Client
	baseURL string
	observe FetchObserver
}

func NewStooq(cfg SourceConfig) *Stooq {
	base := cfg.StooqURL
	if base == "" {
		base = "https://stooq.com/q/d/l/"
	}
	return &Stooq{
		client:  newClient(cfg, api.NewThrottle(cfg.Throttle), api.StooqHeaders()),
		baseURL: base,
		observe: cfg.Observer,
	}
}

func (s *Stooq) Name() string { return KindStooq }

func (s *Stooq) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string]types.Series, error) {
	return fetchEach(ctx, KindStooq, symbols, start, end, s.observe, s.fetchOne)
}

func (s *Stooq) fetchOne(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	q := url.Values{}
	q.Set("s", strings.ToLower(symbol)+".us")
	q.Set("i", "d")
	q.Set("d1", start.Format("20060102"))
	q.Set("d2", end.Format("20060102"))

	resp, err := s.client.GET(ctx, s.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return parseStooqCSV(resp.Body)
}

func parseStooqCSV(body []byte) ([]types.Bar, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	nl := bytes.IndexByte(body, '\n')
	if nl < 0 {
		// "No data" and friends come back as a single line
		return nil, fmt.Errorf("no rows: %q", truncate(string(body), 60))
	}
	header := strings.Split(strings.TrimSpace(string(body[:nl])), ",")
	for i, h := range header {
		if en, ok := stooqHeaders[h]; ok {
			header[i] = en
		}
	}
	normalized := append([]byte(strings.Join(header, ",")+"\n"), body[nl+1:]...)

	var rows []*stooqRow
	if err := gocsv.UnmarshalBytes(normalized, &rows); err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}

	bars := make([]types.Bar, 0, len(rows))
	for _, r := range rows {
		b, err := r.bar()
		if err != nil {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func (r stooqRow) bar() (types.Bar, error) {
	d, err := time.Parse(types.DateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return types.Bar{}, err
	}
	vals, err := parseFloats(r.Open, r.High, r.Low, r.Close)
	if err != nil {
		return types.Bar{}, err
	}
	vol, _ := strconv.ParseFloat(strings.TrimSpace(r.Volume), 64)
	return types.Bar{Date: d, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vol}, nil
}

func parseFloats(ss ...string) ([]float64, error) {
	out := make([]float64, len(ss))
	for i, s := range ss {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
