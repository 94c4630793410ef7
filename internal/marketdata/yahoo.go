package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"swing-signals/internal/api"
	"swing-signals/internal/types"
)

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Yahoo reads daily candles from the v8 chart endpoint.
type Yahoo struct {
	client  *api.Client
	baseURL string
	observe FetchObserver
}

func NewYahoo(cfg SourceConfig) *Yahoo {
	base := cfg.YahooURL
	if base == "" {
		base = "https://query1.finance.yahoo.com/v8/finance/chart/"
	}
	return &Yahoo{
		client:  newClient(cfg, api.NewThrottle(cfg.Throttle), api.YahooFinanceHeaders()),
		baseURL: base,
		observe: cfg.Observer,
	}
}

func (y *Yahoo) Name() string { return KindYahoo }

func (y *Yahoo) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string]types.Series, error) {
	return fetchEach(ctx, KindYahoo, symbols, start, end, y.observe, y.fetchOne)
}

func (y *Yahoo) fetchOne(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")

	resp, err := y.client.GET(ctx, y.baseURL+url.PathEscape(symbol)+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var cr chartResponse
	if err := resp.ParseJSON(&cr); err != nil {
		return nil, err
	}
	return cr.bars()
}

func (cr chartResponse) bars() ([]types.Bar, error) {
	if e := cr.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart has no result")
	}
	res := cr.Chart.Result[0]
	q := res.Indicators.Quote[0]

	bars := make([]types.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, h, l, c := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		var vol float64
		if v := at(q.Volume, i); v != nil {
			vol = *v
		}
		bars = append(bars, types.Bar{
			Date:   types.TruncateDay(time.Unix(ts, 0).UTC()),
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *c,
			Volume: vol,
		})
	}
	return bars, nil
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}
