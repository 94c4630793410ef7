package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-signals/internal/types"
)

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan9 = time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
)

func bar(day int, close float64) types.Bar {
	return types.Bar{
		Date:   jan1.AddDate(0, 0, day),
		Open:   close,
		High:   close + 1,
		Low:    close - 1,
		Close:  close,
		Volume: 1000,
	}
}

type fakeSource struct {
	name  string
	data  map[string][]types.Bar
	calls [][]string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string]types.Series, error) {
	f.calls = append(f.calls, symbols)
	return fetchEach(ctx, f.name, symbols, start, end, nil, func(_ context.Context, sym string, _, _ time.Time) ([]types.Bar, error) {
		bars, ok := f.data[sym]
		if !ok {
			return nil, errors.New("unknown symbol")
		}
		return bars, nil
	})
}

func TestParseStooqCSV(t *testing.T) {
	bars, err := parseStooqCSV([]byte("Date,Open,High,Low,Close,Volume\n2024-01-02,10,11,9,10.5,1200\n2024-01-03,10.5,12,10,11.5,1300\n"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 11.5, bars[1].Close)
	assert.Equal(t, 1300.0, bars[1].Volume)

	pl, err := parseStooqCSV([]byte("Data,Otwarcie,Najwyzszy,Najnizszy,Zamkniecie,Wolumen\n2024-01-02,10,11,9,10.5,1200\n"))
	require.NoError(t, err)
	require.Len(t, pl, 1)
	assert.Equal(t, 9.0, pl[0].Low)

	_, err = parseStooqCSV([]byte("No data"))
	assert.Error(t, err)
}

func TestStooqSourceOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "d", r.URL.Query().Get("i"))
		switch r.URL.Query().Get("s") {
		case "abc.us":
			fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n2023-12-30,1,1,1,1,1\n2024-01-02,10,11,9,10.5,1200\n")
		default:
			fmt.Fprint(w, "No data")
		}
	}))
	defer srv.Close()

	var seen []string
	s := NewStooq(SourceConfig{StooqURL: srv.URL + "/q/d/l/", Observer: func(src, sym string, err error) {
		seen = append(seen, fmt.Sprintf("%s:%s:%v", src, sym, err == nil))
	}})
	out, err := s.FetchHistory(context.Background(), []string{"ABC", "ZZZ"}, jan1, jan9)
	require.NoError(t, err)
	require.Contains(t, out, "ABC")
	assert.NotContains(t, out, "ZZZ")
	assert.Equal(t, 1, out["ABC"].Len(), "bars before start are dropped")
	assert.Equal(t, []string{"stooq:ABC:true", "stooq:ZZZ:false"}, seen)
}

func TestYahooSourceOverHTTP(t *testing.T) {
	ts1 := jan1.AddDate(0, 0, 1).Add(14 * time.Hour).Unix()
	ts2 := jan1.AddDate(0, 0, 2).Add(14 * time.Hour).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/BAD") {
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
			return
		}
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprintf(w, `{"chart":{"result":[{"timestamp":[%d,%d],"indicators":{"quote":[{
			"open":[10,null],"high":[11,12],"low":[9,10],"close":[10.5,11],"volume":[1000,2000]}]}}],"error":null}`, ts1, ts2)
	}))
	defer srv.Close()

	y := NewYahoo(SourceConfig{YahooURL: srv.URL + "/v8/finance/chart/"})
	out, err := y.FetchHistory(context.Background(), []string{"ABC", "BAD"}, jan1, jan9)
	require.NoError(t, err)
	require.Contains(t, out, "ABC")
	assert.NotContains(t, out, "BAD")
	require.Equal(t, 1, out["ABC"].Len(), "bars with null prices are skipped")
	assert.Equal(t, "2024-01-02", out["ABC"].Bars[0].Date.Format(types.DateLayout))
}

func TestFetchEachAllFailedIsNoPriceData(t *testing.T) {
	src := &fakeSource{name: "yahoo", data: map[string][]types.Bar{}}
	_, err := src.FetchHistory(context.Background(), []string{"A", "B"}, jan1, jan9)
	assert.True(t, errors.Is(err, types.ErrNoPriceData))
}

func TestAutoFallsBackPerSymbol(t *testing.T) {
	primary := &fakeSource{name: "yahoo", data: map[string][]types.Bar{"AAA": {bar(1, 10)}}}
	fallback := &fakeSource{name: "stooq", data: map[string][]types.Bar{"BBB": {bar(1, 20)}, "AAA": {bar(1, 99)}}}

	out, err := NewAuto(primary, fallback).FetchHistory(context.Background(), []string{"AAA", "BBB", "CCC"}, jan1, jan9)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out["AAA"].Bars[0].Close)
	assert.Equal(t, 20.0, out["BBB"].Bars[0].Close)
	assert.NotContains(t, out, "CCC")
	require.Len(t, fallback.calls, 1)
	assert.Equal(t, []string{"BBB", "CCC"}, fallback.calls[0])
}

func TestAutoWhenPrimaryReturnsNothing(t *testing.T) {
	primary := &fakeSource{name: "yahoo", data: map[string][]types.Bar{}}
	fallback := &fakeSource{name: "stooq", data: map[string][]types.Bar{"AAA": {bar(1, 20)}}}

	out, err := NewAuto(primary, fallback).FetchHistory(context.Background(), []string{"AAA"}, jan1, jan9)
	require.NoError(t, err)
	assert.Contains(t, out, "AAA")
}

func TestSnapshotRoundTripAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	existing := map[string]types.Series{
		"AAA": types.NewSeries("AAA", []types.Bar{bar(0, 10), bar(1, 11), bar(2, 12)}),
	}
	require.NoError(t, WriteSnapshot(path, existing))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, 3, loaded["AAA"].Len())
	assert.Equal(t, 12.0, loaded["AAA"].Bars[2].Close)

	fresh := map[string]types.Series{
		"AAA": types.NewSeries("AAA", []types.Bar{bar(2, 50), bar(3, 13)}),
		"BBB": types.NewSeries("BBB", []types.Bar{bar(3, 7)}),
	}
	merged := Merge(loaded, fresh, jan1.AddDate(0, 0, 1))
	require.Equal(t, 3, merged["AAA"].Len())
	assert.Equal(t, 11.0, merged["AAA"].Bars[0].Close)
	assert.Equal(t, 50.0, merged["AAA"].Bars[1].Close, "fresh wins on clash")
	assert.Equal(t, 1, merged["BBB"].Len())

	empty, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFetcherWritesSnapshotAndAuditLog(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "prices.csv")
	logPath := filepath.Join(dir, "fetch.log")
	audit, err := NewAuditLog(logPath)
	require.NoError(t, err)

	tally := NewTally()
	src := &fakeSource{name: "stooq", data: map[string][]types.Bar{"AAA": {bar(5, 10), bar(6, 11)}}}
	f := NewFetcher(observed{src, tally}, FetcherOptions{
		SnapshotPath: snap,
		LookbackDays: 30,
		Audit:        audit,
		Tally:        tally,
		Now:          func() time.Time { return jan9 },
	})

	out, err := f.Fetch(context.Background(), []string{"AAA", "ZZZ"})
	require.NoError(t, err)
	assert.Equal(t, 2, out["AAA"].Len())
	assert.NotContains(t, out, "ZZZ")

	_, err = os.Stat(snap)
	require.NoError(t, err)
	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Starting fetch")
	assert.Contains(t, string(logged), "Fetch complete")
	assert.Contains(t, string(logged), `"stooq_fail": 1`)
}

func TestFetcherReusesSnapshotWhenDownloadsFail(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, WriteSnapshot(snap, map[string]types.Series{
		"AAA": types.NewSeries("AAA", []types.Bar{bar(5, 10)}),
	}))

	f := NewFetcher(&fakeSource{name: "stooq"}, FetcherOptions{
		SnapshotPath: snap,
		LookbackDays: 30,
		Now:          func() time.Time { return jan9 },
	})
	out, err := f.Fetch(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	assert.Equal(t, 1, out["AAA"].Len())

	_, err = f.Fetch(context.Background(), []string{"ZZZ"})
	assert.True(t, errors.Is(err, types.ErrNoPriceData))
}

// observed routes a fake source's outcomes into a tally the way the real
// sources do through SourceConfig.Observer.
type observed struct {
	src   *fakeSource
	tally *Tally
}

func (o observed) Name() string { return o.src.Name() }

func (o observed) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string]types.Series, error) {
	out, err := o.src.FetchHistory(ctx, symbols, start, end)
	for _, s := range symbols {
		var symErr error
		if _, ok := out[s]; !ok {
			symErr = types.ErrSymbolDataMissing
		}
		o.tally.Observe(o.src.Name(), s, symErr)
	}
	return out, err
}
