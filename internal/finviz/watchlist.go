package finviz

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
)

type watchlistRow struct {
	Ticker string `csv:"Ticker"`
}

// SaveWatchlist writes the symbols as a single-column CSV.
func SaveWatchlist(path string, tickers []string) error {
	rows := make([]*watchlistRow, 0, len(tickers))
	for _, t := range tickers {
		rows = append(rows, &watchlistRow{Ticker: t})
	}
	var buf bytes.Buffer
	if len(rows) == 0 {
		buf.WriteString("Ticker\n")
	} else if err := gocsv.Marshal(&rows, &buf); err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Union merges watchlists into one sorted, de-duplicated symbol list and
// keeps at most limit symbols (0 means no cap).
func Union(limit int, lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, t := range l {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
