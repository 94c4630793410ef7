package interfaces

import (
	"context"
	"time"

	"swing-signals/internal/types"
)

type WatchlistSource interface {
	FetchWatchlist(ctx context.Context, urls []string) ([]string, error)
}

type PriceSource interface {
	Name() string
	// FetchHistory returns the series of every symbol that produced data.
	// Symbols that failed are simply absent.
	FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string]types.Series, error)
}

// PriceFetcher returns the history window for a symbol list, combining the
// download with whatever the local snapshot already holds.
type PriceFetcher interface {
	Fetch(ctx context.Context, symbols []string) (map[string]types.Series, error)
}
