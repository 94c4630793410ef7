package finvizobs

import (
	"context"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/trace"
)

type observableWatchlistSource struct {
	source interfaces.WatchlistSource
}

var _ interfaces.WatchlistSource = (*observableWatchlistSource)(nil)

func Wrap(source interfaces.WatchlistSource) interfaces.WatchlistSource {
	return &observableWatchlistSource{source: source}
}

func (o *observableWatchlistSource) FetchWatchlist(ctx context.Context, urls []string) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "finviz.FetchWatchlist")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching watchlist", "urls", len(urls))

	tickers, err := o.source.FetchWatchlist(ctx, urls)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Watchlist fetch failed", err, "urls", len(urls))
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Watchlist fetched", "urls", len(urls), "tickers", len(tickers))
	return tickers, nil
}
