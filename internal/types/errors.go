package types

import "errors"

var (
	// ErrSourceUnavailable means a strategy's watchlist could not be scraped.
	// The strategy is skipped for the run.
	ErrSourceUnavailable = errors.New("watchlist source unavailable")

	// ErrSymbolDataMissing means no usable price history came back for a symbol.
	ErrSymbolDataMissing = errors.New("symbol price data missing")

	// ErrInsufficientHistory means a series is too short to carry a signal.
	// The symbol still reaches the features table; indicators report NaN for
	// short windows instead of returning it.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNoPriceData means no symbol at all produced price data and no
	// snapshot was available to fall back on.
	ErrNoPriceData = errors.New("no price data downloaded")
)
