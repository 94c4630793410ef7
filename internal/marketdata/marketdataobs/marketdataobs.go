package marketdataobs

import (
	"context"
	"time"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/trace"
	"swing-signals/internal/types"
)

type observablePriceSource struct {
	source interfaces.PriceSource
}

var _ interfaces.PriceSource = (*observablePriceSource)(nil)

func Wrap(source interfaces.PriceSource) interfaces.PriceSource {
	return &observablePriceSource{source: source}
}

func (o *observablePriceSource) Name() string {
	return o.source.Name()
}

func (o *observablePriceSource) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string]types.Series, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.FetchHistory")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Downloading price history",
		"source", o.source.Name(),
		"symbols", len(symbols),
		"start", start.Format(types.DateLayout),
		"end", end.Format(types.DateLayout),
	)

	out, err := o.source.FetchHistory(ctx, symbols, start, end)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Price history download failed", err,
			"source", o.source.Name(),
			"symbols", len(symbols),
			"with_data", len(out),
		)
		return out, err
	}

	logger.InfoSkip(ctx, 1, "Price history downloaded",
		"source", o.source.Name(),
		"symbols", len(symbols),
		"with_data", len(out),
	)
	return out, nil
}
