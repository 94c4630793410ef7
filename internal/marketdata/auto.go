package marketdata

import (
	"context"
	"errors"
	"time"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/types"
)

// Auto asks the primary source first and retries only the symbols it
// missed against the fallback.
type Auto struct {
	primary  interfaces.PriceSource
	fallback interfaces.PriceSource
}

func NewAuto(primary, fallback interfaces.PriceSource) *Auto {
	return &Auto{primary: primary, fallback: fallback}
}

func (a *Auto) Name() string { return KindAuto }

func (a *Auto) FetchHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string]types.Series, error) {
	out, err := a.primary.FetchHistory(ctx, symbols, start, end)
	if err != nil && !errors.Is(err, types.ErrNoPriceData) {
		return out, err
	}
	if out == nil {
		out = make(map[string]types.Series)
	}

	var missing []string
	for _, s := range symbols {
		if _, ok := out[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	logger.Info(ctx, "Falling back for missing symbols",
		"primary", a.primary.Name(), "fallback", a.fallback.Name(), "symbols", len(missing))
	more, err := a.fallback.FetchHistory(ctx, missing, start, end)
	for sym, s := range more {
		out[sym] = s
	}
	if len(out) == 0 {
		return out, err
	}
	if err != nil && !errors.Is(err, types.ErrNoPriceData) {
		return out, err
	}
	return out, nil
}
