package interfaces

import (
	"context"

	"swing-signals/internal/types"
)

type SignalWriter interface {
	// WriteSignals merges the run's signals into the per-strategy and
	// combined tables on disk.
	WriteSignals(ctx context.Context, byStrategy map[string][]types.Signal) (types.WriteResult, error)
	WriteFeatures(ctx context.Context, rows []types.FeatureRow) (path string, err error)
}
