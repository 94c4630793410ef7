package interfaces

import (
	"context"

	"swing-signals/internal/types"
)

type Pipeline interface {
	Run(ctx context.Context) (*types.RunSummary, error)
}
