package engineobs

import (
	"context"
	"time"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/trace"
	"swing-signals/internal/types"
)

type observablePipeline struct {
	pipeline interfaces.Pipeline
}

var _ interfaces.Pipeline = (*observablePipeline)(nil)

func Wrap(p interfaces.Pipeline) interfaces.Pipeline {
	return &observablePipeline{
		pipeline: p,
	}
}

func (op *observablePipeline) Run(ctx context.Context) (*types.RunSummary, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting pipeline run")

	sum, err := op.pipeline.Run(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Pipeline run failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return sum, err
	}

	logger.InfoSkip(ctx, 1, "Pipeline run completed",
		"strategies", sum.Strategies,
		"skipped_sources", len(sum.SkippedSources),
		"union_tickers", sum.UnionTickers,
		"symbols_with_data", sum.SymbolsWithData,
		"combined_rows", sum.CombinedRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return sum, nil
}
