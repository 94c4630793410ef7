package eodobs

import (
	"context"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/trace"
	"swing-signals/internal/types"
)

type observableSignalWriter struct {
	writer interfaces.SignalWriter
}

var _ interfaces.SignalWriter = (*observableSignalWriter)(nil)

func Wrap(writer interfaces.SignalWriter) interfaces.SignalWriter {
	return &observableSignalWriter{
		writer: writer,
	}
}

func (ow *observableSignalWriter) WriteSignals(ctx context.Context, byStrategy map[string][]types.Signal) (types.WriteResult, error) {
	ctx, span := trace.StartSpan(ctx, "eod.WriteSignals")
	defer span.End()

	fresh := 0
	for _, sigs := range byStrategy {
		fresh += len(sigs)
	}
	logger.InfoSkip(ctx, 1, "Writing signal tables",
		"strategies", len(byStrategy),
		"new_rows", fresh,
	)

	res, err := ow.writer.WriteSignals(ctx, byStrategy)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Signal tables write failed", err,
			"files_written", len(res.Files),
		)
		return res, err
	}

	logger.InfoSkip(ctx, 1, "Signal tables written",
		"files", len(res.Files),
		"combined_rows", res.CombinedRows,
	)
	return res, nil
}

func (ow *observableSignalWriter) WriteFeatures(ctx context.Context, rows []types.FeatureRow) (string, error) {
	ctx, span := trace.StartSpan(ctx, "eod.WriteFeatures")
	defer span.End()

	path, err := ow.writer.WriteFeatures(ctx, rows)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Features write failed", err,
			"rows", len(rows),
		)
		return "", err
	}

	logger.DebugSkip(ctx, 1, "Features written",
		"rows", len(rows),
		"path", path,
	)
	return path, nil
}
