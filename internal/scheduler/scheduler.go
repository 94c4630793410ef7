// Package scheduler runs the pipeline on a cron schedule for daemon mode.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
)

// Scheduler triggers Pipeline.Run on every tick of a standard five-field
// cron expression. A run still in progress when the next tick fires makes
// that tick a no-op.
type Scheduler struct {
	cron     *cron.Cron
	pipeline interfaces.Pipeline
	entry    cron.EntryID
	ctx      context.Context
}

func New(expr string, loc *time.Location, p interfaces.Pipeline) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{}
	s := &Scheduler{
		pipeline: p,
		ctx:      context.Background(),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	id, err := s.cron.AddFunc(expr, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	s.entry = id
	return s, nil
}

// Start begins scheduling. Runs use ctx, so cancelling it aborts an
// in-flight run.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	logger.Info(ctx, "Scheduler started", "next_run", s.Next().Format(time.RFC3339))
}

// Stop prevents further runs and waits for a running one to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) tick() {
	ctx := s.ctx
	if ctx.Err() != nil {
		return
	}
	if _, err := s.pipeline.Run(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Scheduled run failed", err)
	}
	logger.Info(ctx, "Next scheduled run", "at", s.Next().Format(time.RFC3339))
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug(context.Background(), "cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.ErrorWithErr(context.Background(), "cron: "+msg, err, keysAndValues...)
}
