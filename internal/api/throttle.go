package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle keeps at least interval between requests sharing a key
// (normally the request host). A zero interval never waits.
type Throttle struct {
	interval time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[key] = l
	}
	return l
}

// Wait blocks until a request for key may go out or ctx is done.
func (t *Throttle) Wait(ctx context.Context, key string) error {
	if t == nil || t.interval <= 0 {
		return ctx.Err()
	}
	return t.limiter(key).Wait(ctx)
}
