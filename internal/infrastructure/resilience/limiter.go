package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of outstanding upstream calls. A nil Limiter or a
// non-positive size means unbounded.
type Limiter struct {
	sem *semaphore.Weighted
}

func NewLimiter(size int) *Limiter {
	if size <= 0 {
		return &Limiter{}
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(size))}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func must be called exactly once.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l == nil || l.sem == nil {
		return func() {}, nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}
