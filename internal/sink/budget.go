package sink

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ByteBudget bounds the number of payload bytes in flight across every sink
// sharing it. Acquire blocks the calling dispatch goroutine until enough of the
// budget is free.
type ByteBudget struct {
	max int64
	sem *semaphore.Weighted
}

// NewByteBudget creates a budget of max bytes. A max ≤ 0 returns nil, which
// never blocks.
func NewByteBudget(max int64) *ByteBudget {
	if max <= 0 {
		return nil
	}
	return &ByteBudget{max: max, sem: semaphore.NewWeighted(max)}
}

// Max returns the budget size in bytes.
func (b *ByteBudget) Max() int64 {
	if b == nil {
		return 0
	}
	return b.max
}

// Acquire reserves n bytes and returns the amount actually reserved, which
// must be passed to Release. Requests larger than the budget reserve the
// whole budget.
func (b *ByteBudget) Acquire(ctx context.Context, n int64) (int64, error) {
	if b == nil || n <= 0 {
		return 0, nil
	}
	if n > b.max {
		n = b.max
	}
	if err := b.sem.Acquire(ctx, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Release returns n bytes to the budget.
func (b *ByteBudget) Release(n int64) {
	if b == nil || n <= 0 {
		return
	}
	b.sem.Release(n)
}
