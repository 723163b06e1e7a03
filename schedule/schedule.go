// Package schedule owns the process-wide execution resources shared by
// concurrent exports: the bounded slide worker pool and the external-service
// call budget. Both are explicitly constructed and passed into pipelines so
// multiple instances can be tested in isolation.
package schedule

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many slides are processed simultaneously across all
// exports. Admission is first-come-first-served.
type Pool struct {
	slots  *semaphore.Weighted
	size   int
	active atomic.Int64
	peak   atomic.Int64
	closed atomic.Bool
}

// NewPool creates a pool admitting up to size concurrent units of work.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		slots: semaphore.NewWeighted(int64(size)),
		size:  size,
	}
}

// Size returns the configured concurrency limit.
func (p *Pool) Size() int { return p.size }

// Acquire blocks until a worker slot is free or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) error {
	if p.closed.Load() {
		return fmt.Errorf("worker pool is shut down")
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire worker slot: %w", err)
	}
	active := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if active <= peak || p.peak.CompareAndSwap(peak, active) {
			break
		}
	}
	return nil
}

// Release frees a worker slot acquired earlier.
func (p *Pool) Release() {
	p.active.Add(-1)
	p.slots.Release(1)
}

// Active returns how many units of work currently hold a slot.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Peak returns the highest simultaneous occupancy observed since creation.
// Used by tests to verify the concurrency bound.
func (p *Pool) Peak() int { return int(p.peak.Load()) }

// Shutdown refuses new admissions and waits for in-flight work to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closed.Store(true)
	if err := p.slots.Acquire(ctx, int64(p.size)); err != nil {
		return fmt.Errorf("failed to drain worker pool: %w", err)
	}
	p.slots.Release(int64(p.size))
	return nil
}

// Budget bounds concurrent calls to external recognition and inpainting
// services. It is deliberately separate from the worker pool: one slide may
// fan out several recognition calls, and the bottleneck is API quota rather
// than CPU count.
type Budget struct {
	calls *semaphore.Weighted
}

// NewBudget creates a budget admitting up to n concurrent external calls.
func NewBudget(n int) *Budget {
	if n < 1 {
		n = 1
	}
	return &Budget{calls: semaphore.NewWeighted(int64(n))}
}

// Do runs fn while holding one unit of the call budget.
func (b *Budget) Do(ctx context.Context, fn func() error) error {
	if err := b.calls.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire call budget: %w", err)
	}
	defer b.calls.Release(1)
	return fn()
}
