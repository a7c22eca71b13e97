package resilience

import (
	"context"
	"sync"
	"time"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the number of slots.
	// Default: 2
	MaxConcurrent int

	// MaxWait bounds how long Acquire waits for a slot.
	// Default: 0 (fail immediately)
	MaxWait time.Duration
}

// Bulkhead is a fixed pool of execution slots.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Bound: Active never exceeds MaxConcurrent.
// - Release must be called exactly once per successful acquire.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
	acquired  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// TryAcquire takes a slot if one is free and reports whether it did.
// It never blocks and does not count a rejection.
func (b *Bulkhead) TryAcquire() bool {
	select {
	case b.sem <- struct{}{}:
		b.acquiredSlot()
		return true
	default:
		return false
	}
}

// Acquire takes a slot, waiting up to MaxWait.
// Returns ErrBulkheadFull when none frees up in time.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.TryAcquire() {
		return nil
	}
	if b.config.MaxWait <= 0 {
		b.reject()
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		b.acquiredSlot()
		return nil
	case <-timer.C:
		b.reject()
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) acquiredSlot() {
	b.mu.Lock()
	b.active++
	b.acquired++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
}

func (b *Bulkhead) reject() {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
}

// Release returns a slot.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	default:
	}
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Drain takes every slot, waiting for current holders to release theirs.
// Once it returns nil no further acquire succeeds. On ctx expiry the slots
// taken so far are given back.
func (b *Bulkhead) Drain(ctx context.Context) error {
	taken := 0
	for taken < b.config.MaxConcurrent {
		select {
		case b.sem <- struct{}{}:
			taken++
		case <-ctx.Done():
			for ; taken > 0; taken-- {
				<-b.sem
			}
			return ctx.Err()
		}
	}
	return nil
}

// Active returns the number of held slots.
func (b *Bulkhead) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Available:     b.config.MaxConcurrent - len(b.sem),
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected,
		Acquired:      b.acquired,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
	Acquired      int64
}
