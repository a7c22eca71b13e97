package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/inferops/clock"
)

// Janitor sweeps expired entries from a Cache on a fixed interval.
type Janitor struct {
	cache    Cache
	interval time.Duration
	clock    clock.Clock

	// OnSweep, if set, is called after every sweep with the number removed.
	OnSweep func(removed int)
}

// NewJanitor creates a janitor for c. A non-positive interval defaults to 10s.
func NewJanitor(c Cache, interval time.Duration, clk clock.Clock) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Janitor{
		cache:    c,
		interval: interval,
		clock:    clock.OrReal(clk),
	}
}

// Run sweeps until ctx is done. It always returns nil so it can sit in an errgroup.
func (j *Janitor) Run(ctx context.Context) error {
	if j.cache == nil {
		return ErrNilCache
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed := j.cache.Sweep(j.clock.Now())
			if j.OnSweep != nil {
				j.OnSweep(removed)
			}
		}
	}
}
