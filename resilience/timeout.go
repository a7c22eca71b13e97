package resilience

import (
	"context"
	"errors"
	"time"
)

// Await runs op with a deadline of d.
//
// When the deadline passes first, Await returns ErrTimeout at once. op keeps
// running with a cancelled context and whatever it eventually returns is
// dropped. Cancellation of the parent ctx is returned as ctx.Err().
func Await[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation.
	// Default: 5 seconds
	Timeout time.Duration
}

// Timeout applies a fixed deadline to operations.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op with the configured deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := Await(ctx, t.config.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
