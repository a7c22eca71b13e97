// Package resilience bounds and isolates inference dispatch.
//
// Three patterns are provided and composed by the scheduler:
//
//   - Bulkhead: a fixed number of inference slots. TryAcquire never blocks,
//     so the scheduling loop can stop dispatching as soon as every slot is
//     busy. Drain reclaims every slot, which is how shutdown waits for
//     in-flight work.
//
//   - Await / Timeout: a deadline on a single call. On expiry the caller gets
//     ErrTimeout immediately while the operation keeps running in the
//     background; its eventual result is discarded.
//
//   - CircuitBreaker: after repeated failures, further calls are rejected
//     with ErrCircuitOpen until a reset timeout passes and a probe succeeds.
//
// # Usage
//
//	slots := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 2})
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 5})
//
//	if slots.TryAcquire() {
//	    go func() {
//	        defer slots.Release()
//	        mask, err := resilience.Guard(ctx, cb, func(ctx context.Context) (*frame.Mask, error) {
//	            return resilience.Await(ctx, 5*time.Second, infer)
//	        })
//	        ...
//	    }()
//	}
package resilience
