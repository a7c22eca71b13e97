package pipeline

import (
	"context"
	"errors"
	"image"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/inferops/cache"
	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/observe"
	"github.com/jonwraymond/inferops/queue"
	"github.com/jonwraymond/inferops/resilience"
)

// inference is one executor answer, shared between identical in-flight frames.
type inference struct {
	mask       *frame.Mask
	confidence float64
}

// dispatch runs t to a terminal state. The slot taken by schedule is
// released on every path.
func (s *Scheduler) dispatch(ctx context.Context, t queue.Task) {
	defer s.signal()
	defer s.slots.Release()

	start := s.clock.Now()
	res := t.TargetResolution
	if res.IsZero() {
		res = s.controller.Resolution()
	}

	var (
		result ProcessingResult
		state  = StateDispatched
	)
	err := s.mw.Run(ctx, dispatchMeta, func(ctx context.Context) error {
		var err error
		result, state, err = s.process(ctx, t, res, start)
		return err
	},
		attribute.String("task.id", t.ID),
		attribute.String("resolution", res.String()),
	)

	switch state {
	case StateTimedOut:
		s.timedOut.Add(1)
		s.metrics.RecordTimeout(ctx)
		return
	case StateDropped:
		s.failed.Add(1)
		s.metrics.RecordFailure(ctx, failureReason(err))
		return
	case StateCacheHit:
		s.cacheHits.Add(1)
	case StateExecuted:
		s.controller.Observe(result.ProcessingTime)
	}

	select {
	case s.completed <- result:
	default:
		s.released.Add(1)
		s.metrics.RecordDropped(ctx, 1, observe.DropBacklog)
	}
}

// process serves t from the cache or the executor. The returned state is
// CacheHit or Executed on success, TimedOut or Dropped otherwise.
func (s *Scheduler) process(ctx context.Context, t queue.Task, res frame.Resolution, start time.Time) (ProcessingResult, State, error) {
	result := ProcessingResult{TaskID: t.ID}

	var (
		mask       *frame.Mask
		confidence float64
		fromCache  bool
		err        error
	)
	if s.cached != nil {
		var out cache.Outcome
		out, err = s.cached.Execute(ctx, t.Image, func(ctx context.Context, img image.Image) (*frame.Mask, float64, error) {
			return s.infer(ctx, img, res)
		})
		mask, confidence, fromCache = out.Mask, out.Confidence, out.FromCache
	} else {
		mask, confidence, err = s.infer(ctx, t.Image, res)
	}

	if err != nil {
		if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return result, StateTimedOut, err
		}
		return result, StateDropped, err
	}

	now := s.clock.Now()
	result.Mask = mask.Clone()
	result.Confidence = confidence
	result.FromCache = fromCache
	result.Resolution = mask.Resolution()
	result.ProcessingTime = now.Sub(start)
	result.CompletedAt = now

	if fromCache {
		return result, StateCacheHit, nil
	}
	return result, StateExecuted, nil
}

// infer resizes img to res and runs it on the executor worker under the
// circuit breaker and the processing timeout. Concurrent calls for the same
// frame at the same resolution share one executor call.
func (s *Scheduler) infer(ctx context.Context, img image.Image, res frame.Resolution) (*frame.Mask, float64, error) {
	key, err := frame.Fingerprint(img)
	if err != nil {
		return nil, 0, err
	}

	v, err, _ := s.flight.Do(string(key)+"@"+res.String(), func() (any, error) {
		return resilience.Guard(ctx, s.breaker, func(ctx context.Context) (inference, error) {
			return resilience.Await(ctx, s.cfg.ProcessingTimeout, func(ctx context.Context) (inference, error) {
				resized, err := frame.Resize(img, res)
				if err != nil {
					return inference{}, err
				}
				// ctx ends at the deadline; the executor may never see it.
				mask, conf, err := s.worker.Infer(ctx, resized, res)
				if err != nil {
					return inference{}, err
				}
				if mask.Empty() {
					return inference{}, ErrEmptyMask
				}
				return inference{mask: mask, confidence: conf}, nil
			})
		})
	})
	if err != nil {
		return nil, 0, err
	}
	out := v.(inference)
	return out.mask, out.confidence, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, frame.ErrEmptyImage):
		return "empty_image"
	case errors.Is(err, ErrEmptyMask):
		return "empty_mask"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "executor"
	}
}
