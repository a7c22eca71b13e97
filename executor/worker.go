package executor

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/inferops/frame"
)

// DefaultBacklog is the request channel capacity of a Worker.
const DefaultBacklog = 8

// Request is one inference call.
type Request struct {
	Image      image.Image
	Resolution frame.Resolution
}

// Response is the outcome of a Request.
type Response struct {
	Mask       *frame.Mask
	Confidence float64
	Err        error
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Worker serializes inference onto one goroutine locked to its OS thread.
//
// Contract:
// - Concurrency: Submit is safe for concurrent use.
// - Lifecycle: Start once, Stop once; Submit after Stop fails fast.
// - Replies: each Submit receives exactly one Response.
type Worker struct {
	exec    Executor
	backlog int

	requests chan job
	done     chan struct{}
	stopped  chan struct{}

	mu       sync.RWMutex
	started  atomic.Bool
	stopOnce sync.Once
	pending  atomic.Int64
	served   atomic.Uint64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithBacklog sets the request channel capacity. Default: DefaultBacklog
func WithBacklog(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.backlog = n
		}
	}
}

// NewWorker creates a Worker for exec.
func NewWorker(exec Executor, opts ...WorkerOption) (*Worker, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}
	w := &Worker{
		exec:    exec,
		backlog: DefaultBacklog,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.requests = make(chan job, w.backlog)
	return w, nil
}

// Start launches the worker goroutine and initializes the executor on it.
// It returns once initialization finished; a failure is wrapped in
// ErrContextStart and leaves the worker stopped. Cancelling ctx afterwards
// stops the worker.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrWorkerStarted
	}

	ready := make(chan error, 1)
	go w.run(ready)

	if err := <-ready; err != nil {
		w.Stop()
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()
	return nil
}

func (w *Worker) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.stopped)

	if s, ok := w.exec.(Starter); ok {
		if err := s.Start(); err != nil {
			ready <- fmt.Errorf("%w: %w", ErrContextStart, err)
			return
		}
	}
	if s, ok := w.exec.(Stopper); ok {
		defer s.Stop()
	}
	ready <- nil

	for {
		select {
		case <-w.done:
			w.rejectBacklog()
			return
		case j := <-w.requests:
			w.serve(j)
		}
	}
}

func (w *Worker) serve(j job) {
	defer w.pending.Add(-1)

	if err := j.ctx.Err(); err != nil {
		j.reply <- Response{Err: err}
		return
	}
	j.reply <- w.infer(j)
	w.served.Add(1)
}

func (w *Worker) infer(j job) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = Response{Err: fmt.Errorf("%w: %v", ErrInferencePanic, r)}
		}
	}()
	mask, conf, err := w.exec.Infer(j.ctx, j.req.Image, j.req.Resolution)
	return Response{Mask: mask, Confidence: conf, Err: err}
}

func (w *Worker) rejectBacklog() {
	for {
		select {
		case j := <-w.requests:
			j.reply <- Response{Err: ErrWorkerStopped}
			w.pending.Add(-1)
		default:
			return
		}
	}
}

// Submit queues req and returns the channel its Response will arrive on.
// The channel is buffered, so the worker never blocks on a caller that has
// stopped listening.
func (w *Worker) Submit(ctx context.Context, req Request) <-chan Response {
	reply := make(chan Response, 1)

	// Stop takes the write lock before closing done, so a job sent under the
	// read lock is always seen by the worker or by rejectBacklog.
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.started.Load() || w.isStopping() {
		reply <- Response{Err: ErrWorkerStopped}
		return reply
	}

	w.pending.Add(1)
	select {
	case w.requests <- job{ctx: ctx, req: req, reply: reply}:
	case <-ctx.Done():
		w.pending.Add(-1)
		reply <- Response{Err: ctx.Err()}
	}
	return reply
}

func (w *Worker) isStopping() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Infer submits a request and waits for its response or ctx.
func (w *Worker) Infer(ctx context.Context, img image.Image, res frame.Resolution) (*frame.Mask, float64, error) {
	select {
	case resp := <-w.Submit(ctx, Request{Image: img, Resolution: res}):
		return resp.Mask, resp.Confidence, resp.Err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

// Stop stops the worker and waits for the in-progress request, if any, to
// finish. Queued requests are answered with ErrWorkerStopped.
func (w *Worker) Stop() {
	_ = w.StopContext(context.Background())
}

// StopContext is Stop bounded by ctx. When ctx ends first it returns
// ctx.Err() without waiting for the in-progress request; the worker
// goroutine exits once the executor returns.
func (w *Worker) StopContext(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		close(w.done)
		w.mu.Unlock()
	})
	if !w.started.Load() {
		return nil
	}
	defer w.rejectBacklog()

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of submitted requests not yet answered.
func (w *Worker) Pending() int {
	return int(w.pending.Load())
}

// Served returns the number of requests that reached the executor.
func (w *Worker) Served() uint64 {
	return w.served.Load()
}

var _ Executor = (*Worker)(nil)
