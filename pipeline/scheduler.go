package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/inferops/cache"
	"github.com/jonwraymond/inferops/clock"
	"github.com/jonwraymond/inferops/executor"
	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/observe"
	"github.com/jonwraymond/inferops/quality"
	"github.com/jonwraymond/inferops/queue"
	"github.com/jonwraymond/inferops/resilience"
)

var (
	schedulerMeta = observe.ComponentMeta{Component: "pipeline", Operation: "schedule"}
	dispatchMeta  = observe.ComponentMeta{Component: "pipeline", Operation: "dispatch"}
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCache enables result caching. Results are stored when their
// confidence exceeds Config.CacheMinConfidence. A *cache.MemoryCache is also
// swept on its policy interval while the scheduler runs.
func WithCache(c cache.Cache) Option {
	return func(s *Scheduler) {
		s.cache = c
	}
}

// WithScorer sets the quality scorer. Default: quality.DefaultConfig().
func WithScorer(sc *quality.Scorer) Option {
	return func(s *Scheduler) {
		s.scorer = sc
	}
}

// WithObserver takes the tracer, meter and logger from obs. WithLogger and
// WithMetrics override the corresponding parts.
func WithObserver(obs observe.Observer) Option {
	return func(s *Scheduler) {
		s.observer = obs
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l observe.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: no-op.
func WithMetrics(m observe.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithClock sets the clock used for task timing.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock.OrReal(c)
	}
}

// WithHandlers sets the event handlers.
func WithHandlers(h Handlers) Option {
	return func(s *Scheduler) {
		s.handlers = h
	}
}

// WithCircuitBreaker replaces the default executor breaker. A nil breaker
// disables it.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Scheduler) {
		s.breaker = cb
		s.breakerSet = true
	}
}

// Scheduler runs frames through cache, executor and scorer.
//
// Contract:
// - Concurrency: Submit, Enqueue, Stats and Shutdown are safe for concurrent use.
// - Producers: Submit and Enqueue never block on inference.
// - Bound: at most Config.MaxConcurrentTasks dispatches are in flight.
// - Lifecycle: Start once; Shutdown is idempotent and closes Results.
type Scheduler struct {
	cfg Config

	worker     *executor.Worker
	queue      *queue.AdmissionQueue
	slots      *resilience.Bulkhead
	breaker    *resilience.CircuitBreaker
	breakerSet bool
	cache      cache.Cache
	cached     *cache.Middleware
	janitor    *cache.Janitor
	scorer     *quality.Scorer
	controller *Controller
	flight     singleflight.Group

	clock    clock.Clock
	observer observe.Observer
	logger   observe.Logger
	metrics  observe.Metrics
	mw       *observe.Middleware
	handlers Handlers

	completed chan ProcessingResult
	results   chan ProcessingResult
	wake      chan struct{}

	// lifecycle orders dispatch starts against Shutdown.
	lifecycle sync.Mutex
	started   bool
	stopped   bool
	running   atomic.Bool
	cancel    context.CancelFunc
	group     *errgroup.Group

	shutdownOnce sync.Once
	shutdownErr  error

	processed   atomic.Uint64
	released    atomic.Uint64
	undelivered atomic.Uint64
	timedOut    atomic.Uint64
	failed      atomic.Uint64
	cacheHits   atomic.Uint64
}

// New creates a Scheduler that runs exec on a dedicated worker context.
func New(cfg Config, exec executor.Executor, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, ErrNilExecutor
	}

	s := &Scheduler{
		cfg:        cfg,
		clock:      clock.Real{},
		controller: NewController(cfg),
		slots:      resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: cfg.MaxConcurrentTasks}),
		completed:  make(chan ProcessingResult, cfg.ResultBuffer),
		results:    make(chan ProcessingResult, cfg.ResultBuffer),
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	var tracer observe.Tracer
	if s.observer != nil {
		tracer = observe.NewTracer(s.observer.Tracer())
		if s.logger == nil {
			s.logger = s.observer.Logger()
		}
		if s.metrics == nil {
			m, err := observe.NewMetrics(s.observer.Meter())
			if err != nil {
				return nil, fmt.Errorf("pipeline: metrics: %w", err)
			}
			s.metrics = m
		}
	}
	if s.logger == nil {
		s.logger = observe.NopLogger()
	}
	s.logger = s.logger.WithComponent(schedulerMeta)
	if s.metrics == nil {
		s.metrics = observe.NopMetrics()
	}
	s.mw = observe.NewMiddleware(tracer, s.metrics, s.logger)

	worker, err := executor.NewWorker(exec, executor.WithBacklog(cfg.MaxConcurrentTasks))
	if err != nil {
		return nil, err
	}
	s.worker = worker

	s.queue, err = queue.New(cfg.InputQueueSize,
		queue.WithClock(s.clock),
		queue.WithOverflowHandler(s.onOverflow),
		queue.WithEvictHandler(s.onEvict),
	)
	if err != nil {
		return nil, err
	}

	if s.scorer == nil {
		s.scorer, err = quality.NewScorer(quality.DefaultConfig(),
			quality.WithClock(s.clock),
			quality.WithLogger(s.logger),
		)
		if err != nil {
			return nil, err
		}
	}

	if !s.breakerSet {
		s.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Clock:         s.clock,
			OnStateChange: s.onBreakerChange,
		})
	}

	if s.cache != nil {
		policy := cache.DefaultPolicy()
		if p, ok := s.cache.(interface{ Policy() cache.Policy }); ok {
			policy = p.Policy()
		}
		policy.MinConfidence = cfg.CacheMinConfidence
		s.cached = cache.NewMiddleware(s.cache, policy, cfg.CacheHitSimilarity)
		if policy.ShouldCache() {
			s.janitor = cache.NewJanitor(s.cache, policy.SweepInterval, s.clock)
		}
	}
	return s, nil
}

// Start initializes the executor context and launches the scheduling loop,
// the delivery loop and the cache janitor. An executor that fails to start
// is the only fatal error; it is returned wrapping executor.ErrContextStart.
// Cancelling ctx stops the loops and admission without draining; call
// Shutdown for an orderly stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	switch {
	case s.stopped:
		return ErrShutdown
	case s.started:
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.worker.Start(runCtx); err != nil {
		cancel()
		s.logger.Error(ctx, "executor failed to start", observe.Field{Key: "error", Value: err})
		return err
	}

	s.running.Store(true)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.scheduleLoop(gctx) })
	g.Go(func() error { return s.deliverLoop(gctx) })
	if s.janitor != nil {
		g.Go(func() error { return s.janitor.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		s.running.Store(false)
		s.queue.Close()
		return nil
	})

	s.started = true
	s.cancel = cancel
	s.group = g

	res := s.controller.Resolution()
	s.metrics.RecordResolution(ctx, res.Width, res.Height)
	s.logger.Info(ctx, "scheduler started",
		observe.Field{Key: "max_concurrent_tasks", Value: s.cfg.MaxConcurrentTasks},
		observe.Field{Key: "input_queue_size", Value: s.cfg.InputQueueSize},
		observe.Field{Key: "resolution", Value: res.String()},
	)
	return nil
}

// Submit enqueues img at priority and returns the task ID and whether the
// frame was admitted.
func (s *Scheduler) Submit(img image.Image, priority float64) (string, bool) {
	t := queue.Task{ID: queue.NewID(), Image: img, Priority: priority}
	return t.ID, s.Enqueue(t)
}

// Enqueue admits t without blocking. A zero TargetResolution is resolved
// to the controller target when the task is dispatched.
func (s *Scheduler) Enqueue(t queue.Task) bool {
	if !s.queue.Enqueue(t) {
		return false
	}
	s.metrics.RecordEnqueued(context.Background())
	s.signal()
	return true
}

// Results returns the delivery channel. It is closed by Shutdown.
func (s *Scheduler) Results() <-chan ProcessingResult {
	return s.results
}

// Resolution returns the current adaptive target resolution.
func (s *Scheduler) Resolution() frame.Resolution {
	return s.controller.Resolution()
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		QueueDepth:        s.queue.Len(),
		ActiveTasks:       s.slots.Active(),
		AvgProcessingTime: s.controller.Average(),
		TotalProcessed:    s.processed.Load(),
		TotalDropped:      s.queue.Dropped() + s.released.Load(),
		Undelivered:       s.undelivered.Load(),
		TimedOut:          s.timedOut.Load(),
		Failed:            s.failed.Load(),
		CacheHits:         s.cacheHits.Load(),
		CurrentResolution: s.controller.Resolution(),
		Running:           s.running.Load(),
	}
}

// Shutdown stops admission, releases queued tasks, waits for in-flight
// dispatches until ctx is done, stops the loops and the executor worker,
// releases undelivered results and closes Results. An executor call that
// outlives ctx is abandoned and ctx.Err() is returned. Later calls return
// the first call's error.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	s.lifecycle.Lock()
	s.stopped = true
	s.running.Store(false)
	started := s.started
	s.lifecycle.Unlock()

	s.queue.Close()
	s.release(ctx, len(s.queue.Drain()))

	var err error
	if started {
		if err = s.slots.Drain(ctx); err != nil {
			s.logger.Warn(ctx, "shutdown before in-flight dispatches finished",
				observe.Field{Key: "active", Value: s.slots.Active()},
				observe.Field{Key: "error", Value: err},
			)
		}
		s.cancel()
		_ = s.group.Wait()
		if werr := s.worker.StopContext(ctx); werr != nil {
			s.logger.Warn(ctx, "executor call still running at shutdown deadline",
				observe.Field{Key: "error", Value: werr},
			)
			if err == nil {
				err = werr
			}
		}
	}

	pending := 0
drain:
	for {
		select {
		case <-s.completed:
			pending++
		default:
			break drain
		}
	}
	s.release(ctx, pending)
	close(s.results)

	st := s.Stats()
	s.logger.Info(ctx, "scheduler stopped",
		observe.Field{Key: "processed", Value: st.TotalProcessed},
		observe.Field{Key: "dropped", Value: st.TotalDropped},
		observe.Field{Key: "timed_out", Value: st.TimedOut},
		observe.Field{Key: "failed", Value: st.Failed},
	)
	return err
}

func (s *Scheduler) release(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	s.released.Add(uint64(n))
	s.metrics.RecordDropped(ctx, int64(n), observe.DropShutdown)
}

// signal wakes the scheduling loop without blocking.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) scheduleLoop(ctx context.Context) error {
	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	var adapt <-chan time.Time
	if s.cfg.DynamicQuality {
		t := time.NewTicker(s.cfg.AdaptInterval)
		defer t.Stop()
		adapt = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-adapt:
			s.adapt(ctx)
			continue
		case <-poll.C:
		case <-s.wake:
		}
		s.schedule(ctx)
	}
}

// schedule dispatches queued tasks while slots are free.
func (s *Scheduler) schedule(ctx context.Context) {
	for s.slots.TryAcquire() {
		s.lifecycle.Lock()
		if !s.running.Load() {
			s.lifecycle.Unlock()
			s.slots.Release()
			return
		}
		t, ok := s.queue.Dequeue()
		if !ok {
			s.lifecycle.Unlock()
			s.slots.Release()
			return
		}
		go s.dispatch(ctx, t)
		s.lifecycle.Unlock()
	}
}

func (s *Scheduler) adapt(ctx context.Context) {
	from := s.controller.Resolution()
	to, adj := s.controller.Adapt()
	if adj == AdjustNone {
		return
	}
	s.metrics.RecordResolution(ctx, to.Width, to.Height)
	s.logger.Info(ctx, "resolution adjusted",
		observe.Field{Key: "adjustment", Value: adj.String()},
		observe.Field{Key: "from", Value: from.String()},
		observe.Field{Key: "to", Value: to.String()},
		observe.Field{Key: "avg_processing_ms", Value: float64(s.controller.Average().Microseconds()) / 1000},
	)
	if h := s.handlers.OnResolutionChanged; h != nil {
		h(from, to)
	}
}

func (s *Scheduler) deliverLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-s.completed:
			s.deliver(ctx, r)
		}
	}
}

// deliver scores r and hands it to the handlers and the Results channel.
func (s *Scheduler) deliver(ctx context.Context, r ProcessingResult) {
	r.Quality = s.scorer.Score(r.Mask, true)
	if s.scorer.Config().Enabled && !r.Mask.Empty() {
		s.metrics.RecordQuality(ctx, r.Quality.OverallQuality)
		if h := s.handlers.OnQualityAnalyzed; h != nil {
			h(r.Quality)
		}
		if !r.Quality.Acceptable(s.scorer.Config().MinQualityThreshold) {
			r.Issues = quality.IdentifyIssues(r.Quality)
			if h := s.handlers.OnLowQuality; h != nil {
				h(r.Quality, r.Issues)
			}
		}
	}

	s.processed.Add(1)
	s.metrics.RecordProcessed(ctx, r.ProcessingTime, r.FromCache)
	if h := s.handlers.OnProcessingCompleted; h != nil {
		h(r)
	}

	select {
	case s.results <- r:
	default:
		s.undelivered.Add(1)
		s.metrics.RecordDropped(ctx, 1, observe.DropUndelivered)
	}
}

func (s *Scheduler) onOverflow(dropped uint64) {
	ctx := context.Background()
	s.metrics.RecordDropped(ctx, 1, observe.DropOverflow)
	s.logger.Debug(ctx, "frame rejected, queue full", observe.Field{Key: "dropped_total", Value: dropped})
	if h := s.handlers.OnQueueOverflow; h != nil {
		h(dropped)
	}
}

func (s *Scheduler) onEvict(n int) {
	s.metrics.RecordDropped(context.Background(), int64(n), observe.DropStale)
}

func (s *Scheduler) onBreakerChange(from, to resilience.State) {
	s.logger.Warn(context.Background(), "executor circuit "+to.String(),
		observe.Field{Key: "from", Value: from.String()},
	)
}
