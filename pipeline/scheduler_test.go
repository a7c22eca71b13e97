package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/inferops/cache"
	"github.com/jonwraymond/inferops/executor"
	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/health"
	"github.com/jonwraymond/inferops/quality"
	"github.com/jonwraymond/inferops/queue"
	"github.com/jonwraymond/inferops/resilience"
)

// stubExec answers with a uniform mask. When gate is set each call blocks
// until the gate is closed or ctx is done.
type stubExec struct {
	conf  float64
	err   error
	delay time.Duration
	gate  chan struct{}
	once  sync.Once
	calls atomic.Int32
}

func (e *stubExec) open() {
	e.once.Do(func() { close(e.gate) })
}

func (e *stubExec) Infer(ctx context.Context, img image.Image, r frame.Resolution) (*frame.Mask, float64, error) {
	e.calls.Add(1)
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.err != nil {
		return nil, 0, e.err
	}
	return frame.NewUniformMask(r.Width, r.Height, 0.8), e.conf, nil
}

// stubbornExec never looks at ctx: each call sleeps delay, or blocks until
// release is closed when release is set.
type stubbornExec struct {
	delay   time.Duration
	release chan struct{}
	calls   atomic.Int32
}

func (e *stubbornExec) Infer(_ context.Context, img image.Image, r frame.Resolution) (*frame.Mask, float64, error) {
	e.calls.Add(1)
	if e.release != nil {
		<-e.release
	} else {
		time.Sleep(e.delay)
	}
	return frame.NewUniformMask(r.Width, r.Height, 0.8), 0.9, nil
}

type failingStart struct{ stubExec }

func (*failingStart) Start() error { return errors.New("no device") }

func testImage(shade uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = shade, shade, shade, 255
	}
	return img
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.ProcessingTimeout = 2 * time.Second
	cfg.DynamicQuality = false
	cfg.MinResolution = res(16, 12)
	cfg.InitialResolution = res(32, 24)
	cfg.MaxResolution = res(64, 48)
	cfg.ShrinkStep = res(16, 12)
	cfg.GrowStep = res(32, 24)
	return cfg
}

func startScheduler(t *testing.T, cfg Config, exec executor.Executor, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(cfg, exec, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func receive(t *testing.T, s *Scheduler) ProcessingResult {
	t.Helper()
	select {
	case r, ok := <-s.Results():
		if !ok {
			t.Fatal("Results closed")
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a result")
	}
	return ProcessingResult{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(testConfig(), nil); !errors.Is(err, ErrNilExecutor) {
		t.Errorf("New(nil exec) = %v, want ErrNilExecutor", err)
	}

	cfg := testConfig()
	cfg.MaxConcurrentTasks = 9
	if _, err := New(cfg, &stubExec{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(bad config) = %v, want ErrInvalidConfig", err)
	}
}

func TestScheduler_ProcessesFrame(t *testing.T) {
	var completed atomic.Int32
	s := startScheduler(t, testConfig(), &stubExec{conf: 0.9}, WithHandlers(Handlers{
		OnProcessingCompleted: func(ProcessingResult) { completed.Add(1) },
	}))

	id, ok := s.Submit(testImage(10), queue.DefaultPriority)
	if !ok {
		t.Fatal("Submit rejected")
	}

	r := receive(t, s)
	if r.TaskID != id {
		t.Errorf("TaskID = %q, want %q", r.TaskID, id)
	}
	if r.FromCache || r.State() != StateExecuted {
		t.Errorf("state = %v, want executed", r.State())
	}
	if r.Resolution != res(32, 24) || r.Mask.Resolution() != res(32, 24) {
		t.Errorf("Resolution = %v, want 32x24", r.Resolution)
	}
	if r.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", r.Confidence)
	}
	if r.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}

	st := s.Stats()
	if st.TotalProcessed != 1 || completed.Load() != 1 {
		t.Errorf("processed = %d, handler calls = %d; want 1, 1", st.TotalProcessed, completed.Load())
	}
	if !st.Running {
		t.Error("Running = false after Start")
	}
}

func TestScheduler_ExplicitTargetResolution(t *testing.T) {
	s := startScheduler(t, testConfig(), &stubExec{conf: 0.9})

	s.Enqueue(queue.Task{Image: testImage(1), TargetResolution: res(20, 10)})
	if r := receive(t, s); r.Resolution != res(20, 10) {
		t.Errorf("Resolution = %v, want 20x10", r.Resolution)
	}
}

func TestScheduler_CacheMissThenHit(t *testing.T) {
	exec := &stubExec{conf: 0.9, delay: 50 * time.Millisecond}
	s := startScheduler(t, testConfig(), exec, WithCache(cache.NewMemoryCache(cache.DefaultPolicy())))
	img := testImage(0)

	s.Submit(img, queue.DefaultPriority)
	first := receive(t, s)
	if first.FromCache {
		t.Error("first result came from cache")
	}

	s.Submit(img, queue.DefaultPriority)
	second := receive(t, s)
	if !second.FromCache || second.State() != StateCacheHit {
		t.Error("second result should be a cache hit")
	}
	if second.Confidence != 0.9 {
		t.Errorf("cached Confidence = %v, want 0.9", second.Confidence)
	}
	if first.ProcessingTime < exec.delay {
		t.Errorf("executed ProcessingTime = %v, want at least %v", first.ProcessingTime, exec.delay)
	}
	if second.ProcessingTime >= exec.delay/4 {
		t.Errorf("cache hit ProcessingTime = %v, want well under %v", second.ProcessingTime, exec.delay)
	}
	if exec.calls.Load() != 1 {
		t.Errorf("executor calls = %d, want 1", exec.calls.Load())
	}
	if st := s.Stats(); st.CacheHits != 1 || st.TotalProcessed != 2 {
		t.Errorf("CacheHits = %d, TotalProcessed = %d; want 1, 2", st.CacheHits, st.TotalProcessed)
	}
}

func TestScheduler_LowConfidenceNotCached(t *testing.T) {
	exec := &stubExec{conf: 0.4}
	s := startScheduler(t, testConfig(), exec, WithCache(cache.NewMemoryCache(cache.DefaultPolicy())))
	img := testImage(0)

	s.Submit(img, queue.DefaultPriority)
	receive(t, s)
	s.Submit(img, queue.DefaultPriority)
	if r := receive(t, s); r.FromCache {
		t.Error("result below CacheMinConfidence was served from cache")
	}
	if exec.calls.Load() != 2 {
		t.Errorf("executor calls = %d, want 2", exec.calls.Load())
	}
}

// TestScheduler_BoundsConcurrency verifies no more than MaxConcurrentTasks
// frames are dispatched while the executor is busy.
func TestScheduler_BoundsConcurrency(t *testing.T) {
	exec := &stubExec{conf: 0.9, gate: make(chan struct{})}
	s := startScheduler(t, testConfig(), exec)
	defer exec.open()

	for i := 0; i < 5; i++ {
		if _, ok := s.Submit(testImage(uint8(i*40)), queue.DefaultPriority); !ok {
			t.Fatalf("Submit %d rejected", i)
		}
	}
	waitFor(t, "two dispatches", func() bool {
		st := s.Stats()
		return st.ActiveTasks == 2 && st.QueueDepth == 3
	})

	time.Sleep(20 * time.Millisecond)
	if st := s.Stats(); st.ActiveTasks != 2 || st.QueueDepth != 3 {
		t.Errorf("ActiveTasks = %d, QueueDepth = %d; want 2, 3", st.ActiveTasks, st.QueueDepth)
	}

	exec.open()
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		seen[receive(t, s).TaskID] = true
	}
	if len(seen) != 5 {
		t.Errorf("distinct results = %d, want 5", len(seen))
	}
}

func TestScheduler_OverflowHandler(t *testing.T) {
	exec := &stubExec{conf: 0.9, gate: make(chan struct{})}
	cfg := testConfig()
	cfg.MaxConcurrentTasks = 1
	cfg.InputQueueSize = 5

	var overflows atomic.Uint64
	s := startScheduler(t, cfg, exec, WithHandlers(Handlers{
		OnQueueOverflow: func(dropped uint64) { overflows.Store(dropped) },
	}))
	defer exec.open()

	s.Submit(testImage(0), queue.DefaultPriority)
	waitFor(t, "first dispatch", func() bool { return s.Stats().ActiveTasks == 1 })

	for i := 1; i <= 5; i++ {
		if _, ok := s.Submit(testImage(uint8(i)), queue.DefaultPriority); !ok {
			t.Fatalf("Submit %d rejected before the queue filled", i)
		}
	}
	if _, ok := s.Submit(testImage(99), queue.DefaultPriority); ok {
		t.Error("Submit accepted past capacity")
	}
	if overflows.Load() != 1 {
		t.Errorf("overflow handler saw %d drops, want 1", overflows.Load())
	}
	if st := s.Stats(); st.TotalDropped != 1 {
		t.Errorf("TotalDropped = %d, want 1", st.TotalDropped)
	}
}

func TestScheduler_TimeoutYieldsNoResult(t *testing.T) {
	exec := &stubExec{gate: make(chan struct{})}
	cfg := testConfig()
	cfg.ProcessingTimeout = 20 * time.Millisecond
	s := startScheduler(t, cfg, exec)

	s.Submit(testImage(0), queue.DefaultPriority)
	waitFor(t, "timeout", func() bool { return s.Stats().TimedOut == 1 })

	select {
	case r := <-s.Results():
		t.Errorf("unexpected result %+v", r)
	case <-time.After(20 * time.Millisecond):
	}
	if st := s.Stats(); st.TotalProcessed != 0 || st.Failed != 0 {
		t.Errorf("TotalProcessed = %d, Failed = %d; want 0, 0", st.TotalProcessed, st.Failed)
	}
}

// TestScheduler_LateExecutorResultIsDiscarded verifies a call that finishes
// after its deadline produces no result and holds no slot.
func TestScheduler_LateExecutorResultIsDiscarded(t *testing.T) {
	exec := &stubbornExec{delay: 80 * time.Millisecond}
	cfg := testConfig()
	cfg.MaxConcurrentTasks = 1
	cfg.ProcessingTimeout = 20 * time.Millisecond
	s := startScheduler(t, cfg, exec)

	for i := 0; i < 3; i++ {
		if _, ok := s.Submit(testImage(uint8(i*50)), queue.DefaultPriority); !ok {
			t.Fatalf("Submit %d rejected", i)
		}
	}
	waitFor(t, "three timeouts", func() bool { return s.Stats().TimedOut == 3 })

	// Let every abandoned call return.
	time.Sleep(3 * exec.delay)

	select {
	case r := <-s.Results():
		t.Errorf("late executor output delivered: %+v", r)
	default:
	}
	st := s.Stats()
	if st.TotalProcessed != 0 || st.ActiveTasks != 0 || st.Failed != 0 {
		t.Errorf("TotalProcessed = %d, ActiveTasks = %d, Failed = %d; want 0, 0, 0",
			st.TotalProcessed, st.ActiveTasks, st.Failed)
	}
	if exec.calls.Load() == 0 {
		t.Error("executor was never called")
	}
}

func TestScheduler_FailureOpensCircuit(t *testing.T) {
	exec := &stubExec{err: errors.New("device lost")}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})
	s := startScheduler(t, testConfig(), exec, WithCircuitBreaker(breaker))

	s.Submit(testImage(0), queue.DefaultPriority)
	waitFor(t, "first failure", func() bool { return s.Stats().Failed == 1 })

	s.Submit(testImage(1), queue.DefaultPriority)
	waitFor(t, "rejected by circuit", func() bool { return s.Stats().Failed == 2 })

	if exec.calls.Load() != 1 {
		t.Errorf("executor calls = %d, want 1 once the circuit opened", exec.calls.Load())
	}
	if breaker.State() != resilience.StateOpen {
		t.Errorf("breaker state = %v, want open", breaker.State())
	}
}

func TestScheduler_QualityHandlers(t *testing.T) {
	scfg := quality.DefaultConfig()
	scfg.MinQualityThreshold = 1
	scorer, err := quality.NewScorer(scfg)
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}

	var mu sync.Mutex
	var analyzed int
	var issues []quality.Issue
	s := startScheduler(t, testConfig(), &stubExec{conf: 0.9}, WithScorer(scorer), WithHandlers(Handlers{
		OnQualityAnalyzed: func(quality.Metrics) {
			mu.Lock()
			analyzed++
			mu.Unlock()
		},
		OnLowQuality: func(_ quality.Metrics, got []quality.Issue) {
			mu.Lock()
			issues = got
			mu.Unlock()
		},
	}))

	s.Submit(testImage(0), queue.DefaultPriority)
	r := receive(t, s)

	if r.Quality.Resolution != res(32, 24) {
		t.Errorf("Quality.Resolution = %v, want 32x24", r.Quality.Resolution)
	}
	if len(r.Issues) == 0 {
		t.Error("result below threshold carries no issues")
	}
	mu.Lock()
	defer mu.Unlock()
	if analyzed != 1 || len(issues) == 0 {
		t.Errorf("analyzed = %d, low quality issues = %v", analyzed, issues)
	}
}

func TestScheduler_AdaptsResolution(t *testing.T) {
	cfg := testConfig()
	cfg.DynamicQuality = true
	cfg.AdaptInterval = 5 * time.Millisecond

	changed := make(chan [2]frame.Resolution, 4)
	s := startScheduler(t, cfg, &stubExec{conf: 0.9}, WithHandlers(Handlers{
		OnResolutionChanged: func(from, to frame.Resolution) { changed <- [2]frame.Resolution{from, to} },
	}))

	s.Submit(testImage(0), queue.DefaultPriority)
	receive(t, s)

	select {
	case c := <-changed:
		if c[0] != res(32, 24) || c[1] != res(64, 48) {
			t.Errorf("resolution change = %v -> %v, want 32x24 -> 64x48", c[0], c[1])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resolution never grew")
	}
	if s.Resolution() != res(64, 48) {
		t.Errorf("Resolution() = %v, want 64x48", s.Resolution())
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := startScheduler(t, testConfig(), &stubExec{})
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestScheduler_StartFailure(t *testing.T) {
	s, err := New(testConfig(), &failingStart{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, executor.ErrContextStart) {
		t.Errorf("Start = %v, want ErrContextStart", err)
	}
	if s.Stats().Running {
		t.Error("Running = true after failed start")
	}
}

func TestScheduler_Shutdown(t *testing.T) {
	s := startScheduler(t, testConfig(), &stubExec{conf: 0.9})

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown = %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown = %v", err)
	}

	if _, ok := <-s.Results(); ok {
		t.Error("Results still open after Shutdown")
	}
	if _, ok := s.Submit(testImage(0), queue.DefaultPriority); ok {
		t.Error("Submit accepted after Shutdown")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("Start after Shutdown = %v, want ErrShutdown", err)
	}
	if s.Stats().Running {
		t.Error("Running = true after Shutdown")
	}
}

// TestScheduler_ShutdownHonorsDeadlineWithHungExecutor verifies Shutdown
// returns at its deadline while an executor call that ignores cancellation
// is still running.
func TestScheduler_ShutdownHonorsDeadlineWithHungExecutor(t *testing.T) {
	exec := &stubbornExec{release: make(chan struct{})}
	defer close(exec.release)
	cfg := testConfig()
	cfg.ProcessingTimeout = 20 * time.Millisecond
	s := startScheduler(t, cfg, exec)

	s.Submit(testImage(0), queue.DefaultPriority)
	waitFor(t, "timeout", func() bool { return s.Stats().TimedOut == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- s.Shutdown(ctx) }()

	select {
	case err := <-errc:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Shutdown() = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown blocked past its deadline")
	}
	if _, ok := <-s.Results(); ok {
		t.Error("Results still open after Shutdown")
	}
	if s.Stats().Running {
		t.Error("Running after Shutdown")
	}
}

// TestScheduler_ParentCancelStopsAdmission verifies cancelling the Start
// context without Shutdown stops admission and reports not running.
func TestScheduler_ParentCancelStopsAdmission(t *testing.T) {
	s, err := New(testConfig(), &stubExec{conf: 0.9})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	cancel()
	waitFor(t, "scheduler to stop", func() bool { return !s.Stats().Running })

	if _, ok := s.Submit(testImage(0), queue.DefaultPriority); ok {
		t.Error("Submit admitted a frame after the parent context ended")
	}
	if st := s.Stats(); st.QueueDepth != 0 || st.TotalDropped != 0 {
		t.Errorf("QueueDepth = %d, TotalDropped = %d; want 0, 0", st.QueueDepth, st.TotalDropped)
	}
	if r := s.HealthChecker().Check(context.Background()); r.Status != health.StatusUnhealthy {
		t.Errorf("health = %v, want unhealthy", r.Status)
	}
}

func TestScheduler_ShutdownReleasesQueued(t *testing.T) {
	s, err := New(testConfig(), &stubExec{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		s.Submit(testImage(uint8(i)), queue.DefaultPriority)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown = %v", err)
	}
	if st := s.Stats(); st.TotalDropped != 3 || st.QueueDepth != 0 {
		t.Errorf("TotalDropped = %d, QueueDepth = %d; want 3, 0", st.TotalDropped, st.QueueDepth)
	}
}

func TestScheduler_ConcurrentProducers(t *testing.T) {
	cfg := testConfig()
	cfg.InputQueueSize = 20
	s := startScheduler(t, cfg, &stubExec{conf: 0.9})

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, ok := s.Submit(testImage(uint8(p*5+i)), queue.DefaultPriority); ok {
					accepted.Add(1)
				}
			}
		}(p)
	}
	wg.Wait()

	for i := int32(0); i < accepted.Load(); i++ {
		receive(t, s)
	}
	st := s.Stats()
	if st.TotalProcessed+st.TotalDropped != 20 {
		t.Errorf("processed %d + dropped %d != 20", st.TotalProcessed, st.TotalDropped)
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{StateEnqueued, StateDispatched} {
		if s.Terminal() {
			t.Errorf("%v.Terminal() = true", s)
		}
	}
	for _, s := range []State{StateCacheHit, StateExecuted, StateTimedOut, StateDropped} {
		if !s.Terminal() {
			t.Errorf("%v.Terminal() = false", s)
		}
	}
}

func TestStats_DropRatio(t *testing.T) {
	if (Stats{}).DropRatio() != 0 {
		t.Error("empty DropRatio != 0")
	}
	st := Stats{TotalProcessed: 6, TotalDropped: 2, TimedOut: 1, Failed: 1}
	if st.DropRatio() != 0.2 {
		t.Errorf("DropRatio() = %v, want 0.2", st.DropRatio())
	}
}
