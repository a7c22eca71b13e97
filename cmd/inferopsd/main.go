// Command inferopsd runs the inference scheduler against a synthetic frame
// producer and a simulated executor, serving health checks and Prometheus
// metrics while it runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/inferops/cache"
	"github.com/jonwraymond/inferops/config"
	"github.com/jonwraymond/inferops/executor"
	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/health"
	"github.com/jonwraymond/inferops/observe"
	"github.com/jonwraymond/inferops/pipeline"
	"github.com/jonwraymond/inferops/quality"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	configPath string
	fps        float64
	frameSize  frame.Resolution
	sceneLen   int
	latency    time.Duration
	duration   time.Duration
}

func main() {
	opts := options{frameSize: frame.Resolution{Width: 640, Height: 480}}
	flag.StringVar(&opts.configPath, "config", "", "path to a .json or .yaml config file")
	flag.Float64Var(&opts.fps, "fps", 30, "synthetic frames per second")
	flag.TextVar(&opts.frameSize, "frame-size", opts.frameSize, "synthetic frame size (WxH)")
	flag.IntVar(&opts.sceneLen, "scene-frames", 15, "identical frames per synthetic scene")
	flag.DurationVar(&opts.latency, "latency", 20*time.Millisecond, "simulated inference latency at 512x384")
	flag.DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	flag.Parse()

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "inferopsd:", err)
			os.Exit(2)
		}
		cfg = loaded
	}

	logger, z, err := observe.NewZapProduction(cfg.Observe.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inferopsd: logger:", err)
		os.Exit(1)
	}
	defer func() { _ = z.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if err := run(ctx, cfg, opts, logger); err != nil {
		z.Error("inferopsd failed", zap.Error(err))
		_ = z.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, logger observe.Logger) error {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig(), observe.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := obs.Shutdown(sctx); err != nil {
			logger.Warn(sctx, "telemetry shutdown failed", observe.Field{Key: "error", Value: err})
		}
	}()

	pcfg, err := cfg.PipelineConfig()
	if err != nil {
		return err
	}
	scorer, err := quality.NewScorer(cfg.QualityConfig(), quality.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("scorer: %w", err)
	}

	schedOpts := []pipeline.Option{
		pipeline.WithObserver(obs),
		pipeline.WithScorer(scorer),
		pipeline.WithHandlers(pipeline.Handlers{
			OnLowQuality: func(m quality.Metrics, issues []quality.Issue) {
				logger.Debug(context.Background(), "low quality mask",
					observe.Field{Key: "quality", Value: m.OverallQuality},
					observe.Field{Key: "issues", Value: quality.JoinIssues(issues)},
				)
			},
		}),
	}
	var results *cache.MemoryCache
	if policy := cfg.CachePolicy(); policy.ShouldCache() {
		results = cache.NewMemoryCache(policy)
		schedOpts = append(schedOpts, pipeline.WithCache(results))
	}

	sched, err := pipeline.New(pcfg, executor.Simulated{BaseLatency: opts.latency}, schedOpts...)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	agg.Register("pipeline", sched.HealthChecker())
	if results != nil {
		agg.Register("cache", results.HealthChecker())
	}

	consumed := make(chan uint64, 1)
	go func() {
		var n uint64
		for range sched.Results() {
			n++
		}
		consumed <- n
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return produce(gctx, sched, opts)
	})
	if interval := cfg.StatsInterval(); interval > 0 {
		g.Go(func() error {
			reportStats(gctx, sched, interval, logger)
			return nil
		})
	}
	if cfg.HTTP.Addr != "" {
		srv := newServer(cfg.HTTP.Addr, agg)
		g.Go(func() error {
			logger.Info(gctx, "serving health and metrics", observe.Field{Key: "addr", Value: cfg.HTTP.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	runErr := g.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Shutdown(sctx); err != nil {
		logger.Warn(sctx, "scheduler shutdown incomplete", observe.Field{Key: "error", Value: err})
	}
	logger.Info(sctx, "inferopsd stopped", observe.Field{Key: "delivered", Value: <-consumed})
	return runErr
}

func newServer(addr string, agg *health.Aggregator) *http.Server {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.Handle("GET /metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func reportStats(ctx context.Context, sched *pipeline.Scheduler, interval time.Duration, logger observe.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := sched.Stats()
			logger.Info(ctx, "pipeline stats",
				observe.Field{Key: "queue_depth", Value: st.QueueDepth},
				observe.Field{Key: "active_tasks", Value: st.ActiveTasks},
				observe.Field{Key: "avg_processing_ms", Value: float64(st.AvgProcessingTime.Microseconds()) / 1000},
				observe.Field{Key: "processed", Value: st.TotalProcessed},
				observe.Field{Key: "dropped", Value: st.TotalDropped},
				observe.Field{Key: "timed_out", Value: st.TimedOut},
				observe.Field{Key: "cache_hits", Value: st.CacheHits},
				observe.Field{Key: "resolution", Value: st.CurrentResolution.String()},
			)
		}
	}
}
