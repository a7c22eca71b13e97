package config

import (
	"fmt"
	"math"
	"time"

	"github.com/jonwraymond/inferops/cache"
	"github.com/jonwraymond/inferops/frame"
	"github.com/jonwraymond/inferops/observe"
	"github.com/jonwraymond/inferops/pipeline"
	"github.com/jonwraymond/inferops/quality"
)

// DefaultServiceName names the daemon in telemetry.
const DefaultServiceName = "inferopsd"

// Config is the daemon configuration.
type Config struct {
	Pipeline PipelineSection `json:"pipeline" yaml:"pipeline"`
	Cache    CacheSection    `json:"cache" yaml:"cache"`
	Quality  QualitySection  `json:"quality" yaml:"quality"`
	Observe  ObserveSection  `json:"observe" yaml:"observe"`
	HTTP     HTTPSection     `json:"http" yaml:"http"`
}

// PipelineSection configures the scheduler.
type PipelineSection struct {
	// Default: 2 (range 1..4)
	MaxConcurrentTasks int `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
	// Default: 10 (range 5..20)
	InputQueueSize int `json:"input_queue_size" yaml:"input_queue_size"`
	// Default: 5
	ProcessingTimeoutSeconds float64 `json:"processing_timeout_seconds" yaml:"processing_timeout_seconds"`
	// Default: 33
	TargetProcessingTimeMs float64 `json:"target_processing_time_ms" yaml:"target_processing_time_ms"`
	// Default: true
	DynamicQuality bool `json:"enable_dynamic_quality" yaml:"enable_dynamic_quality"`
	// Default: 2
	AdaptIntervalSeconds float64 `json:"adapt_interval_seconds" yaml:"adapt_interval_seconds"`
	// Default: 16
	PollIntervalMs float64 `json:"poll_interval_ms" yaml:"poll_interval_ms"`

	InitialResolution frame.Resolution `json:"initial_resolution" yaml:"initial_resolution"`
	MinResolution     frame.Resolution `json:"min_resolution" yaml:"min_resolution"`
	MaxResolution     frame.Resolution `json:"max_resolution" yaml:"max_resolution"`

	// Default: 64
	ResultBuffer int `json:"result_buffer" yaml:"result_buffer"`
}

// CacheSection configures the result cache.
type CacheSection struct {
	// Default: true
	Enabled bool `json:"enable_caching" yaml:"enable_caching"`
	// Default: 60
	LifetimeSeconds float64 `json:"cache_lifetime_seconds" yaml:"cache_lifetime_seconds"`
	// Default: 50. Zero leaves only the lifetime bound.
	MaxSizeMB float64 `json:"max_cache_size_mb" yaml:"max_cache_size_mb"`
	// Default: 10
	SweepIntervalSeconds float64 `json:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
	// Default: 0.5
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	// Default: 0.8
	HitSimilarity float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
}

// QualitySection configures the quality scorer.
type QualitySection struct {
	// Default: true
	Enabled bool `json:"enable_quality_analysis" yaml:"enable_quality_analysis"`
	// Default: 20
	WindowSize int `json:"quality_window_size" yaml:"quality_window_size"`
	// Default: 0.3
	MinQualityThreshold float64 `json:"min_quality_threshold" yaml:"min_quality_threshold"`
	// Default: 0.15
	StabilityWeight float64 `json:"stability_weight" yaml:"stability_weight"`
	// Default: true
	EdgeAnalysis bool `json:"enable_edge_analysis" yaml:"enable_edge_analysis"`
	// Default: 0.1
	EdgeThreshold float64 `json:"edge_threshold" yaml:"edge_threshold"`
	// Default: true
	ConsistencyTracking bool `json:"enable_consistency_tracking" yaml:"enable_consistency_tracking"`
	// Default: 0.15
	MaxConsistencyDeviation float64 `json:"max_consistency_deviation" yaml:"max_consistency_deviation"`
	// Default: 100
	RateLimitMs float64 `json:"rate_limit_ms" yaml:"rate_limit_ms"`
}

// ObserveSection configures telemetry.
type ObserveSection struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`

	TracingEnabled  bool    `json:"tracing_enabled" yaml:"tracing_enabled"`
	TracingExporter string  `json:"tracing_exporter" yaml:"tracing_exporter"` // otlp|stdout|none
	SamplePct       float64 `json:"sample_pct" yaml:"sample_pct"`

	MetricsEnabled  bool   `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsExporter string `json:"metrics_exporter" yaml:"metrics_exporter"` // otlp|prometheus|stdout|none

	// Default: info
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// HTTPSection configures the health and metrics listener.
type HTTPSection struct {
	// Addr is the listen address. Empty disables the listener.
	// Default: :9090
	Addr string `json:"addr" yaml:"addr"`

	// StatsIntervalSeconds is how often the daemon logs scheduler stats.
	// Default: 10
	StatsIntervalSeconds float64 `json:"stats_interval_seconds" yaml:"stats_interval_seconds"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	p := pipeline.DefaultConfig()
	c := cache.DefaultPolicy()
	q := quality.DefaultConfig()
	o := observe.DefaultConfig(DefaultServiceName)

	return Config{
		Pipeline: PipelineSection{
			MaxConcurrentTasks:       p.MaxConcurrentTasks,
			InputQueueSize:           p.InputQueueSize,
			ProcessingTimeoutSeconds: p.ProcessingTimeout.Seconds(),
			TargetProcessingTimeMs:   milliseconds(p.TargetProcessingTime),
			DynamicQuality:           p.DynamicQuality,
			AdaptIntervalSeconds:     p.AdaptInterval.Seconds(),
			PollIntervalMs:           milliseconds(p.PollInterval),
			InitialResolution:        p.InitialResolution,
			MinResolution:            p.MinResolution,
			MaxResolution:            p.MaxResolution,
			ResultBuffer:             p.ResultBuffer,
		},
		Cache: CacheSection{
			Enabled:              true,
			LifetimeSeconds:      c.Lifetime.Seconds(),
			MaxSizeMB:            float64(c.MaxBytes) / (1 << 20),
			SweepIntervalSeconds: c.SweepInterval.Seconds(),
			MinConfidence:        p.CacheMinConfidence,
			HitSimilarity:        p.CacheHitSimilarity,
		},
		Quality: QualitySection{
			Enabled:                 q.Enabled,
			WindowSize:              q.WindowSize,
			MinQualityThreshold:     q.MinQualityThreshold,
			StabilityWeight:         q.StabilityWeight,
			EdgeAnalysis:            q.EdgeAnalysis,
			EdgeThreshold:           q.EdgeThreshold,
			ConsistencyTracking:     q.ConsistencyTracking,
			MaxConsistencyDeviation: q.MaxConsistencyDeviation,
			RateLimitMs:             milliseconds(q.RateLimit),
		},
		Observe: ObserveSection{
			ServiceName:     o.ServiceName,
			TracingExporter: o.Tracing.Exporter,
			SamplePct:       o.Tracing.SamplePct,
			MetricsExporter: o.Metrics.Exporter,
			LogLevel:        o.Logging.Level,
		},
		HTTP: HTTPSection{
			Addr:                 ":9090",
			StatsIntervalSeconds: 10,
		},
	}
}

// Validate checks every section against the package it configures.
func (c Config) Validate() error {
	if _, err := c.PipelineConfig(); err != nil {
		return err
	}
	if c.Cache.LifetimeSeconds < 0 || c.Cache.MaxSizeMB < 0 || c.Cache.SweepIntervalSeconds < 0 {
		return fmt.Errorf("%w: cache durations and size must not be negative", ErrInvalid)
	}
	if c.Cache.Enabled && c.Cache.LifetimeSeconds > 0 && c.Cache.SweepIntervalSeconds == 0 {
		return fmt.Errorf("%w: sweep_interval_seconds must be positive when caching", ErrInvalid)
	}
	if err := c.QualityConfig().Validate(); err != nil {
		return err
	}
	o := c.ObserveConfig()
	if err := o.Validate(); err != nil {
		return err
	}
	if c.HTTP.StatsIntervalSeconds < 0 {
		return fmt.Errorf("%w: stats_interval_seconds must not be negative", ErrInvalid)
	}
	return nil
}

// PipelineConfig returns the scheduler configuration, validated.
func (c Config) PipelineConfig() (pipeline.Config, error) {
	p := pipeline.DefaultConfig()
	p.MaxConcurrentTasks = c.Pipeline.MaxConcurrentTasks
	p.InputQueueSize = c.Pipeline.InputQueueSize
	p.ProcessingTimeout = seconds(c.Pipeline.ProcessingTimeoutSeconds)
	p.TargetProcessingTime = millis(c.Pipeline.TargetProcessingTimeMs)
	p.DynamicQuality = c.Pipeline.DynamicQuality
	p.AdaptInterval = seconds(c.Pipeline.AdaptIntervalSeconds)
	p.PollInterval = millis(c.Pipeline.PollIntervalMs)
	p.InitialResolution = c.Pipeline.InitialResolution
	p.MinResolution = c.Pipeline.MinResolution
	p.MaxResolution = c.Pipeline.MaxResolution
	p.ResultBuffer = c.Pipeline.ResultBuffer
	p.CacheMinConfidence = c.Cache.MinConfidence
	p.CacheHitSimilarity = c.Cache.HitSimilarity

	if err := p.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return p, nil
}

// CachePolicy returns the cache policy. A disabled cache yields
// cache.NoCachePolicy.
func (c Config) CachePolicy() cache.Policy {
	if !c.Cache.Enabled {
		return cache.NoCachePolicy()
	}
	return cache.Policy{
		Lifetime:      seconds(c.Cache.LifetimeSeconds),
		MaxBytes:      int64(c.Cache.MaxSizeMB * (1 << 20)),
		SweepInterval: seconds(c.Cache.SweepIntervalSeconds),
		MinConfidence: c.Cache.MinConfidence,
	}
}

// QualityConfig returns the scorer configuration.
func (c Config) QualityConfig() quality.Config {
	q := c.Quality
	return quality.Config{
		Enabled:                 q.Enabled,
		WindowSize:              q.WindowSize,
		MinQualityThreshold:     q.MinQualityThreshold,
		StabilityWeight:         q.StabilityWeight,
		EdgeAnalysis:            q.EdgeAnalysis,
		EdgeThreshold:           q.EdgeThreshold,
		ConsistencyTracking:     q.ConsistencyTracking,
		MaxConsistencyDeviation: q.MaxConsistencyDeviation,
		RateLimit:               millis(q.RateLimitMs),
	}
}

// ObserveConfig returns the telemetry configuration.
func (c Config) ObserveConfig() observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     o.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.TracingEnabled,
			Exporter:  o.TracingExporter,
			SamplePct: o.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.MetricsEnabled,
			Exporter: o.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: o.LogLevel != "",
			Level:   o.LogLevel,
		},
	}
}

// StatsInterval returns the stats logging period, or zero when disabled.
func (c Config) StatsInterval() time.Duration {
	return seconds(c.HTTP.StatsIntervalSeconds)
}

func seconds(f float64) time.Duration {
	return time.Duration(math.Round(f * float64(time.Second)))
}

func millis(f float64) time.Duration {
	return time.Duration(math.Round(f * float64(time.Millisecond)))
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
