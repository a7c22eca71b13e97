package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricFramesEnqueued   = "inferops.frames.enqueued"
	MetricFramesDropped    = "inferops.frames.dropped"
	MetricFramesProcessed  = "inferops.frames.processed"
	MetricFramesTimeouts   = "inferops.frames.timeouts"
	MetricFramesFailures   = "inferops.frames.failures"
	MetricCacheHits        = "inferops.cache.hits"
	MetricProcessingTime   = "inferops.processing.duration_ms"
	MetricExecutionTime    = "inferops.exec.duration_ms"
	MetricQualityScore     = "inferops.quality.score"
	MetricResolutionWidth  = "inferops.resolution.width"
	MetricResolutionHeight = "inferops.resolution.height"
)

// Drop reasons attached to MetricFramesDropped.
const (
	DropOverflow    = "overflow"
	DropStale       = "stale"
	DropShutdown    = "shutdown"
	DropBacklog     = "backlog"
	DropUndelivered = "undelivered"
)

// Metrics records pipeline measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordEnqueued counts a frame admitted to the queue.
	RecordEnqueued(ctx context.Context)

	// RecordDropped counts n frames lost for reason.
	RecordDropped(ctx context.Context, n int64, reason string)

	// RecordProcessed counts a delivered result and its end to end latency.
	RecordProcessed(ctx context.Context, duration time.Duration, fromCache bool)

	// RecordExecution records one executor call.
	RecordExecution(ctx context.Context, meta ComponentMeta, duration time.Duration, err error)

	// RecordTimeout counts a dispatch that exceeded its deadline.
	RecordTimeout(ctx context.Context)

	// RecordFailure counts a dispatch that failed.
	RecordFailure(ctx context.Context, reason string)

	// RecordQuality records an overall quality score.
	RecordQuality(ctx context.Context, score float64)

	// RecordResolution records the current inference resolution.
	RecordResolution(ctx context.Context, width, height int)
}

type metricsImpl struct {
	enqueued   metric.Int64Counter
	dropped    metric.Int64Counter
	processed  metric.Int64Counter
	timeouts   metric.Int64Counter
	failures   metric.Int64Counter
	cacheHits  metric.Int64Counter
	processing metric.Float64Histogram
	execution  metric.Float64Histogram
	quality    metric.Float64Histogram
	width      metric.Int64Gauge
	height     metric.Int64Gauge
}

// NewMetrics creates the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.enqueued, MetricFramesEnqueued, "Frames admitted to the queue", "{frame}"},
		{&m.dropped, MetricFramesDropped, "Frames dropped before producing a result", "{frame}"},
		{&m.processed, MetricFramesProcessed, "Results delivered", "{frame}"},
		{&m.timeouts, MetricFramesTimeouts, "Dispatches that exceeded the processing timeout", "{frame}"},
		{&m.failures, MetricFramesFailures, "Dispatches that failed", "{frame}"},
		{&m.cacheHits, MetricCacheHits, "Results served from the cache", "{hit}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
		unit string
	}{
		{&m.processing, MetricProcessingTime, "End to end processing time per result", "ms"},
		{&m.execution, MetricExecutionTime, "Executor call duration", "ms"},
		{&m.quality, MetricQualityScore, "Overall mask quality", "1"},
	}
	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit(h.unit))
		if err != nil {
			return nil, err
		}
	}

	m.width, err = meter.Int64Gauge(MetricResolutionWidth,
		metric.WithDescription("Current inference width"),
		metric.WithUnit("{pixel}"),
	)
	if err != nil {
		return nil, err
	}
	m.height, err = meter.Int64Gauge(MetricResolutionHeight,
		metric.WithDescription("Current inference height"),
		metric.WithUnit("{pixel}"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsImpl) RecordEnqueued(ctx context.Context) {
	m.enqueued.Add(ctx, 1)
}

func (m *metricsImpl) RecordDropped(ctx context.Context, n int64, reason string) {
	if n <= 0 {
		return
	}
	m.dropped.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metricsImpl) RecordProcessed(ctx context.Context, duration time.Duration, fromCache bool) {
	source := "executor"
	if fromCache {
		source = "cache"
		m.cacheHits.Add(ctx, 1)
	}
	opt := metric.WithAttributes(attribute.String("source", source))
	m.processed.Add(ctx, 1, opt)
	m.processing.Record(ctx, durationMs(duration), opt)
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta ComponentMeta, duration time.Duration, err error) {
	attrs := append(meta.keyValues(), attribute.Bool("error", err != nil))
	m.execution.Record(ctx, durationMs(duration), metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordTimeout(ctx context.Context) {
	m.timeouts.Add(ctx, 1)
}

func (m *metricsImpl) RecordFailure(ctx context.Context, reason string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metricsImpl) RecordQuality(ctx context.Context, score float64) {
	m.quality.Record(ctx, score)
}

func (m *metricsImpl) RecordResolution(ctx context.Context, width, height int) {
	m.width.Record(ctx, int64(width))
	m.height.Record(ctx, int64(height))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordEnqueued(context.Context)                                       {}
func (noopMetrics) RecordDropped(context.Context, int64, string)                         {}
func (noopMetrics) RecordProcessed(context.Context, time.Duration, bool)                 {}
func (noopMetrics) RecordExecution(context.Context, ComponentMeta, time.Duration, error) {}
func (noopMetrics) RecordTimeout(context.Context)                                        {}
func (noopMetrics) RecordFailure(context.Context, string)                                {}
func (noopMetrics) RecordQuality(context.Context, float64)                               {}
func (noopMetrics) RecordResolution(context.Context, int, int)                           {}
