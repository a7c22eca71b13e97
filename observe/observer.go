package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/inferops/observe/exporters"
)

// Observer hands out the telemetry primitives one process shares.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown flushes every provider and joins their errors.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger

	// Shutdown flushes and stops the tracer and meter providers.
	Shutdown(ctx context.Context) error
}

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging is best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	WithComponent(meta ComponentMeta) Logger
}

// Field is one structured log attribute.
type Field struct {
	Key   string
	Value any
}

// ObserverOption configures NewObserver.
type ObserverOption func(*observer)

// WithLogger makes the observer hand out l instead of building a JSON logger
// from Config.Logging.
func WithLogger(l Logger) ObserverOption {
	return func(o *observer) {
		o.logger = l
	}
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	// nil when the signal is disabled.
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var _ Observer = (*observer)(nil)

// NewObserver builds the providers cfg enables. Disabled signals get no-op
// implementations so callers never check for nil. Providers are not
// installed as OpenTelemetry globals.
func NewObserver(ctx context.Context, cfg Config, opts ...ObserverOption) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  metricnoop.NewMeterProvider().Meter(cfg.ServiceName),
	}
	for _, opt := range opts {
		opt(o)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	if cfg.Tracing.Enabled {
		exp, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter)
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		topts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.Tracing.SamplePct)),
		}
		if exp != nil {
			topts = append(topts, sdktrace.WithBatcher(exp))
		}
		o.tp = sdktrace.NewTracerProvider(topts...)
		o.tracer = o.tp.Tracer(cfg.ServiceName)
	}

	if cfg.Metrics.Enabled {
		reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter)
		if err != nil {
			_ = o.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
		if reader != nil {
			mopts = append(mopts, sdkmetric.WithReader(reader))
		}
		o.mp = sdkmetric.NewMeterProvider(mopts...)
		o.meter = o.mp.Meter(cfg.ServiceName)
	}

	if o.logger == nil {
		o.logger = NopLogger()
		if cfg.Logging.Enabled {
			o.logger = NewLogger(cfg.Logging.Level)
		}
	}
	return o, nil
}

// sampler maps a sampling fraction to a root sampler, parent-based so a
// dispatch span and its executor child are kept or dropped together.
func sampler(pct float64) sdktrace.Sampler {
	switch {
	case pct >= MaxSamplePct:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case pct <= MinSamplePct:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(pct))
	}
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tp != nil {
		if err := o.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if o.mp != nil {
		if err := o.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (l noopLogger) WithComponent(ComponentMeta) Logger    { return l }
