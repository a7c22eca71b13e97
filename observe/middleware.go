package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// ExecuteFunc is one unit of observed work.
type ExecuteFunc func(ctx context.Context) error

// Middleware wraps work with a span, an execution metric and a log line.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components fall back to no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NopMiddleware returns a Middleware that only runs the wrapped work.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Run executes fn under meta. Successful runs are logged at debug level,
// failures at warn.
func (m *Middleware) Run(ctx context.Context, meta ComponentMeta, fn ExecuteFunc, attrs ...attribute.KeyValue) error {
	ctx, span := m.tracer.StartSpan(ctx, meta, attrs...)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordExecution(ctx, meta, duration, err)

	logger := m.logger.WithComponent(meta)
	fields := []Field{{Key: "duration_ms", Value: durationMs(duration)}}
	for _, kv := range attrs {
		fields = append(fields, Field{Key: string(kv.Key), Value: kv.Value.Emit()})
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Warn(ctx, meta.ID()+" failed", fields...)
	} else {
		logger.Debug(ctx, meta.ID()+" completed", fields...)
	}
	return err
}

// Wrap binds fn to meta.
func (m *Middleware) Wrap(meta ComponentMeta, fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context) error {
		return m.Run(ctx, meta, fn)
	}
}

// Metrics returns the metrics sink.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// MiddlewareFromObserver builds a Middleware from obs.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
