package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SpanPrefix prefixes every span name.
const SpanPrefix = "inferops."

// ComponentMeta identifies the pipeline stage a span, log line or metric
// belongs to.
type ComponentMeta struct {
	Component string // Emitting component, e.g. "pipeline" (required)
	Operation string // Unit of work, e.g. "dispatch" (optional)
	Version   string // Component version (optional)
}

// SpanName returns inferops.<operation>, or inferops.<component> when no
// operation is set.
func (m ComponentMeta) SpanName() string {
	if m.Operation != "" {
		return SpanPrefix + m.Operation
	}
	return SpanPrefix + m.Component
}

// ID returns component.operation, or the component alone.
func (m ComponentMeta) ID() string {
	if m.Operation != "" {
		return m.Component + "." + m.Operation
	}
	return m.Component
}

func (m ComponentMeta) attrs() map[string]any {
	attrs := map[string]any{"component": m.Component}
	if m.Operation != "" {
		attrs["operation"] = m.Operation
	}
	if m.Version != "" {
		attrs["component.version"] = m.Version
	}
	return attrs
}

func (m ComponentMeta) keyValues() []attribute.KeyValue {
	kv := []attribute.KeyValue{attribute.String("component", m.Component)}
	if m.Operation != "" {
		kv = append(kv, attribute.String("operation", m.Operation))
	}
	return kv
}

// Tracer starts and ends spans for pipeline work.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span named after meta.
	StartSpan(ctx context.Context, meta ComponentMeta, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// EndSpan ends the span, recording err when non-nil.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ComponentMeta, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append(meta.keyValues(), attrs...)
	if meta.Version != "" {
		all = append(all, attribute.String("component.version", meta.Version))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer whose spans record nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ComponentMeta, _ ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
