package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type middlewareHarness struct {
	mw     *Middleware
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newMiddlewareHarness(t *testing.T) middlewareHarness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	mw := NewMiddleware(&tracerImpl{tracer: tp.Tracer("test")}, metrics, NewLoggerWithWriter("debug", &logs))
	return middlewareHarness{mw: mw, spans: spans, reader: reader, logs: &logs}
}

var dispatchMeta = ComponentMeta{Component: "pipeline", Operation: "dispatch"}

// TestMiddleware_SuccessPath verifies a successful run records a span, an
// execution sample and a debug line.
func TestMiddleware_SuccessPath(t *testing.T) {
	h := newMiddlewareHarness(t)

	err := h.mw.Run(context.Background(), dispatchMeta, func(context.Context) error { return nil },
		attribute.String("task.id", "ab12cd34"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 || spans[0].Name() != "inferops.dispatch" {
		t.Fatalf("spans = %v", spans)
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v", spans[0].Status().Code)
	}

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	if findMetric(rm, MetricExecutionTime) == nil {
		t.Error("execution duration not recorded")
	}

	out := h.logs.String()
	if !strings.Contains(out, `"level":"debug"`) || !strings.Contains(out, "pipeline.dispatch completed") {
		t.Errorf("log output = %s", out)
	}
	if !strings.Contains(out, `"task.id":"ab12cd34"`) {
		t.Errorf("span attributes not logged: %s", out)
	}
}

// TestMiddleware_ErrorPath verifies errors are returned unchanged and recorded.
func TestMiddleware_ErrorPath(t *testing.T) {
	h := newMiddlewareHarness(t)
	sentinel := errors.New("executor lost")

	err := h.mw.Run(context.Background(), dispatchMeta, func(context.Context) error { return sentinel })
	if err != sentinel {
		t.Fatalf("Run() error = %v, want sentinel", err)
	}

	s := h.spans.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}

	out := h.logs.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "executor lost") {
		t.Errorf("log output = %s", out)
	}
}

// TestMiddleware_PropagatesContext verifies the wrapped function sees the span.
func TestMiddleware_PropagatesContext(t *testing.T) {
	h := newMiddlewareHarness(t)
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	_ = h.mw.Run(ctx, dispatchMeta, func(ctx context.Context) error {
		if ctx.Value(key{}) != "v" {
			t.Error("caller context values lost")
		}
		if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
			t.Error("span missing from context")
		}
		return nil
	})
}

func TestMiddleware_Wrap(t *testing.T) {
	h := newMiddlewareHarness(t)
	calls := 0
	fn := h.mw.Wrap(dispatchMeta, func(context.Context) error {
		calls++
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := fn(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 3 || len(h.spans.Ended()) != 3 {
		t.Errorf("calls=%d spans=%d, want 3 each", calls, len(h.spans.Ended()))
	}
}

// TestMiddleware_NilComponents verifies nil arguments fall back to no-ops.
func TestMiddleware_NilComponents(t *testing.T) {
	mw := NopMiddleware()
	if mw.Metrics() == nil || mw.Logger() == nil {
		t.Fatal("nop middleware returned nil components")
	}
	ran := false
	if err := mw.Run(context.Background(), dispatchMeta, func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("wrapped function did not run")
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("nil observer error = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), DefaultConfig("inferops-test"))
	if err != nil {
		t.Fatal(err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver() error = %v", err)
	}
	if mw.Logger() != obs.Logger() {
		t.Error("middleware should use the observer logger")
	}
}
