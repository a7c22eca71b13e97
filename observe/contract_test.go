package observe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestObserverContract_Noops(t *testing.T) {
	cfg := Config{
		ServiceName: "inferops-test",
		Tracing:     TracingConfig{Enabled: false, Exporter: "none"},
		Metrics:     MetricsConfig{Enabled: false, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: false, Level: "info"},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver failed: %v", err)
	}

	if obs.Tracer() == nil {
		t.Fatalf("expected non-nil tracer")
	}
	if obs.Meter() == nil {
		t.Fatalf("expected non-nil meter")
	}
	if obs.Logger() == nil {
		t.Fatalf("expected non-nil logger")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestLoggerContract_WithComponent(t *testing.T) {
	for _, logger := range []Logger{NopLogger(), NewLoggerWithWriter("info", discard{})} {
		if logger.WithComponent(ComponentMeta{Component: "noop"}) == nil {
			t.Fatalf("%T: WithComponent should return non-nil logger", logger)
		}
	}
}

func TestMetricsContract_NoPanic(t *testing.T) {
	ctx := context.Background()
	m := NopMetrics()
	m.RecordEnqueued(ctx)
	m.RecordDropped(ctx, 1, DropOverflow)
	m.RecordProcessed(ctx, time.Millisecond, true)
	m.RecordExecution(ctx, ComponentMeta{Component: "noop"}, 10*time.Millisecond, errors.New("x"))
	m.RecordTimeout(ctx)
	m.RecordFailure(ctx, "noop")
	m.RecordQuality(ctx, 0.5)
	m.RecordResolution(ctx, 512, 384)
}

func TestTracerContract_NoPanic(t *testing.T) {
	tracer := NopTracer()
	_, span := tracer.StartSpan(context.Background(), ComponentMeta{Component: "noop"})
	tracer.EndSpan(span, nil)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
