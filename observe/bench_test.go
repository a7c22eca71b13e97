package observe

import (
	"context"
	"io"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// BenchmarkLogger_Info measures logging throughput.
func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", Field{Key: "iteration", Value: i})
	}
}

// BenchmarkLogger_Info_MultipleFields measures logging with multiple fields.
func BenchmarkLogger_Info_MultipleFields(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()
	fields := []Field{
		{Key: "task_id", Value: "ab12cd34"},
		{Key: "width", Value: 512},
		{Key: "from_cache", Value: true},
		{Key: "confidence", Value: 0.9},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", fields...)
	}
}

// BenchmarkLogger_WithComponent_ThenLog measures deriving a component
// logger and writing one entry.
func BenchmarkLogger_WithComponent_ThenLog(b *testing.B) {
	logger := NewLoggerWithWriter("info", io.Discard)
	ctx := context.Background()
	meta := ComponentMeta{Component: "pipeline", Operation: "dispatch", Version: "0.3.0"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithComponent(meta).Info(ctx, "dispatched")
	}
}

// BenchmarkLogger_LevelFiltering measures the cost of filtered entries.
func BenchmarkLogger_LevelFiltering(b *testing.B) {
	logger := NewLoggerWithWriter("error", io.Discard)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug(ctx, "filtered", Field{Key: "iteration", Value: i})
	}
}

func BenchmarkZapLogger_Info(b *testing.B) {
	logger, _ := NewZapLogger(zap.NewNop())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", Field{Key: "iteration", Value: i})
	}
}

func BenchmarkComponentMeta_SpanName(b *testing.B) {
	meta := ComponentMeta{Component: "pipeline", Operation: "dispatch"}
	for i := 0; i < b.N; i++ {
		_ = meta.SpanName()
	}
}

func BenchmarkTracer_StartEndSpan(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	tr := NewTracer(tp.Tracer("bench"))
	ctx := context.Background()
	meta := ComponentMeta{Component: "pipeline", Operation: "dispatch"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tr.StartSpan(ctx, meta)
		tr.EndSpan(span, nil)
	}
}

func BenchmarkMetrics_RecordProcessed(b *testing.B) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := NewMetrics(mp.Meter("bench"))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordProcessed(ctx, 3*time.Millisecond, i%2 == 0)
	}
}

// BenchmarkConcurrent_Middleware measures concurrent middleware execution.
func BenchmarkConcurrent_Middleware(b *testing.B) {
	ctx := context.Background()
	obs, err := NewObserver(ctx, Config{
		ServiceName: "bench",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: false},
	})
	if err != nil {
		b.Fatalf("failed to create observer: %v", err)
	}
	defer obs.Shutdown(ctx)

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		b.Fatalf("failed to create middleware: %v", err)
	}
	fn := mw.Wrap(ComponentMeta{Component: "pipeline", Operation: "dispatch"}, func(context.Context) error {
		return nil
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = fn(ctx)
		}
	})
}

// BenchmarkConfig_Validate measures configuration validation.
func BenchmarkConfig_Validate(b *testing.B) {
	cfg := Config{
		ServiceName: "bench-service",
		Version:     "1.0.0",
		Tracing:     TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.5},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
