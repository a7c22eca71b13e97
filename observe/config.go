package observe

import (
	"errors"
	"fmt"
	"slices"
)

// Sampling bounds for TracingConfig.SamplePct.
const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

// Exporter and level names accepted by Config. The empty string always
// means "off".
var (
	TracingExporters = []string{"", "none", "stdout", "otlp", "jaeger"}
	MetricsExporters = []string{"", "none", "stdout", "otlp", "prometheus"}
	LogLevels        = []string{"", "debug", "info", "warn", "error"}
)

// Config selects which telemetry signals the daemon emits and where.
type Config struct {
	// ServiceName is the service.name resource attribute on every span and
	// metric. Required.
	ServiceName string

	// Version is the service.version resource attribute.
	Version string

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig controls per-dispatch spans.
type TracingConfig struct {
	Enabled bool

	// Exporter is one of TracingExporters.
	// Default: "none"
	Exporter string

	// SamplePct is the fraction of dispatches traced, in [0, 1].
	// Default: 0.1
	SamplePct float64
}

// MetricsConfig controls the pipeline instruments.
type MetricsConfig struct {
	Enabled bool

	// Exporter is one of MetricsExporters.
	// Default: "none"
	Exporter string
}

// LoggingConfig controls the built-in JSON logger. It is ignored when the
// observer is given a logger with WithLogger.
type LoggingConfig struct {
	Enabled bool

	// Level is one of LogLevels.
	// Default: "info"
	Level string
}

// DefaultConfig returns a configuration with logging on and tracing and
// metrics off.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Tracing:     TracingConfig{Exporter: "none", SamplePct: 0.1},
		Metrics:     MetricsConfig{Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}
}

// Validate reports every problem with c at once. Settings of disabled
// signals are not checked.
func (c *Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, ErrMissingServiceName)
	}
	if t := c.Tracing; t.Enabled {
		if !slices.Contains(TracingExporters, t.Exporter) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTracingExporter, t.Exporter))
		}
		if t.SamplePct < MinSamplePct || t.SamplePct > MaxSamplePct {
			errs = append(errs, fmt.Errorf("%w: got %g", ErrInvalidSamplePct, t.SamplePct))
		}
	}
	if m := c.Metrics; m.Enabled && !slices.Contains(MetricsExporters, m.Exporter) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, m.Exporter))
	}
	if l := c.Logging; l.Enabled && !slices.Contains(LogLevels, l.Level) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level))
	}
	return errors.Join(errs...)
}
