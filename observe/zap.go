package observe

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger adapts a *zap.Logger to Logger.
type zapLogger struct {
	z *zap.Logger
}

// NewZapLogger adapts z. Redacted field keys are masked as in the JSON logger.
func NewZapLogger(z *zap.Logger) (Logger, error) {
	if z == nil {
		return nil, ErrNilZapLogger
	}
	return &zapLogger{z: z}, nil
}

// NewZapProduction builds a production zap logger at level and adapts it.
func NewZapProduction(level string) (Logger, *zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(ParseLogLevel(level)))
	z, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return &zapLogger{z: z}, z, nil
}

func zapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Info(_ context.Context, msg string, fields ...Field) {
	l.z.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(_ context.Context, msg string, fields ...Field) {
	l.z.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(_ context.Context, msg string, fields ...Field) {
	l.z.Error(msg, zapFields(fields)...)
}

func (l *zapLogger) Debug(_ context.Context, msg string, fields ...Field) {
	l.z.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) WithComponent(meta ComponentMeta) Logger {
	fields := []zap.Field{zap.String("component", meta.Component)}
	if meta.Operation != "" {
		fields = append(fields, zap.String("operation", meta.Operation))
	}
	if meta.Version != "" {
		fields = append(fields, zap.String("component.version", meta.Version))
	}
	return &zapLogger{z: l.z.With(fields...)}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if isRedactedField(f.Key) {
			out[i] = zap.String(f.Key, "[REDACTED]")
			continue
		}
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

var _ Logger = (*zapLogger)(nil)
