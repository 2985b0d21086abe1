// Package logger provides structured logging on zap.
// It sets up a JSON logger with service-level context and provides
// trace ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded and is
// installed as the zap global, so zap.L() returns it.
func Init(service string, level zapcore.Level) *zap.Logger {
	return install(newCore(zapcore.AddSync(os.Stdout), level), service)
}

// ParseLevel maps "debug", "info", "warn", "error" to a zap level.
// Unknown values fall back to info.
func ParseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func newCore(w zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, level)
}

func install(core zapcore.Core, service string) *zap.Logger {
	l := zap.New(core, zap.AddCaller()).With(zap.String("service", service))
	zap.ReplaceGlobals(l)
	return l
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID from a market and timestamp.
// Format: "{market}-{unixNano}".
func GenerateTraceID(market string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", market, ts.UnixNano())
}

// Fields returns zap fields including the trace ID from context.
// Usage: log.Info("msg", logger.Fields(ctx)...)
func Fields(ctx context.Context, extra ...zap.Field) []zap.Field {
	tid := TraceID(ctx)
	if tid == "" {
		return extra
	}
	return append([]zap.Field{zap.String("trace_id", tid)}, extra...)
}
