// Package logging provides structured logging with trace support on top of zap.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface for structured logging with trace support
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})

	// Context-aware logging with trace IDs
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})
	DebugContext(ctx context.Context, msg string, fields ...interface{})

	WithTraceID(traceID string) Logger
	WithComponent(component string) Logger
}

// ContextKey represents keys used in context for trace IDs
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
)

// LogLevel represents logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// StructuredLogger implements Logger on a zap core
type StructuredLogger struct {
	base      *zap.Logger
	traceID   string
	component string
}

// NewLogger creates a new structured logger writing to stdout.
// LOG_JSON=false switches to the console encoder.
func NewLogger(level LogLevel) Logger {
	return NewLoggerWithFormat(level, getEnvBool("LOG_JSON", true))
}

// NewLoggerWithFormat creates a logger with an explicit encoder choice
func NewLoggerWithFormat(level LogLevel, useJSON bool) Logger {
	return newLogger(level, useJSON, zapcore.Lock(os.Stdout))
}

// NewStderrLogger writes to stderr, leaving stdout to the MCP stdio transport
func NewStderrLogger(level LogLevel, useJSON bool) Logger {
	return newLogger(level, useJSON, zapcore.Lock(os.Stderr))
}

func newLogger(level LogLevel, useJSON bool, out zapcore.WriteSyncer) Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if useJSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, out, zap.NewAtomicLevelAt(level.zapLevel()))
	return NewFromZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)))
}

// NewFromZap wraps an existing zap logger
func NewFromZap(base *zap.Logger) Logger {
	return &StructuredLogger{base: base}
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

// WithTraceID creates a new logger with a trace ID
func (l *StructuredLogger) WithTraceID(traceID string) Logger {
	return &StructuredLogger{
		base:      l.base,
		traceID:   traceID,
		component: l.component,
	}
}

// WithComponent creates a new logger with a component name
func (l *StructuredLogger) WithComponent(component string) Logger {
	return &StructuredLogger{
		base:      l.base,
		traceID:   l.traceID,
		component: component,
	}
}

func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	l.log(zapcore.InfoLevel, msg, "", fields...)
}

func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(zapcore.InfoLevel, msg, GetTraceID(ctx), fields...)
}

func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	l.log(zapcore.WarnLevel, msg, "", fields...)
}

func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(zapcore.WarnLevel, msg, GetTraceID(ctx), fields...)
}

func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	l.log(zapcore.ErrorLevel, msg, "", fields...)
}

func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(zapcore.ErrorLevel, msg, GetTraceID(ctx), fields...)
}

func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	l.log(zapcore.DebugLevel, msg, "", fields...)
}

func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(zapcore.DebugLevel, msg, GetTraceID(ctx), fields...)
}

// Fatal logs a fatal message and exits
func (l *StructuredLogger) Fatal(msg string, fields ...interface{}) {
	l.log(zapcore.FatalLevel, msg, "", fields...)
}

// log converts key/value pairs into zap fields. The context trace ID wins
// over the one bound to the logger.
func (l *StructuredLogger) log(level zapcore.Level, msg, contextTraceID string, fields ...interface{}) {
	ce := l.base.Check(level, msg)
	if ce == nil {
		return
	}

	traceID := l.traceID
	if contextTraceID != "" {
		traceID = contextTraceID
	}

	zfields := make([]zap.Field, 0, len(fields)/2+2)
	if traceID != "" {
		zfields = append(zfields, zap.String("trace_id", traceID))
	}
	if l.component != "" {
		zfields = append(zfields, zap.String("component", l.component))
	}
	zfields = append(zfields, toZapFields(fields)...)

	ce.Write(zfields...)
}

func toZapFields(fields []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			out = append(out, zap.Any(fmt.Sprintf("field_%d", i), fields[i]))
			break
		}
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			out = append(out, zap.NamedError(key, err))
			continue
		}
		out = append(out, zap.Any(key, fields[i+1]))
	}
	return out
}

var defaultLogger = NewLogger(INFO)

// Package-level functions for convenience
func Info(msg string, fields ...interface{}) {
	defaultLogger.Info(msg, fields...)
}

func Warn(msg string, fields ...interface{}) {
	defaultLogger.Warn(msg, fields...)
}

func Error(msg string, fields ...interface{}) {
	defaultLogger.Error(msg, fields...)
}

func Debug(msg string, fields ...interface{}) {
	defaultLogger.Debug(msg, fields...)
}

func Fatal(msg string, fields ...interface{}) {
	defaultLogger.Fatal(msg, fields...)
}

// Trace ID utilities
func GenerateTraceID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = GenerateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithComponent returns the default logger scoped to a component
func WithComponent(component string) Logger {
	return defaultLogger.WithComponent(component)
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to INFO
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// SetDefaultLogger sets the default logger instance
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}
