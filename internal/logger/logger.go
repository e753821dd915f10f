// Package logger wraps log/slog behind a small chaining interface used by
// every bikey package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

type contextKey string

// TraceIDKey is the context key holding the request or import trace id.
const TraceIDKey contextKey = "traceID"

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config describes how a logger is built.
type Config struct {
	Name      string
	Format    Format
	Level     slog.Level
	Writer    io.Writer
	AddSource bool
}

type Logger interface {
	Error(msg string, args ...any) error
	ErrorWithType(errType error, msg string, args ...any) error
	Err(msg string, err error, args ...any) error
	ErrMsg(msg string) error
	Er(msg string, err error, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
	File(name string) Logger
	Function(name string) Logger
	Timer(msg string) func()
	TimerWithMetrics(msg string) func()
	WithTraceID(traceID string) Logger
	TraceFromContext(ctx context.Context) Logger
}

type SlogLogger struct {
	logger *slog.Logger
}

// New builds a logger from the LOG_FORMAT and LOG_LEVEL environment
// variables. Test binaries get a discarding handler.
func New(name string) Logger {
	if isTestBinary() {
		return NewWithConfig(Config{Name: name, Writer: io.Discard})
	}
	return NewWithConfig(ConfigFromEnv(name))
}

// NewWithContext is New plus the trace id carried by ctx, if any.
func NewWithContext(ctx context.Context, name string) Logger {
	return New(name).TraceFromContext(ctx)
}

func NewWithConfig(config Config) Logger {
	writer := config.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level, AddSource: config.AddSource}

	var handler slog.Handler
	if config.Format == FormatText {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return &SlogLogger{logger: slog.New(handler).With("package", config.Name)}
}

func ConfigFromEnv(name string) Config {
	config := Config{Name: name, Format: FormatJSON, Level: slog.LevelInfo}

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), string(FormatText)) {
		config.Format = FormatText
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		config.Level = slog.LevelDebug
	case "warn":
		config.Level = slog.LevelWarn
	case "error":
		config.Level = slog.LevelError
	}

	return config
}

func isTestBinary() bool {
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

func (l *SlogLogger) File(name string) Logger {
	return l.With("file", name)
}

func (l *SlogLogger) Function(name string) Logger {
	return l.With("function", name)
}

func (l *SlogLogger) WithTraceID(traceID string) Logger {
	return l.With("traceID", traceID)
}

func (l *SlogLogger) TraceFromContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return l
	}
	return l.WithTraceID(traceID)
}

// Error logs msg and returns it as an error.
func (l *SlogLogger) Error(msg string, args ...any) error {
	l.logger.Error(msg, args...)
	return fmt.Errorf("%s", msg)
}

// ErrorWithType logs msg and returns it wrapped around errType so callers
// can match it with errors.Is.
func (l *SlogLogger) ErrorWithType(errType error, msg string, args ...any) error {
	l.logger.Error(msg, args...)
	return fmt.Errorf("%w: %s", errType, msg)
}

// Err logs msg with err attached and returns err unchanged.
func (l *SlogLogger) Err(msg string, err error, args ...any) error {
	l.logger.Error(msg, append([]any{"error", err}, args...)...)
	return err
}

func (l *SlogLogger) ErrMsg(msg string) error {
	l.logger.Error(msg)
	return fmt.Errorf("%s", msg)
}

func (l *SlogLogger) Er(msg string, err error, args ...any) {
	l.logger.Error(msg, append([]any{"error", err}, args...)...)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogLogger) Timer(msg string) func() {
	start := time.Now()
	l.logger.Debug("Starting", "operation", msg)

	return func() {
		duration := time.Since(start)
		l.logger.Info("Timer Completed",
			"operation", msg,
			"duration_ms", duration.Milliseconds(),
			"duration", duration.String(),
		)
	}
}

// TimerWithMetrics is Timer plus heap and goroutine deltas, used around
// long streaming imports.
func (l *SlogLogger) TimerWithMetrics(msg string) func() {
	start := time.Now()

	var before runtime.MemStats
	runtime.ReadMemStats(&before)
	goroutines := runtime.NumGoroutine()

	return func() {
		var after runtime.MemStats
		runtime.ReadMemStats(&after)

		duration := time.Since(start)
		l.logger.Info("Operation completed with metrics",
			"operation", msg,
			"duration_ms", duration.Milliseconds(),
			"memory_start_mb", bytesToMB(before.Alloc),
			"memory_end_mb", bytesToMB(after.Alloc),
			"memory_total_alloc_mb", bytesToMB(after.TotalAlloc-before.TotalAlloc),
			"goroutines_start", goroutines,
			"goroutines_end", runtime.NumGoroutine(),
		)
	}
}

func bytesToMB(bytes uint64) float64 {
	return float64(bytes) / 1024 / 1024
}
