// Package observability provides OpenTelemetry tracing, metrics, and structured logging
// with trace correlation for the miniapp maintenance tooling.
package observability

import (
	"context"
	"errors"
	"os"
	"strings"

	"miniappctl/internal/config"
	contextutils "miniappctl/internal/utils"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap logger with OpenTelemetry context support
type Logger struct {
	*zap.Logger
	provider *log.LoggerProvider
}

// NewLogger creates a new logger with OpenTelemetry context support and OTLP export
func NewLogger(cfg *config.OpenTelemetryConfig) *Logger {
	return NewLoggerWithLevel(cfg, zap.InfoLevel)
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ParseLevel maps a config log level to a zap level, defaulting to error
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	default:
		return zap.ErrorLevel
	}
}

// NewLoggerWithLevel creates a stderr logger at level. When OTLP logging is
// enabled the records are also exported through the otelzap bridge.
func NewLoggerWithLevel(cfg *config.OpenTelemetryConfig, level zapcore.Level) *Logger {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.Encoding = "console"
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.StacktraceKey = "stacktrace"
	zapConfig.DisableStacktrace = true

	if os.Getenv("ENV") == "development" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		zapLogger = zap.NewExample()
	}

	if cfg == nil || !cfg.EnableLogging || cfg.Endpoint == "" {
		return &Logger{Logger: zapLogger}
	}

	zapLogger.Debug("Setting up OTLP logging", zap.String("endpoint", cfg.Endpoint), zap.String("protocol", cfg.Protocol))

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		zapLogger.Error("Failed to create otel resource", zap.Error(err))
		return &Logger{Logger: zapLogger}
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}
	exporter, err := otlploggrpc.New(context.Background(), opts...)
	if err != nil {
		zapLogger.Error("Failed to create OTLP exporter", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: zapLogger}
	}

	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)
	otelCore := otelzap.NewCore(config.ServiceName, otelzap.WithLoggerProvider(provider))

	// The OTLP core sees every record the stderr core accepts
	teed := zapcore.NewTee(zapLogger.Core(), otelCore)
	zapLogger = zap.New(teed)
	zapLogger.Debug("OTLP logging configured", zap.String("endpoint", cfg.Endpoint))

	return &Logger{Logger: zapLogger, provider: provider}
}

// Debug logs a debug message with context
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.DebugLevel, msg, fields...)
}

// Info logs an info message with context
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.InfoLevel, msg, fields...)
}

// Warn logs a warning message with context
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.WarnLevel, msg, fields...)
}

// Error logs an error message with context. AppError fields are added with an
// "error_" prefix and the record is logged at the AppError's severity.
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	allFields := l.mergeFields(fields...)
	level := zap.ErrorLevel
	if err != nil {
		allFields["error"] = err.Error()
		var appErr *contextutils.AppError
		if errors.As(err, &appErr) {
			for k, v := range appErr.ToFields() {
				allFields["error_"+k] = v
			}
			level = severityLevel(contextutils.GetErrorSeverity(err))
		}
	}
	l.logWithContext(ctx, level, msg, allFields)
}

// severityLevel maps an AppError severity to a zap level. Fatal is logged as
// error since the caller decides whether to exit.
func severityLevel(severity contextutils.SeverityLevel) zapcore.Level {
	switch severity {
	case contextutils.SeverityDebug:
		return zap.DebugLevel
	case contextutils.SeverityInfo:
		return zap.InfoLevel
	case contextutils.SeverityWarn:
		return zap.WarnLevel
	default:
		return zap.ErrorLevel
	}
}

// WithFields returns a child logger that always carries fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &Logger{Logger: l.Logger.With(zapFields...), provider: l.provider}
}

// logWithContext logs a message with OpenTelemetry context correlation
func (l *Logger) logWithContext(ctx context.Context, level zapcore.Level, msg string, fields ...map[string]interface{}) {
	allFields := l.mergeFields(fields...)

	if span := trace.SpanFromContext(ctx); span != nil {
		spanContext := span.SpanContext()
		if spanContext.IsValid() {
			allFields["trace_id"] = spanContext.TraceID().String()
			allFields["span_id"] = spanContext.SpanID().String()
		}
	}
	if runID := contextutils.GetRunIDFromContext(ctx); runID != "" {
		allFields["run_id"] = runID
	}
	if appID := contextutils.GetAppIDFromContext(ctx); appID != "" {
		allFields["app"] = appID
	}

	zapFields := make([]zap.Field, 0, len(allFields))
	for k, v := range allFields {
		zapFields = append(zapFields, zap.Any(k, v))
	}

	switch level {
	case zap.DebugLevel:
		l.Logger.Debug(msg, zapFields...)
	case zap.InfoLevel:
		l.Logger.Info(msg, zapFields...)
	case zap.WarnLevel:
		l.Logger.Warn(msg, zapFields...)
	case zap.ErrorLevel:
		l.Logger.Error(msg, zapFields...)
	default:
		l.Logger.Info(msg, zapFields...)
	}
}

// mergeFields merges multiple field maps into a new map
func (l *Logger) mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			merged[k] = v
		}
	}
	return merged
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}

// Shutdown flushes the OTLP log pipeline if one was configured
func (l *Logger) Shutdown(ctx context.Context) error {
	if l.provider == nil {
		return nil
	}
	return l.provider.Shutdown(ctx)
}
