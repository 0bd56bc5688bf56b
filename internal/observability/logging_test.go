package observability

import (
	"context"
	"errors"
	"testing"

	contextutils "miniappctl/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zap.AtomicLevel) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestLogWithContextAddsTraceInfo(t *testing.T) {
	tp := trace.NewTracerProvider()
	tracer := tp.Tracer("test-tracer")

	logger, observedLogs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	logger.Info(ctx, "test message", nil)

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "test message", entries[0].Message)

	fields := entries[0].ContextMap()
	spanContext := span.SpanContext()
	assert.Equal(t, spanContext.TraceID().String(), fields["trace_id"])
	assert.Equal(t, spanContext.SpanID().String(), fields["span_id"])
}

func TestLogWithContextNoSpan(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))

	logger.Info(context.Background(), "test message", nil)

	entries := observedLogs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "span_id")
}

func TestLogWithContextAddsRunAndApp(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.NewAtomicLevelAt(zap.DebugLevel))

	ctx := contextutils.WithAppID(contextutils.WithRunID(context.Background(), "run-42"), "lottery")
	logger.Debug(ctx, "normalizing", map[string]interface{}{"schema": "v3"}, map[string]interface{}{"create_missing": true})

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-42", fields["run_id"])
	assert.Equal(t, "lottery", fields["app"])
	assert.Equal(t, "v3", fields["schema"])
	assert.Equal(t, true, fields["create_missing"])
}

func TestLoggerErrorAddsAppErrorFields(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))

	err := contextutils.WrapError(contextutils.ErrInvalidJSON, "parse manifest")
	logger.Error(context.Background(), "manifest failed", err, map[string]interface{}{"app": "coin-flip"})
	logger.Error(context.Background(), "plain failure", errors.New("boom"))

	entries := observedLogs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "INVALID_JSON", first["error_code"])
	assert.Equal(t, "error", first["error_severity"])
	assert.Equal(t, "parse manifest", first["error_message"])
	assert.Contains(t, first["error_details"], "Invalid JSON")
	assert.Contains(t, first["error"], "parse manifest")

	second := entries[1].ContextMap()
	assert.Equal(t, "boom", second["error"])
	assert.NotContains(t, second, "error_code")
}

func TestLoggerErrorUsesAppErrorSeverity(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.NewAtomicLevelAt(zap.DebugLevel))
	ctx := context.Background()

	logger.Error(ctx, "apps dir missing", contextutils.NewCodedErrorf(contextutils.ErrDirectoryNotFound, nil, "apps not found"))
	logger.Error(ctx, "bad config", contextutils.NewCodedErrorf(contextutils.ErrInvalidConfig, nil, "no database url"))
	logger.Error(ctx, "noted", &contextutils.AppError{Code: contextutils.ErrorCodeInternalError, Severity: contextutils.SeverityInfo})

	entries := observedLogs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "DIRECTORY_NOT_FOUND", entries[0].ContextMap()["error_code"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "fatal", entries[1].ContextMap()["error_severity"])
	assert.Equal(t, zap.InfoLevel, entries[2].Level)
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.NewAtomicLevelAt(ParseLevel("error")))

	logger.Info(context.Background(), "hidden")
	logger.Warn(context.Background(), "hidden too")
	logger.Error(context.Background(), "shown", nil)

	require.Equal(t, 1, observedLogs.Len())
	assert.Equal(t, "shown", observedLogs.All()[0].Message)
}

func TestLoggerWithFields(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.NewAtomicLevelAt(zap.InfoLevel))

	child := logger.WithFields(map[string]interface{}{"command": "normalize"})
	child.Info(context.Background(), "started")

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "normalize", entries[0].ContextMap()["command"])
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info(context.Background(), "ignored")
	assert.NoError(t, logger.Shutdown(context.Background()))
}
