package observability

import (
	"context"
	"errors"
	"os"

	"miniappctl/internal/config"

	autosdk "go.opentelemetry.io/auto/sdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupObservability initializes tracing, metrics, and logging for a service
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string) (result0 trace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	return SetupObservabilityWithLevel(cfg, serviceName, zap.InfoLevel)
}

// SetupObservabilityWithLevel is SetupObservability with an explicit stderr log level
func SetupObservabilityWithLevel(cfg *config.OpenTelemetryConfig, serviceName string, level zapcore.Level) (result0 trace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	var tp trace.TracerProvider
	var mp *metric.MeterProvider

	if err := os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName); err != nil {
		return nil, nil, nil, err
	}
	if err := os.Setenv("OTEL_SERVICE_VERSION", cfg.ServiceVersion); err != nil {
		return nil, nil, nil, err
	}

	logger := NewLoggerWithLevel(cfg, level)

	if cfg.EnableTracing {
		if cfg.UseAutoSDK {
			tp = autosdk.TracerProvider()
			otel.SetTracerProvider(tp)
			logger.Debug(context.Background(), "Tracing enabled with Auto SDK", map[string]interface{}{"service_name": cfg.ServiceName})
		} else {
			tp, err = InitStandardTracing(cfg)
			if err != nil {
				return nil, nil, logger, err
			}
			otel.SetTracerProvider(tp)
			logger.Debug(context.Background(), "Tracing enabled with standard SDK", map[string]interface{}{"service_name": cfg.ServiceName})
		}

		if err := InitTracing(cfg); err != nil {
			return nil, nil, logger, err
		}

		InitGlobalTracer()
	}

	if cfg.EnableMetrics {
		mp, err = InitMetrics(cfg)
		if err != nil {
			return tp, nil, logger, err
		}
		otel.SetMeterProvider(mp)
	}

	return tp, mp, logger, nil
}

// Shutdown flushes and stops whatever SetupObservability started
func Shutdown(ctx context.Context, tp trace.TracerProvider, mp *metric.MeterProvider, logger *Logger) error {
	var errs []error
	if sdkTP, ok := tp.(*sdktrace.TracerProvider); ok {
		errs = append(errs, sdkTP.Shutdown(ctx))
	}
	if mp != nil {
		errs = append(errs, mp.Shutdown(ctx))
	}
	if logger != nil {
		errs = append(errs, logger.Shutdown(ctx))
		// stderr sync fails with EINVAL on some terminals
		_ = logger.Sync()
	}
	return errors.Join(errs...)
}
