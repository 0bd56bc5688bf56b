package observability

import (
	"context"
	"fmt"

	"miniappctl/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the tool.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(config.ServiceName)
}

// GetGlobalTracer returns the global tracer instance for the tool.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(config.ServiceName)
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceFunctionWithErrorHandling starts a new span and automatically adds error attributes if the function panics or returns an error.
func TraceFunctionWithErrorHandling(ctx context.Context, serviceName, functionName string, fn func(context.Context) error, attributes ...attribute.KeyValue) error {
	ctx, span := TraceFunction(ctx, serviceName, functionName, attributes...)
	defer func() {
		if r := recover(); r != nil {
			span.SetAttributes(
				attribute.Bool("error", true),
				attribute.String("error.type", "panic"),
				attribute.String("error.message", fmt.Sprintf("%v", r)),
			)
			span.End()
			panic(r)
		}
	}()

	err := fn(ctx)
	if err != nil {
		span.SetAttributes(
			attribute.Bool("error", true),
			attribute.String("error.message", err.Error()),
		)
	}
	span.End()
	return err
}

// TraceManifestFunction starts a new span for a manifest service function.
func TraceManifestFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "manifest", functionName, attributes...)
}

// TraceMigrateFunction starts a new span for a template migration function.
func TraceMigrateFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "migrate", functionName, attributes...)
}

// TraceRegistryFunction starts a new span for a registry sync function.
func TraceRegistryFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "registry", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeAppID returns a tracing attribute for a miniapp directory name.
func AttributeAppID(appID string) attribute.KeyValue {
	return attribute.String("app.id", appID)
}

// AttributeSchemaVersion returns a tracing attribute for a manifest schema version.
func AttributeSchemaVersion(version string) attribute.KeyValue {
	return attribute.String("manifest.schema_version", version)
}

// AttributeChainID returns a tracing attribute for a network identifier.
func AttributeChainID(chainID string) attribute.KeyValue {
	return attribute.String("chain.id", chainID)
}

// AttributePath returns a tracing attribute for a filesystem path.
func AttributePath(path string) attribute.KeyValue {
	return attribute.String("file.path", path)
}

// AttributeCount returns a tracing attribute for a batch size.
func AttributeCount(n int) attribute.KeyValue {
	return attribute.Int("batch.count", n)
}
