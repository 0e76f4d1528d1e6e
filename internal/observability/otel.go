package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/yungbote/coursetree-backend/internal/platform/envutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const defaultServiceName = "coursetree-backend"

// OtelConfig describes the deployment the spans come from. Runner is "local" or "temporal".
type OtelConfig struct {
	ServiceName       string
	Environment       string
	Version           string
	CheckpointBackend string
	Runner            string
	Language          string
}

// Resource builds the coursetree resource attached to every exported span.
func (cfg OtelConfig) Resource() *resource.Resource {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(name),
		semconv.ServiceNamespaceKey.String("coursetree"),
	}
	optional := []struct {
		key attribute.Key
		val string
	}{
		{semconv.ServiceVersionKey, cfg.Version},
		{semconv.DeploymentEnvironmentNameKey, cfg.Environment},
		{"coursetree.checkpoint_backend", cfg.CheckpointBackend},
		{"coursetree.runner", cfg.Runner},
		{"coursetree.output_language", cfg.Language},
	}
	for _, o := range optional {
		if v := strings.TrimSpace(o.val); v != "" {
			attrs = append(attrs, o.key.String(v))
		}
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider once when OTEL_ENABLED is set. Spans go to
// OTEL_EXPORTER_OTLP_ENDPOINT, or to stdout without one. The returned shutdown may be nil.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !envutil.Bool("OTEL_ENABLED", false) {
			return
		}
		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
			sdktrace.WithResource(cfg.Resource()),
		}
		exporter, err := buildTraceExporter(ctx, log)
		if err != nil && log != nil {
			log.Warn("otel exporter init failed (continuing)", "error", err)
		}
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		if log != nil {
			log.Info("otel tracing initialized", "runner", cfg.Runner, "checkpoints", cfg.CheckpointBackend, "endpoint", otlpEndpoint())
		}
	})
	return otelShutdown
}

// sampleRatio reads OTEL_SAMPLER_RATIO clamped to [0,1], default 0.1.
func sampleRatio() float64 {
	f, err := strconv.ParseFloat(envutil.String("OTEL_SAMPLER_RATIO", "0.1"), 64)
	switch {
	case err != nil:
		return 0.1
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func otlpEndpoint() string { return envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "") }

// otlpHeaders parses OTEL_EXPORTER_OTLP_HEADERS as comma separated key=value pairs.
func otlpHeaders() map[string]string {
	headers := map[string]string{}
	for _, part := range envutil.List("OTEL_EXPORTER_OTLP_HEADERS", nil) {
		key, val, ok := strings.Cut(part, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if ok && key != "" && val != "" {
			headers[key] = val
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func buildTraceExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	endpoint := otlpEndpoint()
	if endpoint == "" {
		if log != nil {
			log.Warn("otel using stdout exporter (no OTLP endpoint configured)")
		}
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		return exp, nil
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false) {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if headers := otlpHeaders(); headers != nil {
		opts = append(opts, otlptracehttp.WithHeaders(headers))
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return exp, nil
}
