// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the engine. Both providers are optional: nil values are valid
// and turn every call into a no-op.
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/lsp-sdk-go"

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string

	ExporterType ExporterType
	Endpoint     string
	Headers      map[string]string
	Insecure     bool

	// SampleRate is between 0.0 and 1.0
	SampleRate float64
	// NeverSample lists methods that are never traced, such as $/progress
	NeverSample []string

	// Exporter overrides ExporterType, mainly for tests
	Exporter sdktrace.SpanExporter

	// SetGlobal installs the provider as the global otel TracerProvider
	SetGlobal bool
}

// ExporterType defines the type of trace exporter
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeNoop     ExporterType = "noop"
	// ExporterTypeNone disables tracing altogether
	ExporterTypeNone ExporterType = "none"
)

// TracingProvider creates spans around dispatched and outbound calls
type TracingProvider struct {
	config         TracingConfig
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	mu             sync.Mutex
	shutdown       func(context.Context) error
}

// NewTracingProvider creates a new tracing provider. ExporterTypeNone
// returns a nil provider, which is valid to use.
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	if config.ExporterType == ExporterTypeNone || (config.ExporterType == "" && config.Exporter == nil) {
		return nil, nil
	}
	if config.ServiceName == "" {
		config.ServiceName = "lsp-server"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = "unknown"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}

	exporter := config.Exporter
	if exporter == nil {
		var err error
		if exporter, err = createExporter(config); err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(config)),
	)
	if config.SetGlobal {
		otel.SetTracerProvider(tp)
	}

	return &TracingProvider{
		config:         config,
		tracerProvider: tp,
		tracer:         tp.Tracer(instrumentationName),
		shutdown:       tp.Shutdown,
	}, nil
}

func createExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.ExporterType {
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))

	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))

	case ExporterTypeNoop:
		return &noopExporter{}, nil

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}
}

func createSampler(config TracingConfig) sdktrace.Sampler {
	var base sdktrace.Sampler
	switch {
	case config.SampleRate >= 1.0:
		base = sdktrace.AlwaysSample()
	case config.SampleRate <= 0.0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(config.SampleRate)
	}

	if len(config.NeverSample) == 0 {
		return base
	}

	never := make(map[string]struct{}, len(config.NeverSample))
	for _, method := range config.NeverSample {
		never[method] = struct{}{}
	}
	return &methodSampler{base: base, never: never}
}

// StartMethodSpan starts a span for one JSON-RPC call. kind is
// trace.SpanKindServer for inbound calls and trace.SpanKindClient for calls
// sent to the peer.
func (tp *TracingProvider) StartMethodSpan(ctx context.Context, method string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	attrs = append(attrs,
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", method),
		attribute.String("rpc.service", tp.config.ServiceName),
	)
	return tp.tracer.Start(ctx, method, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it
func (tp *TracingProvider) EndSpan(span trace.Span, err error) {
	if tp == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddEvent adds an event to the span in ctx
func (tp *TracingProvider) AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// ForceFlush exports every finished span
func (tp *TracingProvider) ForceFlush(ctx context.Context) error {
	if tp == nil {
		return nil
	}
	return tp.tracerProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	if tp == nil {
		return nil
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.shutdown != nil {
		err := tp.shutdown(ctx)
		tp.shutdown = nil
		return err
	}
	return nil
}

// methodSampler drops spans for listed methods and defers to base otherwise
type methodSampler struct {
	base  sdktrace.Sampler
	never map[string]struct{}
}

func (ms *methodSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	method := params.Name
	for _, attr := range params.Attributes {
		if attr.Key == "rpc.method" {
			method = attr.Value.AsString()
			break
		}
	}
	if _, ok := ms.never[method]; ok {
		return sdktrace.SamplingResult{Decision: sdktrace.Drop}
	}
	return ms.base.ShouldSample(params)
}

func (ms *methodSampler) Description() string {
	return fmt.Sprintf("MethodSampler{base=%s, never=%d}", ms.base.Description(), len(ms.never))
}

type noopExporter struct{}

func (n *noopExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (n *noopExporter) Shutdown(ctx context.Context) error {
	return nil
}
