// Package telemetry installs the OpenTelemetry trace and log pipelines and
// the error tracker.
package telemetry

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

type ShutdownFunc func(ctx context.Context) error

func noop(context.Context) error { return nil }

// TraceURL resolves the OTLP/HTTP traces URL for an endpoint. A bare host is
// treated as https.
func TraceURL(endpoint string) (*url.URL, error) {
	return signalURL(endpoint, "/v1/traces")
}

// LogURL is TraceURL for the logs signal.
func LogURL(endpoint string) (*url.URL, error) {
	return signalURL(endpoint, "/v1/logs")
}

func signalURL(endpoint string, defaultPath string) (*url.URL, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing otlp endpoint")
	}
	if u.Host == "" {
		return nil, errors.Newf("otlp endpoint %q has no host", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultPath
	}
	return u, nil
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) && !errors.Is(err, resource.ErrSchemaURLConflict) {
		return nil, errors.Wrap(err, "error creating resource")
	}
	return res, nil
}

// InitTracing exports spans to endpoint over OTLP/HTTP and installs the
// provider globally. An empty endpoint leaves the global no-op tracer in place.
func InitTracing(ctx context.Context, endpoint string, serviceName string) (ShutdownFunc, error) {
	if endpoint == "" {
		return noop, nil
	}
	traceURL, err := TraceURL(endpoint)
	if err != nil {
		return nil, err
	}
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(traceURL.String()),
		otlptracehttp.WithTimeout(10 * time.Second),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if traceURL.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "error creating trace exporter")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return provider.Shutdown, nil
}
