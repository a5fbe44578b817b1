package telemetry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/logger"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InitLogging ships log records to endpoint over OTLP/HTTP in addition to
// base. An empty endpoint returns base unchanged.
func InitLogging(ctx context.Context, endpoint string, serviceName string, base logger.Logger, level logger.LogLevel) (logger.Logger, ShutdownFunc, error) {
	if endpoint == "" {
		return base, noop, nil
	}
	logURL, err := LogURL(endpoint)
	if err != nil {
		return nil, nil, err
	}
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	opts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(logURL.String()),
		otlploghttp.WithTimeout(10 * time.Second),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if logURL.Scheme == "http" {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating log exporter")
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	log := logger.NewOtelLogger(provider.Logger(serviceName), level).Stack(base)
	return log, provider.Shutdown, nil
}
