// Package observability wires structured logging, tracing, and metrics for
// the worker process over OTLP/HTTP, adapted from the teacher's
// observability bootstrap for MAVEDB_WORKER_OTEL_ENABLED/
// MAVEDB_WORKER_OTEL_COLLECTOR instead of the generic OTEL_* toggle.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/mavedb/worker/internal/config"
)

// ServiceName identifies this process to the collector.
const ServiceName = "mavedb-worker"

func newResource(ctx context.Context) (*resource.Resource, error) {
	serviceResource, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(ServiceName)),
		resource.WithFromEnv(),
		resource.WithSchemaURL(semconv.SchemaURL),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to build service resource: %w", err)
	}

	res, err := resource.Merge(resource.Default(), serviceResource)
	if err != nil {
		if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
			return res, nil
		}
		return nil, fmt.Errorf("observability: failed to merge resources: %w", err)
	}
	return res, nil
}

func traceOptions(cfg config.ObservabilityConfig) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(10 * time.Second)}
	if cfg.OTelCollector != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.OTelCollector))
	}
	return opts
}

func metricOptions(cfg config.ObservabilityConfig) []otlpmetrichttp.Option {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithTimeout(10 * time.Second)}
	if cfg.OTelCollector != "" {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.OTelCollector))
	}
	return opts
}

func logOptions(cfg config.ObservabilityConfig) []otlploghttp.Option {
	opts := []otlploghttp.Option{otlploghttp.WithTimeout(10 * time.Second)}
	if cfg.OTelCollector != "" {
		opts = append(opts, otlploghttp.WithEndpointURL(cfg.OTelCollector))
	}
	return opts
}

// InitTracerProvider installs a batching OTLP/HTTP tracer provider, or a
// no-op one when tracing is disabled.
func InitTracerProvider(ctx context.Context, cfg config.ObservabilityConfig) (*sdktrace.TracerProvider, error) {
	if !cfg.OTelEnabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(context.Background(), traceOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// InitMeterProvider installs a periodic OTLP/HTTP meter provider, or a no-op
// one when metrics are disabled.
func InitMeterProvider(ctx context.Context, cfg config.ObservabilityConfig) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTelEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}

	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetrichttp.New(context.Background(), metricOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// InitLogger installs an OTLP/HTTP log provider and returns a bridged
// slog.Logger, or a plain JSON-to-stdout logger when disabled.
func InitLogger(ctx context.Context, cfg config.ObservabilityConfig) (*log.LoggerProvider, *slog.Logger, error) {
	if !cfg.OTelEnabled {
		return log.NewLoggerProvider(), slog.New(slog.NewJSONHandler(os.Stdout, nil)), nil
	}

	res, err := newResource(ctx)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := otlploghttp.New(context.Background(), logOptions(cfg)...)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: failed to create log exporter: %w", err)
	}

	lp := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter, log.WithExportTimeout(5*time.Second))),
		log.WithResource(res),
	)
	logger := otelslog.NewLogger(ServiceName, otelslog.WithLoggerProvider(lp))
	return lp, logger, nil
}
