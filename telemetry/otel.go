// Package telemetry sets up the OpenTelemetry SDK for netwatch.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/getlantern/netwatch/config"
)

const serviceName = "netwatch"

var (
	initMutex    sync.Mutex
	shutdownOTEL func(context.Context) error
)

// Attributes describe the process in exported telemetry.
type Attributes struct {
	AppVersion string
	Platform   string
	GoVersion  string
	OSName     string
	OSArch     string
}

// DefaultAttributes fills in what the runtime knows.
func DefaultAttributes(version string) Attributes {
	return Attributes{
		AppVersion: version,
		Platform:   runtime.GOOS,
		GoVersion:  runtime.Version(),
		OSName:     runtime.GOOS,
		OSArch:     runtime.GOARCH,
	}
}

// Init (re)starts the SDK with cfg. Without an endpoint nothing is exported and the global
// providers stay no-ops.
func Init(ctx context.Context, cfg config.Telemetry, attrs Attributes) error {
	initMutex.Lock()
	defer initMutex.Unlock()

	if shutdownOTEL != nil {
		slog.Info("Shutting down existing OpenTelemetry SDK")
		if err := shutdownOTEL(ctx); err != nil {
			return fmt.Errorf("failed to shutdown OpenTelemetry SDK: %w", err)
		}
		shutdownOTEL = nil
	}
	if cfg.Endpoint == "" {
		slog.Debug("No otel endpoint configured, skipping OpenTelemetry initialization")
		return nil
	}

	shutdown, err := setupOTelSDK(ctx, attrs, cfg)
	if err != nil {
		return fmt.Errorf("failed to start OpenTelemetry SDK: %w", err)
	}
	shutdownOTEL = shutdown
	return nil
}

// Close flushes and stops the SDK.
func Close(ctx context.Context) error {
	initMutex.Lock()
	defer initMutex.Unlock()

	if shutdownOTEL == nil {
		return nil
	}
	err := shutdownOTEL(ctx)
	shutdownOTEL = nil
	if err != nil {
		return fmt.Errorf("failed to shutdown OpenTelemetry SDK: %w", err)
	}
	return nil
}

func buildResources(a Attributes) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(a.AppVersion),
		attribute.String("library.language", "go"),
		attribute.String("library.language.version", a.GoVersion),
		attribute.String("platform", a.Platform),
		attribute.String("os.name", a.OSName),
		attribute.String("os.arch", a.OSArch),
	}
}

func setupOTelSDK(ctx context.Context, attributes Attributes, cfg config.Telemetry) (func(context.Context) error, error) {
	if !cfg.TracesEnabled && !cfg.MetricsEnabled {
		return func(_ context.Context) error { return nil }, nil
	}
	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}
	res, err := resource.New(ctx, resource.WithAttributes(buildResources(attributes)...))
	if err != nil {
		return shutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.TracesEnabled {
		fn, err := initTracer(ctx, res, cfg)
		if err != nil {
			return shutdown, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, fn)
		slog.Info("OpenTelemetry tracer initialized", "endpoint", cfg.Endpoint)
	}
	if cfg.MetricsEnabled {
		fn, err := initMeterProvider(ctx, res, cfg)
		if err != nil {
			return shutdown, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, fn)
		slog.Info("OpenTelemetry meter provider initialized", "endpoint", cfg.Endpoint)
	}
	return shutdown, nil
}

func transportCredentials(cfg config.Telemetry) credentials.TransportCredentials {
	if cfg.Insecure {
		return insecure.NewCredentials()
	}
	return credentials.NewClientTLSFromCert(nil, "")
}

func initTracer(ctx context.Context, res *resource.Resource, cfg config.Telemetry) (func(context.Context) error, error) {
	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithTLSCredentials(transportCredentials(cfg)),
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	return func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

func initMeterProvider(ctx context.Context, res *resource.Resource, cfg config.Telemetry) (func(context.Context) error, error) {
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithTLSCredentials(transportCredentials(cfg)),
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, readerOpts...)),
	)
	otel.SetMeterProvider(meterProvider)

	return meterProvider.Shutdown, nil
}
