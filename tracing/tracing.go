// storefront/tracing/tracing.go

package tracing

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Options configures the tracer and meter providers.
type Options struct {
	Enabled        bool
	Exporter       string
	Endpoint       string
	ServiceName    string
	ServiceVersion string

	// MetricInterval is how often metrics are pushed. Defaults to 10s.
	MetricInterval time.Duration

	// Stdout receives spans from the stdout exporter. Defaults to os.Stdout.
	Stdout io.Writer
}

func (o *Options) setDefaults() {
	if o.ServiceName == "" {
		o.ServiceName = "storefront"
	}
	if o.ServiceVersion == "" {
		o.ServiceVersion = "v1.0.0"
	}
	if o.Exporter == "" {
		o.Exporter = ExporterOTLP
	}
	if o.MetricInterval <= 0 {
		o.MetricInterval = 10 * time.Second
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
}

func newResource(ctx context.Context, opts Options) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "tracing: create resource")
	}
	return res, nil
}

// Propagator accepts and emits both W3C trace context and B3 headers.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader|b3.B3SingleHeader)),
	)
}

// InitTracerProvider installs a global TracerProvider and Propagator. With
// Enabled set, spans are batched to the configured exporter; otherwise they
// are recorded and dropped.
func InitTracerProvider(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	opts.setDefaults()
	res, err := newResource(ctx, opts)
	if err != nil {
		return nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	}
	if opts.Enabled {
		exporter, err := newSpanExporter(ctx, opts)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(Propagator())
	return tp, nil
}

func newSpanExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case ExporterOTLP:
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "tracing: create OTLP exporter")
		}
		return exporter, nil
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(opts.Stdout))
		if err != nil {
			return nil, errors.Wrap(err, "tracing: create stdout exporter")
		}
		return exporter, nil
	default:
		return nil, errors.Errorf("tracing: unknown exporter %q", opts.Exporter)
	}
}

// InitMeterProvider installs a global MeterProvider. Instruments are pushed
// to the OTLP collector only when Enabled is set and the exporter is otlp.
func InitMeterProvider(ctx context.Context, opts Options) (*sdkmetric.MeterProvider, error) {
	opts.setDefaults()
	res, err := newResource(ctx, opts)
	if err != nil {
		return nil, err
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.Enabled && opts.Exporter == ExporterOTLP {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(opts.Endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "tracing: create OTLP metric exporter")
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(opts.MetricInterval)),
		))
	}

	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)
	return mp, nil
}
