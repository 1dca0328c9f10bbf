package tracing_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
	"github.com/norun9/microservices-demo-ambient/src/storefront/tracing"
)

func TestInitTracerProviderDisabled(t *testing.T) {
	ctx := context.Background()
	tp, err := tracing.InitTracerProvider(ctx, tracing.Options{})
	require.NoError(t, err)
	defer tp.Shutdown(ctx)

	assert.Same(t, tp, otel.GetTracerProvider())
	assert.ElementsMatch(t,
		[]string{"traceparent", "tracestate", "b3", "x-b3-traceid", "x-b3-spanid", "x-b3-sampled", "x-b3-flags"},
		otel.GetTextMapPropagator().Fields())
}

func TestPropagatorAcceptsB3(t *testing.T) {
	h := http.Header{}
	h.Set("b3", "80f198ee56343ba864fe8b2a57d3eff7-e457b5a2e4d86bd1-1")

	ctx := tracing.Propagator().Extract(context.Background(), propagation.HeaderCarrier(h))
	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.Equal(t, "80f198ee56343ba864fe8b2a57d3eff7", sc.TraceID().String())
	assert.True(t, sc.IsSampled())

	out := http.Header{}
	tracing.Propagator().Inject(ctx, propagation.HeaderCarrier(out))
	assert.Equal(t, "00-80f198ee56343ba864fe8b2a57d3eff7-e457b5a2e4d86bd1-01", out.Get("traceparent"))
	assert.Equal(t, "80f198ee56343ba864fe8b2a57d3eff7", out.Get("x-b3-traceid"))
}

func TestStdoutExporter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tp, err := tracing.InitTracerProvider(ctx, tracing.Options{Enabled: true, Exporter: tracing.ExporterStdout, Stdout: &buf})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "cart.AddItem")
	span.End()
	require.NoError(t, tp.Shutdown(ctx))

	assert.Contains(t, buf.String(), `"Name":"cart.AddItem"`)
}

func TestUnknownExporter(t *testing.T) {
	_, err := tracing.InitTracerProvider(context.Background(), tracing.Options{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")
}

func TestInitMeterProvider(t *testing.T) {
	ctx := context.Background()
	mp, err := tracing.InitMeterProvider(ctx, tracing.Options{})
	require.NoError(t, err)
	defer mp.Shutdown(ctx)

	assert.Same(t, mp, otel.GetMeterProvider())
}

func TestInitTracerProviderEnabled(t *testing.T) {
	ctx := context.Background()
	// the exporter connects lazily, so no collector is needed here
	tp, err := tracing.InitTracerProvider(ctx, tracing.Options{Enabled: true, Endpoint: "localhost:4317"})
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("storefront"))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = tp.Shutdown(shutdownCtx)
}

func TestCartSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx := context.Background()

	s := cart.NewStore(cart.WithTracer(tp.Tracer("cart")))
	s.AddItem(ctx, cart.CartItem{ID: "p1", Price: decimal.NewFromInt(3), Quantity: 1})
	s.RemoveItem(ctx, "p1")

	var names []string
	for _, span := range rec.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"cart.AddItem", "cart.RemoveItem"}, names)
}
