// storefront/metrics/metrics.go

package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

const namespace = "storefront"

// Metrics owns the storefront's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	cartOps         *prometheus.CounterVec
	cartLines       prometheus.Histogram
	persistFailures *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  f,
		cartOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Committed cart mutations by operation.",
		}, []string{"op"}),
		cartLines: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_line_items",
			Help:      "Distinct line items in a cart after each mutation.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		persistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Cart records that could not be saved or loaded.",
		}, []string{"action"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "Duration of HTTP requests in ms",
			Buckets:   []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSessions exports the value of fn as the live session gauge.
func (m *Metrics) ObserveSessions(fn func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Carts currently held in memory.",
	}, func() float64 { return float64(fn()) })
}

// CartListener counts every committed mutation of the store it is subscribed to.
func (m *Metrics) CartListener() cart.Listener {
	return cart.ListenerFunc(func(_ context.Context, ev cart.Event) {
		m.cartOps.WithLabelValues(string(ev.Op)).Inc()
		m.cartLines.Observe(float64(len(ev.State.Items)))
	})
}

// Persister wraps p so that failed saves and loads are counted.
func (m *Metrics) Persister(p cart.Persister) cart.Persister {
	return &countingPersister{next: p, failures: m.persistFailures}
}

type countingPersister struct {
	next     cart.Persister
	failures *prometheus.CounterVec
}

func (c *countingPersister) Save(ctx context.Context, state cart.CartState) error {
	err := c.next.Save(ctx, state)
	if err != nil {
		c.failures.WithLabelValues("save").Inc()
	}
	return err
}

func (c *countingPersister) Load(ctx context.Context) (cart.CartState, bool, error) {
	state, found, err := c.next.Load(ctx)
	if err != nil {
		c.failures.WithLabelValues("load").Inc()
	}
	return state, found, err
}

// Middleware records request counts and latency, labelled by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, path).Observe(float64(time.Since(start).Milliseconds()))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
