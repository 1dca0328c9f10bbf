// storefront/catalog/http_client.go

package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

// DefaultBaseURL is the public demo API the storefront was built against.
const DefaultBaseURL = "https://dummyjson.com"

// HTTPClient talks to a dummyjson-style REST catalog.
type HTTPClient struct {
	baseURL  *url.URL
	http     *http.Client
	tracer   trace.Tracer
	meter    metric.MeterProvider
	duration metric.Float64Histogram
	log      logrus.FieldLogger
}

var _ Client = (*HTTPClient)(nil)

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithMeterProvider records request durations with mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) HTTPClientOption {
	return func(c *HTTPClient) { c.meter = mp }
}

// NewHTTPClient returns a client for baseURL. A zero timeout leaves requests
// bounded only by their context.
func NewHTTPClient(baseURL string, timeout time.Duration, log logrus.FieldLogger, opts ...HTTPClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "catalog: parse base url %q", baseURL)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("catalog"),
		meter:   otel.GetMeterProvider(),
		log:     log.WithField("component", "catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.duration, err = c.meter.Meter("catalog").Float64Histogram("catalog.request.duration",
		metric.WithDescription("Duration of catalog API requests."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: create duration histogram")
	}
	return c, nil
}

type productList struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

func (c *HTTPClient) Search(ctx context.Context, query string) ([]Product, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.Search", trace.WithAttributes(attribute.String("app.query", query)))
	defer span.End()

	var out productList
	if err := c.get(ctx, "/products/search", url.Values{"q": {query}}, &out); err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("app.results", len(out.Products)))
	return out.Products, nil
}

func (c *HTTPClient) Get(ctx context.Context, id cart.ID) (Product, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.Get", trace.WithAttributes(attribute.String("app.product_id", string(id))))
	defer span.End()

	var p Product
	if err := c.get(ctx, "/products/"+url.PathEscape(string(id)), nil, &p); err != nil {
		recordError(span, err)
		return Product{}, err
	}
	return p, nil
}

func (c *HTTPClient) List(ctx context.Context, limit, skip int) ([]Product, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.List", trace.WithAttributes(
		attribute.Int("app.limit", limit),
		attribute.Int("app.skip", skip),
	))
	defer span.End()

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	var out productList
	if err := c.get(ctx, "/products", q, &out); err != nil {
		recordError(span, err)
		return nil, err
	}
	return out.Products, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, v any) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "catalog: build request")
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "catalog: GET %s", path)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	c.duration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(
		attribute.String("endpoint", endpoint(path)),
		attribute.Int("status", resp.StatusCode),
	))
	c.log.WithFields(logrus.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": elapsed,
	}).Debug("catalog request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("catalog: GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "catalog: decode %s", path)
	}
	return nil
}

// endpoint collapses product ids so the metric keeps a bounded label set.
func endpoint(path string) string {
	switch {
	case path == "/products", path == "/products/search":
		return path
	case strings.HasPrefix(path, "/products/"):
		return "/products/{id}"
	default:
		return path
	}
}

func recordError(span trace.Span, err error) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
