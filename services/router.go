// storefront/services/router.go

package services

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

const serviceName = "storefront"

// RouterOption adds routes or middleware to the router.
type RouterOption func(*mux.Router)

// WithMetrics records every request with mw and serves handler at /metrics.
func WithMetrics(mw mux.MiddlewareFunc, handler http.Handler) RouterOption {
	return func(r *mux.Router) {
		r.Use(mw)
		r.Handle("/metrics", handler).Methods(http.MethodGet)
	}
}

// NewRouter mounts the storefront API.
func NewRouter(s *CartService, opts ...RouterOption) *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName), logRequests(s.log))
	for _, opt := range opts {
		opt(r)
	}

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", s.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/search", s.searchProducts).Methods(http.MethodGet)
	r.HandleFunc("/ads", s.ads).Methods(http.MethodGet)

	shop := r.NewRoute().Subrouter()
	shop.Use(s.withSession)
	shop.HandleFunc("/cart", s.getCart).Methods(http.MethodGet)
	shop.HandleFunc("/cart", s.addItem).Methods(http.MethodPost)
	shop.HandleFunc("/cart", s.clearCart).Methods(http.MethodDelete)
	shop.HandleFunc("/cart/{id}", s.updateQuantity).Methods(http.MethodPatch)
	shop.HandleFunc("/cart/{id}", s.removeItem).Methods(http.MethodDelete)
	shop.HandleFunc("/search/input", s.searchInput).Methods(http.MethodPost)
	shop.HandleFunc("/search/overlay", s.searchOverlay).Methods(http.MethodGet)
	shop.HandleFunc("/recommendations", s.recommendations).Methods(http.MethodGet)
	shop.HandleFunc("/session", s.forgetSession).Methods(http.MethodDelete)

	return r
}
