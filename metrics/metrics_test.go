package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

type brokenPersister struct{}

func (brokenPersister) Save(context.Context, cart.CartState) error {
	return errors.New("disk full")
}

func (brokenPersister) Load(context.Context) (cart.CartState, bool, error) {
	return cart.CartState{}, false, errors.New("disk full")
}

func TestCartListenerCountsOperations(t *testing.T) {
	m := New()
	ctx := context.Background()
	s := cart.NewStore()
	s.Subscribe(m.CartListener())

	item := cart.CartItem{ID: "p1", Price: decimal.NewFromInt(10), Quantity: 1}
	s.AddItem(ctx, item)
	s.AddItem(ctx, item)
	s.UpdateQuantity(ctx, "p1", 5)
	s.RemoveItem(ctx, "missing")
	s.ClearCart(ctx)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cartOps.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartOps.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartOps.WithLabelValues("clear")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cartOps.WithLabelValues("remove")), "no-op removals are not commits")
	assert.Equal(t, 1, testutil.CollectAndCount(m.cartLines))
}

func TestPersisterCountsFailures(t *testing.T) {
	m := New()
	ctx := context.Background()
	p := m.Persister(brokenPersister{})

	s := cart.Restore(ctx, p)
	s.AddItem(ctx, cart.CartItem{ID: "p1", Price: decimal.NewFromInt(1), Quantity: 1})
	s.AddItem(ctx, cart.CartItem{ID: "p2", Price: decimal.NewFromInt(1), Quantity: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures.WithLabelValues("load")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.persistFailures.WithLabelValues("save")))
	assert.Equal(t, 2, s.State().Count(), "failed saves leave the cart intact")
}

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/cart/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cart/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("DELETE", "/cart/{id}", "204")))

	m.ObserveSessions(func() int { return 3 })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "storefront_sessions 3")
	assert.Contains(t, string(body), `storefront_http_requests_total{method="DELETE",path="/cart/{id}",status="204"} 2`)
}
