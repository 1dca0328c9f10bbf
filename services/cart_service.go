// storefront/services/cart_service.go

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
	"github.com/norun9/microservices-demo-ambient/src/storefront/cartstore"
	"github.com/norun9/microservices-demo-ambient/src/storefront/catalog"
)

const (
	cookieSessionID = "shop_session-id"
	cookieMaxAge    = 60 * 60 * 48
)

type ctxKeySession struct{}

// CartService serves the storefront's JSON API.
type CartService struct {
	sessions *Sessions
	catalog  catalog.Client
	storage  cartstore.Storage
	log      logrus.FieldLogger
}

func NewCartService(sessions *Sessions, c catalog.Client, storage cartstore.Storage, log logrus.FieldLogger) *CartService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CartService{
		sessions: sessions,
		catalog:  c,
		storage:  storage,
		log:      log.WithField("component", "http"),
	}
}

type cartResponse struct {
	Cart          cart.CartState      `json:"cart"`
	Count         int                 `json:"count"`
	Notifications []cart.Notification `json:"notifications"`
}

type addItemRequest struct {
	ProductID cart.ID `json:"product_id"`
	Quantity  int     `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type searchInputRequest struct {
	Query string `json:"query"`
}

func (s *CartService) getCart(w http.ResponseWriter, r *http.Request) {
	s.respondCart(w, session(r))
}

func (s *CartService) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, errors.New("product_id is required"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("app.product_id", string(req.ProductID)),
		attribute.Int("app.quantity", req.Quantity),
	)

	p, err := s.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	sess := session(r)
	sess.Cart.AddItem(r.Context(), catalog.ToCartItem(p, req.Quantity))
	s.respondCart(w, sess)
}

func (s *CartService) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, errors.New("quantity is required"))
		return
	}
	sess := session(r)
	sess.Cart.UpdateQuantity(r.Context(), cart.ID(mux.Vars(r)["id"]), *req.Quantity)
	s.respondCart(w, sess)
}

func (s *CartService) removeItem(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	sess.Cart.RemoveItem(r.Context(), cart.ID(mux.Vars(r)["id"]))
	s.respondCart(w, sess)
}

func (s *CartService) clearCart(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	sess.Cart.ClearCart(r.Context())
	s.respondCart(w, sess)
}

func (s *CartService) forgetSession(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	if err := s.sessions.Forget(r.Context(), sess.ID); err != nil {
		s.log.WithError(err).WithField("session", sess.ID).Error("failed to forget session")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: cookieSessionID, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *CartService) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, err1 := intParam(r, "limit")
	skip, err2 := intParam(r, "skip")
	if err := firstError(err1, err2); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	products, err := s.catalog.List(r.Context(), limit, skip)
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *CartService) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), cart.ID(mux.Vars(r)["id"]))
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *CartService) searchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// searchInput feeds one keystroke to the session's search box. The search
// itself runs once typing pauses; poll searchOverlay for the outcome.
func (s *CartService) searchInput(w http.ResponseWriter, r *http.Request) {
	var req searchInputRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess := session(r)
	sess.Search.Input(r.Context(), req.Query)
	writeJSON(w, http.StatusAccepted, sess.Search.Snapshot())
}

func (s *CartService) searchOverlay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Search.Snapshot())
}

func (s *CartService) recommendations(w http.ResponseWriter, r *http.Request) {
	state := session(r).Cart.State()
	exclude := make([]cart.ID, 0, len(state.Items))
	for _, it := range state.Items {
		exclude = append(exclude, it.ID)
	}
	products := catalog.Recommend(r.Context(), s.catalog, exclude, catalog.MaxRecommendations)
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// ads serves banners for the ?category= values, or random ones when none match.
func (s *CartService) ads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ads": catalog.Ads(r.Context(), r.URL.Query()["category"])})
}

func (s *CartService) healthz(w http.ResponseWriter, r *http.Request) {
	if !s.storage.Ping(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *CartService) respondCart(w http.ResponseWriter, sess *Session) {
	state := sess.Cart.State()
	writeJSON(w, http.StatusOK, cartResponse{
		Cart:          state,
		Count:         state.Count(),
		Notifications: sess.Toasts(),
	})
}

func (s *CartService) catalogError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.log.WithError(err).WithField("path", r.URL.Path).Warn("catalog request failed")
	writeError(w, http.StatusBadGateway, err)
}

// withSession resolves the shopper's session from the cookie, issuing a new
// id when the cookie is missing or malformed.
func (s *CartService) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(cookieSessionID); err == nil {
			if u, err := uuid.Parse(c.Value); err == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     cookieSessionID,
				Value:    id,
				Path:     "/",
				MaxAge:   cookieMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("app.session_id", id))
		sess := s.sessions.Get(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeySession{}, sess)))
	})
}

func session(r *http.Request) *Session {
	return r.Context().Value(ctxKeySession{}).(*Session)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
