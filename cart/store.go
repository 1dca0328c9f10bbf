// storefront/cart/store.go

package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store owns one shopping cart. All mutations go through AddItem, RemoveItem,
// UpdateQuantity and ClearCart; each one replaces the state in a single step,
// recomputes the total, mirrors the result to the Persister and then informs
// the subscribed listeners in commit order.
//
// Listeners may read the store from inside OnCartChange but must not mutate it
// synchronously.
type Store struct {
	mu    sync.RWMutex
	state CartState

	// dispatchMu serializes whole commits. It is always taken before mu and
	// mu is never held across Save or listener calls.
	dispatchMu sync.Mutex

	subMu  sync.Mutex
	subs   []subscription
	nextID uint64

	persister Persister
	notifier  Notifier
	log       logrus.FieldLogger
	tracer    trace.Tracer
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets where the store mirrors its state.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithNotifier sets the receiver of shopper-facing confirmations.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithInitialState seeds the store. Duplicate ids are merged, lines with a
// non-positive quantity are dropped and the total is recomputed.
func WithInitialState(state CartState) Option {
	return func(s *Store) {
		s.state = normalize(state.Items)
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:     Empty(),
		persister: NopPersister{},
		notifier:  NopNotifier{},
		log:       logrus.StandardLogger().WithField("component", "cart"),
		tracer:    otel.Tracer("cart"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore builds a store seeded from p. A failed or empty load leaves the
// cart empty; the failure is logged, not returned.
func Restore(ctx context.Context, p Persister, opts ...Option) *Store {
	s := NewStore(append([]Option{WithPersister(p)}, opts...)...)

	ctx, span := s.tracer.Start(ctx, "cart.Restore")
	defer span.End()

	state, found, err := s.persister.Load(ctx)
	switch {
	case err != nil:
		span.RecordError(err)
		s.log.WithError(err).Warn("cart: failed to restore persisted state, starting empty")
	case found:
		s.state = normalize(state.Items)
		span.SetAttributes(attribute.Int("app.cart.items", len(s.state.Items)))
		s.log.WithField("items", len(s.state.Items)).Debug("cart: restored persisted state")
	}
	return s
}

// State returns a copy of the latest committed cart.
func (s *Store) State() CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers l and returns a function that removes it again.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, listener: l})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// AddItem puts item into the cart. When a line with the same id exists its
// quantity grows by item.Quantity and its captured title, price and image are
// kept; otherwise item is appended.
func (s *Store) AddItem(ctx context.Context, item CartItem) {
	ctx, span := s.tracer.Start(ctx, "cart.AddItem")
	defer span.End()

	item = s.sanitize(item)
	span.SetAttributes(
		attribute.String("app.product_id", string(item.ID)),
		attribute.Int("app.quantity", item.Quantity),
	)

	s.commit(ctx, OpAdd, item.ID, func(items []CartItem) ([]CartItem, bool) {
		next := make([]CartItem, 0, len(items)+1)
		found := false
		for _, it := range items {
			if it.ID == item.ID {
				it.Quantity += item.Quantity
				found = true
			}
			next = append(next, it)
		}
		if !found {
			next = append(next, item)
		}
		return next, true
	})

	s.notifier.Notify(ctx, Notification{
		Level:   LevelSuccess,
		Message: fmt.Sprintf("Product %s Added to Cart", item.ID),
		ItemID:  item.ID,
	})
}

// RemoveItem drops the line with the given id. Unknown ids leave the cart as
// it is, but the shopper is still told the product was removed.
func (s *Store) RemoveItem(ctx context.Context, id ID) {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveItem")
	defer span.End()
	span.SetAttributes(attribute.String("app.product_id", string(id)))

	s.commit(ctx, OpRemove, id, func(items []CartItem) ([]CartItem, bool) {
		return without(items, id)
	})

	s.notifier.Notify(ctx, Notification{
		Level:   LevelSuccess,
		Message: fmt.Sprintf("Product %s removed", id),
		ItemID:  id,
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity below one
// removes the line. Unknown ids are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, id ID, quantity int) {
	ctx, span := s.tracer.Start(ctx, "cart.UpdateQuantity")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.product_id", string(id)),
		attribute.Int("app.quantity", quantity),
	)

	s.commit(ctx, OpUpdate, id, func(items []CartItem) ([]CartItem, bool) {
		if quantity < 1 {
			return without(items, id)
		}
		next := make([]CartItem, len(items))
		changed := false
		for i, it := range items {
			if it.ID == id && it.Quantity != quantity {
				it.Quantity = quantity
				changed = true
			}
			next[i] = it
		}
		return next, changed
	})
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "cart.ClearCart")
	defer span.End()

	s.commit(ctx, OpClear, "", func(items []CartItem) ([]CartItem, bool) {
		return []CartItem{}, len(items) > 0
	})
}

// commit applies mutate under the write lock. When mutate reports a change the
// new state is persisted and dispatched before commit returns. mu is held only
// for the swap; dispatchMu orders persistence and dispatch across commits.
func (s *Store) commit(ctx context.Context, op Op, id ID, mutate func([]CartItem) ([]CartItem, bool)) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	items, changed := mutate(s.state.Items)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.state = CartState{Items: items, Total: Total(items)}
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := s.persister.Save(ctx, snapshot.clone()); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		s.log.WithError(err).WithField("op", op).Warn("cart: failed to persist state")
	}

	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.listener.OnCartChange(ctx, Event{Op: op, ID: id, State: snapshot.clone()})
	}
}

// sanitize keeps malformed input from breaking the cart invariants: the
// quantity is raised to one and a negative price is treated as zero.
func (s *Store) sanitize(item CartItem) CartItem {
	if item.Quantity < 1 {
		s.log.WithFields(logrus.Fields{"item_id": item.ID, "quantity": item.Quantity}).
			Warn("cart: non-positive quantity on add, using 1")
		item.Quantity = 1
	}
	if item.Price.IsNegative() {
		s.log.WithFields(logrus.Fields{"item_id": item.ID, "price": item.Price.String()}).
			Warn("cart: negative price on add, using 0")
		item.Price = decimal.Zero
	}
	return item
}

func without(items []CartItem, id ID) ([]CartItem, bool) {
	next := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	return next, len(next) != len(items)
}
