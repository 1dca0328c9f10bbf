// storefront/services/sessions.go

package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
	"github.com/norun9/microservices-demo-ambient/src/storefront/cartstore"
	"github.com/norun9/microservices-demo-ambient/src/storefront/catalog"
	"github.com/norun9/microservices-demo-ambient/src/storefront/search"
)

// Session is one shopper's cart and search box.
type Session struct {
	ID     string
	Cart   *cart.Store
	Search *search.Overlay

	toasts   *toastQueue
	gate     *gatedPersister
	lastSeen time.Time
}

// Toasts returns and forgets the notifications raised since the last call.
func (s *Session) Toasts() []cart.Notification { return s.toasts.drain() }

// SessionsConfig wires the collaborators every new session needs.
type SessionsConfig struct {
	Storage        cartstore.Storage
	Codec          cartstore.Codec
	PersistTimeout time.Duration
	Catalog        catalog.Client
	SearchDelay    time.Duration
	Log            logrus.FieldLogger

	// Namespace prefixes every session's storage key. Empty means
	// cartstore.DefaultKey.
	Namespace string

	// Listeners are subscribed to every session's cart.
	Listeners []cart.Listener

	// WrapPersister, when set, decorates each session's persister.
	WrapPersister func(cart.Persister) cart.Persister
}

// Sessions holds the live sessions. A session's cart is restored from Storage
// the first time it is seen after a restart or an eviction.
type Sessions struct {
	cfg SessionsConfig
	log logrus.FieldLogger
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Codec == nil {
		cfg.Codec = cartstore.JSONCodec{}
	}
	return &Sessions{
		cfg:      cfg,
		log:      cfg.Log.WithField("component", "sessions"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with id, restoring it on first use. The restore
// runs outside the sessions lock; when two requests race to open the same id
// the first one stored wins.
func (s *Sessions) Get(ctx context.Context, id string) *Session {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = s.now()
		s.mu.Unlock()
		return sess
	}
	s.mu.Unlock()

	fresh := s.open(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		fresh.Search.Close()
		sess.lastSeen = s.now()
		return sess
	}
	fresh.lastSeen = s.now()
	s.sessions[id] = fresh
	s.log.WithFields(logrus.Fields{"session": id, "items": len(fresh.Cart.State().Items)}).Debug("session opened")
	return fresh
}

func (s *Sessions) open(ctx context.Context, id string) *Session {
	log := s.cfg.Log.WithField("session", id)
	var p cart.Persister = cartstore.NewPersister(s.cfg.Storage, s.key(id), s.cfg.Codec,
		cartstore.WithTimeout(s.cfg.PersistTimeout),
		cartstore.WithLogger(log),
	)
	if s.cfg.WrapPersister != nil {
		p = s.cfg.WrapPersister(p)
	}
	gate := &gatedPersister{Persister: p}

	toasts := &toastQueue{}
	store := cart.Restore(ctx, gate,
		cart.WithLogger(log.WithField("component", "cart")),
		cart.WithNotifier(cart.NotifierFunc(func(ctx context.Context, n cart.Notification) {
			toasts.push(n)
			cart.LogNotifier{Log: log}.Notify(ctx, n)
		})),
	)
	for _, l := range s.cfg.Listeners {
		store.Subscribe(l)
	}

	return &Session{
		ID:     id,
		Cart:   store,
		Search: search.NewOverlay(s.cfg.Catalog, s.cfg.SearchDelay, log),
		toasts: toasts,
		gate:   gate,
	}
}

// Len is the number of sessions held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict drops sessions idle for longer than idle. Their carts stay in Storage
// and are restored on the next request.
func (s *Sessions) Evict(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var evicted []*Session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			evicted = append(evicted, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.Search.Close()
	}
	if len(evicted) > 0 {
		s.log.WithField("count", len(evicted)).Info("evicted idle sessions")
	}
	return len(evicted)
}

// Forget drops the session and deletes its persisted cart. A request still
// holding the session keeps working in memory but no longer writes through.
func (s *Sessions) Forget(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.gate.close()
		sess.Search.Close()
	}
	if err := s.cfg.Storage.Delete(ctx, s.key(id)); err != nil {
		return errors.Wrapf(err, "forget session %s", id)
	}
	return nil
}

func (s *Sessions) key(id string) string {
	return cartstore.NamespacedKey(s.cfg.Namespace, id)
}

// gatedPersister stops saving once closed. Closing waits for an in-flight
// Save, so nothing lands after a subsequent delete.
type gatedPersister struct {
	cart.Persister

	mu     sync.Mutex
	closed bool
}

func (g *gatedPersister) Save(ctx context.Context, state cart.CartState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	return g.Persister.Save(ctx, state)
}

func (g *gatedPersister) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// toastQueue collects notifications until the next response picks them up.
type toastQueue struct {
	mu    sync.Mutex
	items []cart.Notification
}

func (q *toastQueue) push(n cart.Notification) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
}

func (q *toastQueue) drain() []cart.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		out = []cart.Notification{}
	}
	return out
}
