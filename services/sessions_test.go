package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
	"github.com/norun9/microservices-demo-ambient/src/storefront/cartstore"
	"github.com/norun9/microservices-demo-ambient/src/storefront/catalog"
	"github.com/norun9/microservices-demo-ambient/src/storefront/services"
)

// stalledStorage holds Get for one key until release is closed.
type stalledStorage struct {
	cartstore.Storage
	key     string
	entered chan struct{}
	release chan struct{}
}

func (s *stalledStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == s.key {
		close(s.entered)
		<-s.release
	}
	return s.Storage.Get(ctx, key)
}

func newSessions(storage cartstore.Storage) *services.Sessions {
	return services.NewSessions(services.SessionsConfig{
		Storage:     storage,
		Catalog:     catalog.NewMemoryCatalog(),
		SearchDelay: 10 * time.Millisecond,
	})
}

func TestRestoreDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()
	storage := &stalledStorage{
		Storage: cartstore.NewLocalCartStore(nil),
		key:     cartstore.SessionKey("slow"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	sessions := newSessions(storage)
	live := sessions.Get(ctx, "fast")

	opened := make(chan *services.Session)
	go func() { opened <- sessions.Get(ctx, "slow") }()
	<-storage.entered

	got := make(chan *services.Session)
	go func() { got <- sessions.Get(ctx, "fast") }()
	select {
	case sess := <-got:
		assert.Same(t, live, sess)
	case <-time.After(2 * time.Second):
		t.Fatal("live session blocked by another session's restore")
	}

	close(storage.release)
	slow := <-opened
	assert.Equal(t, "slow", slow.ID)
	assert.Equal(t, 2, sessions.Len())
}

func TestConcurrentOpenSharesOneSession(t *testing.T) {
	ctx := context.Background()
	sessions := newSessions(cartstore.NewLocalCartStore(nil))

	const n = 8
	got := make([]*services.Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = sessions.Get(ctx, "shared")
		}(i)
	}
	wg.Wait()

	for _, sess := range got[1:] {
		assert.Same(t, got[0], sess)
	}
	assert.Equal(t, 1, sessions.Len())
}

func TestForgottenSessionStopsPersisting(t *testing.T) {
	ctx := context.Background()
	storage := cartstore.NewLocalCartStore(nil)
	sessions := newSessions(storage)
	mug := cart.CartItem{ID: "6E92ZMYYFZ", Title: "Mug", Price: decimal.RequireFromString("8.99"), Quantity: 1}

	held := sessions.Get(ctx, "gone")
	held.Cart.AddItem(ctx, mug)
	_, err := storage.Get(ctx, cartstore.SessionKey("gone"))
	require.NoError(t, err)

	require.NoError(t, sessions.Forget(ctx, "gone"))
	held.Cart.AddItem(ctx, mug)

	_, err = storage.Get(ctx, cartstore.SessionKey("gone"))
	assert.ErrorIs(t, err, cartstore.ErrNotFound)
	assert.Empty(t, sessions.Get(ctx, "gone").Cart.State().Items)
}
