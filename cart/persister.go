// storefront/cart/persister.go

package cart

import "context"

// Persister mirrors the cart into durable storage. The store calls Save after
// every committed change and ignores the error beyond logging it; the
// in-memory state stays authoritative.
type Persister interface {
	Save(ctx context.Context, state CartState) error
	// Load returns found=false when nothing has been persisted yet.
	Load(ctx context.Context) (state CartState, found bool, err error)
}

// NopPersister keeps nothing.
type NopPersister struct{}

func (NopPersister) Save(context.Context, CartState) error { return nil }

func (NopPersister) Load(context.Context) (CartState, bool, error) {
	return CartState{}, false, nil
}
