// storefront/cartstore/cartstore.go

package cartstore

import (
	"context"

	"github.com/pkg/errors"
)

// DefaultKey is the namespace key the cart is stored under.
const DefaultKey = "cart-storage"

// ErrNotFound is returned by Storage.Get when nothing is stored under a key.
var ErrNotFound = errors.New("cartstore: record not found")

// Storage is a durable key-value sink for serialized carts.
type Storage interface {
	Initialize(ctx context.Context) error

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) bool
}

// SessionKey namespaces DefaultKey for one shopper session.
func SessionKey(sessionID string) string {
	return NamespacedKey(DefaultKey, sessionID)
}

// NamespacedKey returns "<namespace>:<sessionID>", or just the namespace when
// there is no session. An empty namespace means DefaultKey.
func NamespacedKey(namespace, sessionID string) string {
	if namespace == "" {
		namespace = DefaultKey
	}
	if sessionID == "" {
		return namespace
	}
	return namespace + ":" + sessionID
}
