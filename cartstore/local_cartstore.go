// storefront/cartstore/local_cartstore.go

package cartstore

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// LocalCartStore keeps records in process memory. It is safe for concurrent
// use and loses everything on exit.
type LocalCartStore struct {
	mu    sync.RWMutex
	store map[string][]byte

	log logrus.FieldLogger
}

// NewLocalCartStore constructor
func NewLocalCartStore(log logrus.FieldLogger) *LocalCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocalCartStore{
		store: make(map[string][]byte),
		log:   log.WithField("component", "cartstore.local"),
	}
}

// Initialize has nothing to prepare.
func (l *LocalCartStore) Initialize(ctx context.Context) error {
	l.log.Debug("LocalCartStore initialized")
	return nil
}

func (l *LocalCartStore) Get(ctx context.Context, key string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, ok := l.store[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (l *LocalCartStore) Set(ctx context.Context, key string, data []byte) error {
	l.log.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Debug("LocalCartStore: Set called")

	buf := make([]byte, len(data))
	copy(buf, data)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.store[key] = buf
	return nil
}

func (l *LocalCartStore) Delete(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.store, key)
	return nil
}

// Ping always succeeds.
func (l *LocalCartStore) Ping(ctx context.Context) bool {
	return true
}
