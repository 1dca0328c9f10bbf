// storefront/cartstore/persister.go

package cartstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

// Persister mirrors a cart.Store into a Storage under a fixed key.
type Persister struct {
	storage Storage
	key     string
	codec   Codec
	timeout time.Duration
	log     logrus.FieldLogger
}

var _ cart.Persister = (*Persister)(nil)

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithTimeout bounds every Save and Load. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) { p.timeout = d }
}

func WithLogger(l logrus.FieldLogger) PersisterOption {
	return func(p *Persister) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPersister returns a Persister writing to storage under key with codec.
// An empty key means DefaultKey, a nil codec means JSONCodec.
func NewPersister(storage Storage, key string, codec Codec, opts ...PersisterOption) *Persister {
	if key == "" {
		key = DefaultKey
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	p := &Persister{
		storage: storage,
		key:     key,
		codec:   codec,
		log:     logrus.StandardLogger().WithField("component", "cartstore"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key is the storage key this persister writes.
func (p *Persister) Key() string { return p.key }

func (p *Persister) Save(ctx context.Context, state cart.CartState) error {
	data, err := p.codec.Marshal(state)
	if err != nil {
		return err
	}
	ctx, cancel := p.bound(ctx)
	defer cancel()
	if err := p.storage.Set(ctx, p.key, data); err != nil {
		return errors.Wrapf(err, "cartstore: save %s", p.key)
	}
	return nil
}

// Load reads the record and recomputes its total from the items. A stored
// total that disagrees is logged and replaced.
func (p *Persister) Load(ctx context.Context) (cart.CartState, bool, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	data, err := p.storage.Get(ctx, p.key)
	if errors.Is(err, ErrNotFound) {
		return cart.CartState{}, false, nil
	}
	if err != nil {
		return cart.CartState{}, false, errors.Wrapf(err, "cartstore: load %s", p.key)
	}

	state, err := p.codec.Unmarshal(data)
	if err != nil {
		return cart.CartState{}, false, err
	}
	if total := cart.Total(state.Items); !total.Equal(state.Total) {
		p.log.WithFields(logrus.Fields{
			"key":    p.key,
			"stored": state.Total.String(),
			"actual": total.String(),
		}).Warn("cartstore: stored total does not match items, recomputing")
		state.Total = total
	}
	return state, true, nil
}

func (p *Persister) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}
