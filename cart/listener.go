// storefront/cart/listener.go

package cart

import "context"

// Op names the operation that produced a change.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
	OpClear  Op = "clear"
)

// Event describes a committed change. State is the cart right after the change
// and belongs to the receiver.
type Event struct {
	Op    Op
	ID    ID
	State CartState
}

// Listener observes committed changes of a Store.
type Listener interface {
	OnCartChange(ctx context.Context, ev Event)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) OnCartChange(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type subscription struct {
	id       uint64
	listener Listener
}
