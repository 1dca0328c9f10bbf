// storefront/cart/item.go

package cart

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ID identifies a product inside the cart. Catalogs hand out either numeric or
// textual ids; both are kept in their string form.
type ID string

// UnmarshalJSON accepts a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Wrap(err, "cart: decode id")
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "cart: decode id")
	}
	*id = ID(n.String())
	return nil
}

// CartItem is one line of the cart. Title, Price and Image are captured when
// the product is added and are never refreshed afterwards.
type CartItem struct {
	ID       ID              `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns Price × Quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// MarshalJSON writes the price as a JSON number.
func (i CartItem) MarshalJSON() ([]byte, error) {
	type alias CartItem
	return json.Marshal(struct {
		alias
		Price json.Number `json:"price"`
	}{alias(i), json.Number(i.Price.String())})
}

// CartState is the full cart: its line items in insertion order and the total
// derived from them.
type CartState struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Empty returns a cart with no items and a zero total.
func Empty() CartState {
	return CartState{Items: []CartItem{}, Total: decimal.Zero}
}

// Total sums Price × Quantity over items.
func Total(items []CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Find returns the line item with the given id.
func (s CartState) Find(id ID) (CartItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CartItem{}, false
}

// Count is the number of units in the cart.
func (s CartState) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// MarshalJSON writes the total as a JSON number and never emits a null item list.
func (s CartState) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []CartItem{}
	}
	return json.Marshal(struct {
		Items []CartItem  `json:"items"`
		Total json.Number `json:"total"`
	}{items, json.Number(s.Total.String())})
}

func (s CartState) clone() CartState {
	items := make([]CartItem, len(s.Items))
	copy(items, s.Items)
	return CartState{Items: items, Total: s.Total}
}

// normalize folds duplicate ids into the first occurrence, drops lines with a
// non-positive quantity and recomputes the total. It is applied to state that
// did not come from the store's own operations (restored or injected state).
func normalize(items []CartItem) CartState {
	out := make([]CartItem, 0, len(items))
	index := make(map[ID]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return CartState{Items: out, Total: Total(out)}
}
