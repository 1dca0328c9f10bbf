// storefront/catalog/product.go

package catalog

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

// ErrNotFound is returned by Get when the catalog has no such product.
var ErrNotFound = errors.New("catalog: product not found")

// Product is a catalog entry as the storefront displays it.
type Product struct {
	ID          cart.ID         `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
	Category    string          `json:"category"`
}

// MarshalJSON writes the price as a JSON number and never emits a null image list.
func (p Product) MarshalJSON() ([]byte, error) {
	type alias Product
	out := struct {
		alias
		Price json.Number `json:"price"`
	}{alias(p), json.Number(p.Price.String())}
	if out.Images == nil {
		out.Images = []string{}
	}
	return json.Marshal(out)
}

// Thumbnail is the first image, or "" when the product has none.
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Client is the read side of a product catalog.
type Client interface {
	Search(ctx context.Context, query string) ([]Product, error)
	Get(ctx context.Context, id cart.ID) (Product, error)
	List(ctx context.Context, limit, skip int) ([]Product, error)
}

// ToCartItem captures the product's title, price and thumbnail as they are now.
// Later catalog changes do not reach items already in a cart.
func ToCartItem(p Product, quantity int) cart.CartItem {
	return cart.CartItem{
		ID:       p.ID,
		Title:    p.Title,
		Price:    p.Price,
		Image:    p.Thumbnail(),
		Quantity: quantity,
	}
}
