// storefront/catalog/memory_catalog.go

package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

// MemoryCatalog serves a fixed product list. It backs the offline demo and tests.
type MemoryCatalog struct {
	products []Product
}

var _ Client = (*MemoryCatalog)(nil)

// NewMemoryCatalog returns a catalog over products, or over SampleProducts when
// none are given.
func NewMemoryCatalog(products ...Product) *MemoryCatalog {
	if len(products) == 0 {
		products = SampleProducts()
	}
	return &MemoryCatalog{products: products}
}

// Search matches query case-insensitively against title, description and
// category.
func (m *MemoryCatalog) Search(ctx context.Context, query string) ([]Product, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Product, 0)
	for _, p := range m.products {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryCatalog) Get(ctx context.Context, id cart.ID) (Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

// List pages through the products. A non-positive limit returns everything
// after skip.
func (m *MemoryCatalog) List(ctx context.Context, limit, skip int) ([]Product, error) {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(m.products) {
		return []Product{}, nil
	}
	end := len(m.products)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	out := make([]Product, end-skip)
	copy(out, m.products[skip:end])
	return out, nil
}

// SampleProducts is the boutique assortment used when no catalog is configured.
func SampleProducts() []Product {
	p := func(id, title, desc, price, category, image string) Product {
		return Product{
			ID:          cart.ID(id),
			Title:       title,
			Description: desc,
			Price:       decimal.RequireFromString(price),
			Images:      []string{"/static/img/products/" + image},
			Category:    category,
		}
	}
	return []Product{
		p("OLJCESPC7Z", "Sunglasses", "Add a modern touch to your outfits with these sleek aviator sunglasses.", "19.99", "accessories", "sunglasses.jpg"),
		p("66VCHSJNUP", "Tank Top", "Perfectly cropped cotton tank, with a scooped neckline.", "18.99", "clothing", "tank-top.jpg"),
		p("1YMWWN1N4O", "Watch", "This gold-tone stainless steel watch will work with most of your outfits.", "109.99", "accessories", "watch.jpg"),
		p("L9ECAV7KIM", "Loafers", "A neat addition to your summer wardrobe.", "89.99", "footwear", "loafers.jpg"),
		p("2ZYFJ3GM2N", "Hairdryer", "This lightweight hairdryer has 3 heat and speed settings.", "24.99", "beauty", "hairdryer.jpg"),
		p("0PUK6V6EV0", "Candle Holder", "This small but intricate candle holder is an excellent gift.", "18.99", "home", "candle-holder.jpg"),
		p("LS4PSXUNUM", "Salt & Pepper Shakers", "Add some flavor to your kitchen.", "18.49", "kitchen", "salt-and-pepper-shakers.jpg"),
		p("9SIQT8TOJO", "Bamboo Glass Jar", "This bamboo glass jar can hold 57 oz (1.7 l) and is perfect for any kitchen.", "5.49", "kitchen", "bamboo-glass-jar.jpg"),
		p("6E92ZMYYFZ", "Mug", "A simple mug with a mustard interior.", "8.99", "kitchen", "mug.jpg"),
	}
}
