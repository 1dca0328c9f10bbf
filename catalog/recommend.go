// storefront/catalog/recommend.go

package catalog

import (
	"context"
	"math/rand"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

// MaxRecommendations caps the size of a Recommend result.
const MaxRecommendations = 5

// Recommend picks up to limit random products that are not in exclude. Catalog
// failures yield no recommendations rather than an error.
func Recommend(ctx context.Context, c Client, exclude []cart.ID, limit int) []Product {
	ctx, span := otel.Tracer("catalog").Start(ctx, "catalog.Recommend")
	defer span.End()

	if limit <= 0 {
		limit = MaxRecommendations
	}
	all, err := c.List(ctx, 0, 0)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return []Product{}
	}

	skip := make(map[cart.ID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	candidates := make([]Product, 0, len(all))
	for _, p := range all {
		if !skip[p.ID] {
			candidates = append(candidates, p)
		}
	}

	n := min(limit, len(candidates))
	out := make([]Product, 0, n)
	for _, idx := range rand.Perm(len(candidates))[:n] {
		out = append(out, candidates[idx])
	}
	span.SetAttributes(attribute.Int("recommendations.count", len(out)))
	return out
}
