// storefront/catalog/ads.go

package catalog

import (
	"context"
	"math/rand"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

// Ad is a text banner pointing at a product page.
type Ad struct {
	ProductID cart.ID `json:"product_id"`
	Text      string  `json:"text"`
}

// randomAds is how many ads are served when no category matches.
const randomAds = 2

var adsByCategory = map[string][]Ad{
	"clothing":    {{ProductID: "66VCHSJNUP", Text: "Tank top for sale. 20% off."}},
	"accessories": {{ProductID: "1YMWWN1N4O", Text: "Watch for sale. Buy one, get second one for free"}},
	"footwear":    {{ProductID: "L9ECAV7KIM", Text: "Loafers for sale. Buy one, get second one for free"}},
	"beauty":      {{ProductID: "2ZYFJ3GM2N", Text: "Hairdryer for sale. 50% off."}},
	"home":        {{ProductID: "0PUK6V6EV0", Text: "Candle holder for sale. 30% off."}},
	"kitchen": {
		{ProductID: "9SIQT8TOJO", Text: "Bamboo glass jar for sale. 10% off."},
		{ProductID: "6E92ZMYYFZ", Text: "Mug for sale. Buy two, get third one for free"},
	},
}

// Ads returns the ads for the given categories, or a couple of random ones
// when none of them has any.
func Ads(ctx context.Context, categories []string) []Ad {
	_, span := otel.Tracer("catalog").Start(ctx, "catalog.Ads")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("app.context_keys", categories))

	out := make([]Ad, 0)
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, adsByCategory[c]...)
	}
	if len(out) == 0 {
		var all []Ad
		for _, ads := range adsByCategory {
			all = append(all, ads...)
		}
		for i := 0; i < randomAds; i++ {
			out = append(out, all[rand.Intn(len(all))])
		}
	}
	span.SetAttributes(attribute.Int("app.ads_served", len(out)))
	return out
}
