// Package assist is the boundary to the listing generator. The real
// deployment would call a hosted model here; this build ships a canned
// generator so discovery works offline and tests stay hermetic.
package assist

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// Draft is a generated listing body. The caller supplies identity and
// location; the generator only invents the copy and the price.
type Draft struct {
	Title            string
	ShortDescription string
	Description      string
	Price            decimal.Decimal
}

// Generator produces a listing draft for a vendor in a city. An error
// means the caller should fall back to Fallback() and keep going.
type Generator interface {
	GenerateListing(ctx context.Context, city, vendor, listingType string) (*Draft, error)
}

// Fallback is the draft used when generation fails. Discovery must
// never stall on the generator.
func Fallback() *Draft {
	return &Draft{
		Title:            "Discovered Hustle",
		ShortDescription: "New on the mesh",
		Description:      "Verified on the Amasampo digital mesh.",
		Price:            decimal.NewFromInt(100),
	}
}

var templates = []struct {
	title   string
	tagline string
	body    string
	price   int64
}{
	{"Fresh Vitumbuwa Daily", "Hot fritters, cold mornings", "Crispy vitumbuwa fried fresh every morning near the market in %s.", 15},
	{"Chitenge Tailoring", "Custom fits, bold prints", "Made-to-measure chitenge outfits stitched in %s, ready in two days.", 250},
	{"Phone Repairs While You Wait", "Cracked screens fixed fast", "Screen and battery swaps done on the spot in %s.", 180},
	{"Bulk Kapenta Supply", "Lake-fresh, market price", "Dried kapenta by the meda, delivered anywhere in %s.", 95},
	{"Solar Lamp Rentals", "Light when ZESCO sleeps", "Charged solar lamps rented per night across %s.", 20},
	{"Boda Delivery Runs", "Same-day, any corner", "Motorbike parcel runs covering all of %s before sunset.", 45},
}

// StaticGenerator serves drafts from a fixed template pool. Safe for
// concurrent use.
type StaticGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewStaticGenerator(seed int64) *StaticGenerator {
	return &StaticGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *StaticGenerator) GenerateListing(_ context.Context, city, _, _ string) (*Draft, error) {
	g.mu.Lock()
	t := templates[g.rng.Intn(len(templates))]
	jitter := g.rng.Int63n(t.price/2 + 1)
	g.mu.Unlock()

	return &Draft{
		Title:            t.title,
		ShortDescription: t.tagline,
		Description:      fmt.Sprintf(t.body, city),
		Price:            decimal.NewFromInt(t.price + jitter),
	}, nil
}
