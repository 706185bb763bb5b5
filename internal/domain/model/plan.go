package model

import (
	"sort"

	"ai-image-studio/internal/domain"
)

// Plan describes one purchasable tier. The processor's price catalog is
// authoritative; this is only the local view needed to derive quota limits.
type Plan struct {
	Name     string
	PriceID  string
	Quota    int // generations per billing cycle
	PriceUSD int
}

// Catalog resolves processor price ids to plans. Plans are kept sorted by
// quota so the lowest tier doubles as the fallback for unrecognized prices:
// an unknown price id must not block entitlement bookkeeping.
type Catalog struct {
	plans []Plan
}

func NewCatalog(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	for _, p := range plans {
		if p.PriceID == "" || p.Quota <= 0 {
			return nil, domain.ErrInvalidArgument
		}
	}
	sorted := make([]Plan, len(plans))
	copy(sorted, plans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Quota < sorted[j].Quota })
	return &Catalog{plans: sorted}, nil
}

// ByPrice returns the plan for the given price id, or the lowest tier when
// the price is not recognized.
func (c *Catalog) ByPrice(priceID string) Plan {
	for _, p := range c.plans {
		if p.PriceID == priceID {
			return p
		}
	}
	return c.plans[0]
}

func (c *Catalog) Contains(priceID string) bool {
	for _, p := range c.plans {
		if p.PriceID == priceID {
			return true
		}
	}
	return false
}

func (c *Catalog) Lowest() Plan { return c.plans[0] }

func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
