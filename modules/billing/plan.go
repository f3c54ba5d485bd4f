package billing

import "time"

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanFree PlanID = "free"
	PlanPro  PlanID = "pro"
	PlanPlus PlanID = "plus"
)

// Plan describes a subscription tier and its recurring price.
type Plan struct {
	ID       PlanID
	Name     string
	Amount   int64  // price per cycle in minor units (cents)
	Currency string // ISO 4217
}

// IsFree reports whether the plan carries no recurring charge.
func (p Plan) IsFree() bool {
	return p.Amount == 0
}

// defaultCatalog is the built-in three-tier catalog. Prices are per monthly
// billing cycle.
var defaultCatalog = map[PlanID]Plan{
	PlanFree: {ID: PlanFree, Name: "Free", Amount: 0, Currency: "USD"},
	PlanPro:  {ID: PlanPro, Name: "Pro", Amount: 900, Currency: "USD"},
	PlanPlus: {ID: PlanPlus, Name: "Plus", Amount: 1900, Currency: "USD"},
}

// Catalog resolves plan identifiers to plan definitions.
type Catalog map[PlanID]Plan

// DefaultCatalog returns a copy of the built-in plan catalog.
func DefaultCatalog() Catalog {
	c := make(Catalog, len(defaultCatalog))
	for id, p := range defaultCatalog {
		c[id] = p
	}
	return c
}

// Lookup returns the plan for id, falling back to the free plan for
// unknown identifiers so a bad plan code can never trigger a charge.
func (c Catalog) Lookup(id PlanID) Plan {
	if p, ok := c[id]; ok {
		return p
	}
	return c[PlanFree]
}

// IsPaid reports whether id names a known paid plan.
func (c Catalog) IsPaid(id PlanID) bool {
	p, ok := c[id]
	return ok && !p.IsFree()
}

// NextPeriodEnd advances a billing period boundary by one monthly cycle.
func NextPeriodEnd(from time.Time) time.Time {
	return from.AddDate(0, 1, 0)
}
