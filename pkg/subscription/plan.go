package subscription

import (
	"fmt"
	"sort"
	"time"
)

// Well-known plan identifiers. These match the plan names the clients
// display and submit, so there is no separate mapping layer.
const (
	PlanBasic   = "Basic Plan"
	PlanMonthly = "Monthly Plan"
	PlanYearly  = "Yearly Plan"
)

// Plan describes a purchasable plan: price, duration, and the feature set
// copied onto subscriptions sold from it.
type Plan struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Price        Money    `yaml:"price"`
	DurationDays int      `yaml:"duration_days"`
	Features     Features `yaml:"features"`
}

// Duration returns the plan term as a time.Duration.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// Catalog is an immutable lookup table of plans. Every component that needs
// a price or an entitlement set reads through it; nothing else hard-codes
// plan numbers.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// NewCatalog builds a catalog from the given plans. Configurations that
// cannot be sold (non-positive price or duration, duplicate IDs) are
// rejected up front.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: at least one plan is required", ErrInvalidPlanConfiguration)
	}

	c := &Catalog{
		plans: make(map[string]Plan, len(plans)),
		order: make([]string, 0, len(plans)),
	}
	for _, plan := range plans {
		if plan.ID == "" {
			return nil, fmt.Errorf("%w: plan ID is required", ErrInvalidPlanConfiguration)
		}
		if _, exists := c.plans[plan.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate plan ID %q", ErrInvalidPlanConfiguration, plan.ID)
		}
		if plan.Price.Amount <= 0 || plan.Price.Currency == "" {
			return nil, fmt.Errorf("%w: plan %q has no price", ErrInvalidPlanConfiguration, plan.ID)
		}
		if plan.DurationDays <= 0 {
			return nil, fmt.Errorf("%w: plan %q has non-positive duration", ErrInvalidPlanConfiguration, plan.ID)
		}
		if plan.Features.MaxPatients < Unlimited {
			return nil, fmt.Errorf("%w: plan %q has invalid patient limit", ErrInvalidPlanConfiguration, plan.ID)
		}
		c.plans[plan.ID] = plan
		c.order = append(c.order, plan.ID)
	}
	return c, nil
}

// MustNewCatalog panics on invalid configuration. Used for the built-in
// default catalog where a mistake is a programming error.
func MustNewCatalog(plans ...Plan) *Catalog {
	c, err := NewCatalog(plans...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the plan for the given ID.
func (c *Catalog) Get(planID string) (Plan, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// List returns all plans in registration order (cheapest first for the
// default catalog), so GET /plans renders a stable list.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// IDs returns the plan identifiers sorted alphabetically.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.plans))
	for id := range c.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultCatalog returns the built-in plan table. Prices are INR paise.
func DefaultCatalog() *Catalog {
	return MustNewCatalog(
		Plan{
			ID:           PlanBasic,
			Name:         "Basic",
			Description:  "Starter plan for small clinics",
			Price:        Money{Amount: 49900, Currency: "INR"},
			DurationDays: 30,
			Features: Features{
				MaxPatients: 4,
			},
		},
		Plan{
			ID:           PlanMonthly,
			Name:         "Monthly",
			Description:  "Full access billed monthly",
			Price:        Money{Amount: 99900, Currency: "INR"},
			DurationDays: 30,
			Features: Features{
				MaxPatients:       Unlimited,
				AdvancedReporting: true,
				PrioritySupport:   true,
				APIAccess:         true,
			},
		},
		Plan{
			ID:           PlanYearly,
			Name:         "Yearly",
			Description:  "Full access billed yearly",
			Price:        Money{Amount: 999900, Currency: "INR"},
			DurationDays: 365,
			Features: Features{
				MaxPatients:       Unlimited,
				AdvancedReporting: true,
				PrioritySupport:   true,
				APIAccess:         true,
				WhiteLabel:        true,
			},
		},
	)
}
