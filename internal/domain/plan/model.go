package plan

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Tier constants.
const (
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

// Type constants.
const (
	TypeCorte = "corte"
	TypeBarba = "barba"
	TypeCombo = "combo"
)

// Domain errors
var (
	ErrUnknownPlan    = errors.New("unknown plan")
	ErrInactivePlan   = errors.New("plan is not active")
	ErrNegativePoints = errors.New("plan points cannot be negative")
	ErrNegativePrice  = errors.New("plan price cannot be negative")
	ErrEmptyName      = errors.New("plan name cannot be empty")
)

// Plan is a reward plan: a (tier, type) pair with a point value and price.
type Plan struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Tier   string          `json:"tier"`
	Type   string          `json:"type"`
	Points int             `json:"points"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}

// Override patches a catalog plan. Nil fields keep the catalog value.
type Override struct {
	Name   *string          `json:"name,omitempty"`
	Points *int             `json:"points,omitempty"`
	Price  *decimal.Decimal `json:"price,omitempty"`
	Active *bool            `json:"active,omitempty"`
}

// Validate checks an override before it is stored.
// PRE: Override is decoded
// POST: Returns nil if every set field is acceptable
func (o Override) Validate() error {
	if o.Name != nil && strings.TrimSpace(*o.Name) == "" {
		return ErrEmptyName
	}
	if o.Points != nil && *o.Points < 0 {
		return ErrNegativePoints
	}
	if o.Price != nil && o.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// Apply returns p with the override's set fields.
func (o Override) Apply(p Plan) Plan {
	if o.Name != nil {
		p.Name = *o.Name
	}
	if o.Points != nil {
		p.Points = *o.Points
	}
	if o.Price != nil {
		p.Price = *o.Price
	}
	if o.Active != nil {
		p.Active = *o.Active
	}
	return p
}

// Merge folds other into o, other's set fields winning.
func (o Override) Merge(other Override) Override {
	if other.Name != nil {
		o.Name = other.Name
	}
	if other.Points != nil {
		o.Points = other.Points
	}
	if other.Price != nil {
		o.Price = other.Price
	}
	if other.Active != nil {
		o.Active = other.Active
	}
	return o
}

type catalogFile struct {
	Plans []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Tier   string `yaml:"tier"`
		Type   string `yaml:"type"`
		Points int    `yaml:"points"`
		Price  string `yaml:"price"`
	} `yaml:"plans"`
}

// Catalog is an ordered, immutable set of plans.
type Catalog struct {
	plans []Plan
	index map[string]int
}

// DefaultCatalog parses the embedded catalog.
// POST: Returns every built-in plan, all active
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(builtinCatalog)
}

// ParseCatalog parses a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	c := &Catalog{index: make(map[string]int, len(f.Plans))}
	for _, raw := range f.Plans {
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("plan %s price %q: %w", raw.ID, raw.Price, err)
		}
		if raw.ID == "" {
			return nil, errors.New("plan catalog entry without id")
		}
		if _, dup := c.index[raw.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %s", raw.ID)
		}
		if raw.Points < 0 {
			return nil, fmt.Errorf("plan %s: %w", raw.ID, ErrNegativePoints)
		}
		c.index[raw.ID] = len(c.plans)
		c.plans = append(c.plans, Plan{
			ID:     raw.ID,
			Name:   raw.Name,
			Tier:   raw.Tier,
			Type:   raw.Type,
			Points: raw.Points,
			Price:  price,
			Active: true,
		})
	}
	return c, nil
}

// Has reports whether id is a catalog plan.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Plans returns the catalog with overrides merged in, in catalog order.
// Overrides for unknown ids are ignored.
func (c *Catalog) Plans(overrides map[string]Override) []Plan {
	out := make([]Plan, len(c.plans))
	for i, p := range c.plans {
		if o, ok := overrides[p.ID]; ok {
			p = o.Apply(p)
		}
		out[i] = p
	}
	return out
}

// Resolve returns the effective plan for id.
// PRE: overrides may be nil
// POST: Returns ErrUnknownPlan for ids outside the catalog and
// ErrInactivePlan for plans switched off by an override
func (c *Catalog) Resolve(id string, overrides map[string]Override) (Plan, error) {
	i, ok := c.index[id]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	p := c.plans[i]
	if o, ok := overrides[id]; ok {
		p = o.Apply(p)
	}
	if !p.Active {
		return Plan{}, ErrInactivePlan
	}
	return p, nil
}

// IDs returns the catalog plan ids sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.plans))
	for _, p := range c.plans {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

// OverrideEntry is a stored override keyed by plan id.
type OverrideEntry struct {
	PlanID string `json:"plan_id"`
	Override
}

// ItemID identifies the entry in its list.
func (e OverrideEntry) ItemID() string { return e.PlanID }

// Validate checks the entry before it is stored.
func (e OverrideEntry) Validate() error {
	if e.PlanID == "" {
		return ErrUnknownPlan
	}
	return e.Override.Validate()
}

// OverrideMap indexes entries by plan id; later entries win.
func OverrideMap(entries []OverrideEntry) map[string]Override {
	out := make(map[string]Override, len(entries))
	for _, e := range entries {
		out[e.PlanID] = out[e.PlanID].Merge(e.Override)
	}
	return out
}
