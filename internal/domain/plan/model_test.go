package plan_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"growthgame/internal/domain/plan"
)

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }
func strPtr(v string) *string { return &v }

// TestDefaultCatalog checks the built-in plans.
func TestDefaultCatalog(t *testing.T) {
	c, err := plan.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	if got := len(c.IDs()); got != 9 {
		t.Fatalf("catalog size = %d, want 9", got)
	}
	p, err := c.Resolve("gold_corte", nil)
	if err != nil {
		t.Fatalf("Resolve(gold_corte): %v", err)
	}
	if p.Points != 80 {
		t.Errorf("gold_corte points = %d, want 80", p.Points)
	}
	if p.Tier != plan.TierGold || p.Type != plan.TypeCorte {
		t.Errorf("gold_corte tier/type = %s/%s", p.Tier, p.Type)
	}
	if !p.Price.Equal(decimal.RequireFromString("59.90")) {
		t.Errorf("gold_corte price = %s", p.Price)
	}
}

// TestResolveUnknown rejects ids outside the catalog.
func TestResolveUnknown(t *testing.T) {
	c, _ := plan.DefaultCatalog()
	if _, err := c.Resolve("diamond_corte", nil); !errors.Is(err, plan.ErrUnknownPlan) {
		t.Errorf("err = %v, want ErrUnknownPlan", err)
	}
}

// TestOverridesMergeOverCatalog verifies last-write-wins patching.
func TestOverridesMergeOverCatalog(t *testing.T) {
	c, _ := plan.DefaultCatalog()
	price := decimal.RequireFromString("64.90")
	overrides := map[string]plan.Override{
		"gold_corte":   {Points: intPtr(100), Price: &price},
		"silver_barba": {Active: boolPtr(false)},
		"unknown":      {Points: intPtr(1)},
	}

	p, err := c.Resolve("gold_corte", overrides)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Points != 100 || !p.Price.Equal(price) {
		t.Errorf("overridden gold_corte = %+v", p)
	}
	if p.Name != "Ouro Corte" {
		t.Errorf("name should be untouched, got %q", p.Name)
	}
	if _, err := c.Resolve("silver_barba", overrides); !errors.Is(err, plan.ErrInactivePlan) {
		t.Errorf("inactive plan err = %v", err)
	}

	plans := c.Plans(overrides)
	if len(plans) != 9 {
		t.Fatalf("Plans len = %d", len(plans))
	}
	if plans[0].ID != "silver_corte" {
		t.Errorf("catalog order lost, first = %s", plans[0].ID)
	}
}

// TestOverrideMerge checks field-wise precedence.
func TestOverrideMerge(t *testing.T) {
	a := plan.Override{Points: intPtr(10), Name: strPtr("A")}
	b := plan.Override{Points: intPtr(20)}
	m := a.Merge(b)
	if *m.Points != 20 || *m.Name != "A" {
		t.Errorf("Merge = points %d name %s", *m.Points, *m.Name)
	}
}

// TestOverrideValidate covers the rejected patches.
func TestOverrideValidate(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	tests := []struct {
		name     string
		override plan.Override
		wantErr  error
	}{
		{name: "empty", override: plan.Override{}},
		{name: "negative points", override: plan.Override{Points: intPtr(-5)}, wantErr: plan.ErrNegativePoints},
		{name: "negative price", override: plan.Override{Price: &neg}, wantErr: plan.ErrNegativePrice},
		{name: "blank name", override: plan.Override{Name: strPtr(" ")}, wantErr: plan.ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.override.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestParseCatalogRejectsBadPrice ensures prices are real decimals.
func TestParseCatalogRejectsBadPrice(t *testing.T) {
	doc := []byte("plans:\n  - id: x\n    name: X\n    points: 1\n    price: abc\n")
	if _, err := plan.ParseCatalog(doc); err == nil {
		t.Error("expected error for non-decimal price")
	}
}

func TestOverrideMapLastWriteWins(t *testing.T) {
	m := plan.OverrideMap([]plan.OverrideEntry{
		{PlanID: "gold_corte", Override: plan.Override{Points: intPtr(90), Name: strPtr("Ouro")}},
		{PlanID: "gold_corte", Override: plan.Override{Points: intPtr(95)}},
	})
	o := m["gold_corte"]
	if *o.Points != 95 || *o.Name != "Ouro" {
		t.Errorf("OverrideMap = points %d name %s", *o.Points, *o.Name)
	}
}
