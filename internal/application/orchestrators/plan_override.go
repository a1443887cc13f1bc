package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"growthgame/internal/application/overlay"
	"growthgame/internal/domain/plan"
)

// PlanOverrideInput carries input for SetPlanOverride.
type PlanOverrideInput struct {
	Actor    Principal
	PlanID   string
	Override plan.Override
}

// PlanOverrideDeps holds dependencies for the plan override use cases.
type PlanOverrideDeps struct {
	Catalog  *plan.Catalog
	Overlays *overlay.Manager
}

// ExecuteSetPlanOverride merges a patch into the stored override of a
// catalog plan. Last write wins.
// PRE: caller is owner or admin; PlanID is a catalog plan
// POST: the plan_overrides overlay holds the merged patch and a write is scheduled
func ExecuteSetPlanOverride(ctx context.Context, input PlanOverrideInput, deps PlanOverrideDeps) (plan.Plan, error) {
	if err := requireAdmin(input.Actor); err != nil {
		return plan.Plan{}, err
	}
	if !deps.Catalog.Has(input.PlanID) {
		return plan.Plan{}, fmt.Errorf("%w: %s", ErrInvalidPlan, input.PlanID)
	}
	if err := input.Override.Validate(); err != nil {
		return plan.Plan{}, err
	}
	org, err := deps.Overlays.Organization(ctx, input.Actor.OrganizationID)
	if err != nil {
		return plan.Plan{}, err
	}

	merged := input.Override
	if existing, ok := org.PlanOverrides.Get(input.PlanID); ok {
		merged = existing.Override.Merge(input.Override)
	}
	if err := org.PlanOverrides.Upsert(plan.OverrideEntry{PlanID: input.PlanID, Override: merged}); err != nil {
		return plan.Plan{}, err
	}
	slog.Info("plan_event", "event", "override_set", "plan_id", input.PlanID, "by", input.Actor.ProfileID)

	for _, p := range deps.Catalog.Plans(org.Overrides()) {
		if p.ID == input.PlanID {
			return p, nil
		}
	}
	return plan.Plan{}, fmt.Errorf("%w: %s", ErrInvalidPlan, input.PlanID)
}

// ExecuteClearPlanOverride removes the override of a plan so the catalog
// values apply again.
// PRE: caller is owner or admin
// POST: no override is stored for PlanID
func ExecuteClearPlanOverride(ctx context.Context, actor Principal, planID string, deps PlanOverrideDeps) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	org, err := deps.Overlays.Organization(ctx, actor.OrganizationID)
	if err != nil {
		return err
	}
	if err := org.PlanOverrides.Remove(planID); err != nil {
		if errors.Is(err, overlay.ErrItemNotFound) {
			return fmt.Errorf("override %s: %w", planID, ErrNotFound)
		}
		return err
	}
	slog.Info("plan_event", "event", "override_cleared", "plan_id", planID, "by", actor.ProfileID)
	return nil
}
