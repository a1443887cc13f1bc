package orchestrators

import (
	"context"
	"fmt"

	"growthgame/internal/application/overlay"
	"growthgame/internal/domain/msgtemplate"
	"growthgame/internal/domain/plan"
)

// PlanResolver resolves a plan id against the catalog merged with an
// organization's overrides.
type PlanResolver interface {
	ResolvePlan(ctx context.Context, organizationID, planID string) (plan.Plan, error)
	Plans(ctx context.Context, organizationID string) ([]plan.Plan, error)
}

// OverlayPlans merges the built-in catalog with the plan_overrides overlay.
type OverlayPlans struct {
	Catalog  *plan.Catalog
	Overlays *overlay.Manager
}

// ResolvePlan returns the active, merged plan.
// POST: returns plan.ErrUnknownPlan or plan.ErrInactivePlan when unusable
func (o OverlayPlans) ResolvePlan(ctx context.Context, organizationID, planID string) (plan.Plan, error) {
	org, err := o.Overlays.Organization(ctx, organizationID)
	if err != nil {
		return plan.Plan{}, err
	}
	return o.Catalog.Resolve(planID, org.Overrides())
}

// Plans returns every merged plan in catalog order.
func (o OverlayPlans) Plans(ctx context.Context, organizationID string) ([]plan.Plan, error) {
	org, err := o.Overlays.Organization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return o.Catalog.Plans(org.Overrides()), nil
}

// TemplateSource finds an organization's message template.
type TemplateSource interface {
	Template(ctx context.Context, organizationID, id string) (msgtemplate.Template, error)
}

// OverlayTemplates serves templates from the message_templates overlay.
type OverlayTemplates struct {
	Overlays *overlay.Manager
}

// Template returns the template with id.
// POST: returns an error wrapping ErrNotFound when absent
func (o OverlayTemplates) Template(ctx context.Context, organizationID, id string) (msgtemplate.Template, error) {
	org, err := o.Overlays.Organization(ctx, organizationID)
	if err != nil {
		return msgtemplate.Template{}, err
	}
	t, ok := org.Templates.Get(id)
	if !ok {
		return msgtemplate.Template{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// OverlayTagExists reports whether tagID is in an organization's tag list.
// Load failures count as unknown.
func OverlayTagExists(ctx context.Context, overlays *overlay.Manager) func(organizationID, tagID string) bool {
	return func(organizationID, tagID string) bool {
		org, err := overlays.Organization(ctx, organizationID)
		if err != nil {
			return false
		}
		_, ok := org.Tags.Get(tagID)
		return ok
	}
}
