package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"growthgame/internal/domain/history"
	"growthgame/internal/domain/ledger"
	"growthgame/internal/domain/referral"
)

// ConfirmConversionInput carries input for ConfirmConversion.
type ConfirmConversionInput struct {
	Actor      Principal
	ReferralID string
	PlanID     string
}

// ConfirmConversionDeps holds dependencies for ConfirmConversion.
type ConfirmConversionDeps struct {
	Referrals  ReferralReader
	Ledger     LedgerStore
	Plans      PlanResolver
	Now        func() time.Time
	GenerateID func() string

	// StaffSharePercent is credited to the creator profile of a lead-path
	// conversion, but only when ApplyStaffShare is set.
	StaffSharePercent decimal.Decimal
	ApplyStaffShare   bool
}

// ConversionResult reports what a confirmation awarded.
type ConversionResult struct {
	PointsAwarded int // to the referrer (profile or lead)
	StaffShare    int // to the creator profile, 0 unless enabled
	PlanID        string
	PlanName      string
}

// ExecuteConfirmConversion marks a referral as sold and credits the plan's
// points to whoever referred it.
// PRE: referral exists and is not converted; plan resolves to an active plan
// POST: status is converted with ConvertedPlanID set; the plan's points are
// credited at most once per referral; a conversion event is appended; all in
// one transaction
// INVARIANT: a second confirmation for the same referral awards 0 points
func ExecuteConfirmConversion(ctx context.Context, input ConfirmConversionInput, deps ConfirmConversionDeps) (ConversionResult, error) {
	if !input.Actor.Authenticated() {
		return ConversionResult{}, ErrUnauthorized
	}
	r, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID)
	if err != nil {
		return ConversionResult{}, err
	}
	if r.IsConverted() {
		return ConversionResult{}, ErrAlreadyConverted
	}
	p, err := deps.Plans.ResolvePlan(ctx, r.OrganizationID, input.PlanID)
	if err != nil {
		return ConversionResult{}, planError(err)
	}

	from := r.Status
	if err := r.Convert(p.ID); err != nil {
		if errors.Is(err, referral.ErrAlreadyConverted) {
			return ConversionResult{}, ErrAlreadyConverted
		}
		return ConversionResult{}, err
	}

	// Undo keeps the awarded points, so a reconversion must not pay again.
	awarded, err := deps.Ledger.HasEntry(ctx, ledger.IdempotencyKey(ledger.ReasonConversion, r.ID))
	if err != nil {
		return ConversionResult{}, err
	}
	var awards []ledger.Award
	if !awarded {
		awards, err = conversionAwards(r, p.Points, deps)
		if err != nil {
			return ConversionResult{}, err
		}
	}

	now := deps.Now()
	r.UpdatedAt = now
	expected := ConversionResult{PlanID: p.ID, PlanName: p.Name}
	for _, a := range awards {
		if a.Reason == ledger.ReasonStaffShare {
			expected.StaffShare += a.Points
		} else {
			expected.PointsAwarded += a.Points
		}
	}
	event := history.NewEvent(deps.GenerateID(), r.ID, history.EventConversion, input.Actor.Actor(), now).WithData(map[string]any{
		"from":           from,
		"plan_id":        p.ID,
		"plan_name":      p.Name,
		"price":          p.Price.StringFixed(2),
		"points_awarded": expected.PointsAwarded,
		"staff_share":    expected.StaffShare,
		"repeat":         awarded,
	})
	m := ledger.Mutation{
		Referral:     r,
		ExpectStatus: from,
		Awards:       awards,
		Event:        event,
		EntryIDs:     entryIDs(awards, deps.GenerateID),
		At:           now,
	}
	if err := m.Validate(); err != nil {
		return ConversionResult{}, err
	}

	res, err := deps.Ledger.Apply(ctx, m)
	if err != nil {
		slog.Info("referral_event", "event", "conversion_failed", "referral_id", r.ID, "plan_id", p.ID, "error", err)
		return ConversionResult{}, ledgerError(err, ErrAlreadyConverted)
	}

	result := ConversionResult{PlanID: p.ID, PlanName: p.Name}
	for _, e := range res.Entries {
		if e.Reason == ledger.ReasonStaffShare {
			result.StaffShare += e.Points
		} else {
			result.PointsAwarded += e.Points
		}
	}
	slog.Info("referral_event", "event", "conversion_confirmed", "referral_id", r.ID, "plan_id", p.ID,
		"points", result.PointsAwarded, "staff_share", result.StaffShare, "lead_path", r.IsLeadPath())
	return result, nil
}

// conversionAwards decides who is credited for converting r.
func conversionAwards(r referral.Referral, points int, deps ConfirmConversionDeps) ([]ledger.Award, error) {
	if points <= 0 {
		return nil, nil
	}
	var awards []ledger.Award
	switch {
	case r.IsLeadPath():
		awards = append(awards, ledger.Award{
			Kind: ledger.BeneficiaryLead, BeneficiaryID: r.ReferredByLeadID,
			Reason: ledger.ReasonConversion, Points: points,
		})
	case r.ReferrerID != "":
		awards = append(awards, ledger.Award{
			Kind: ledger.BeneficiaryProfile, BeneficiaryID: r.ReferrerID,
			Reason: ledger.ReasonConversion, Points: points,
		})
	default:
		// The referrer profile was deleted; nobody is left to credit.
		slog.Warn("referral_event", "event", "conversion_unattributed", "referral_id", r.ID)
		return nil, nil
	}

	// TODO: turn ApplyStaffShare on by default once the owners confirm how the
	// barber split should work for lead-path conversions.
	if deps.ApplyStaffShare && r.IsLeadPath() && r.ReferrerID != "" {
		share, err := ledger.StaffShare(points, deps.StaffSharePercent)
		if err != nil {
			return nil, err
		}
		if share > 0 {
			awards = append(awards, ledger.Award{
				Kind: ledger.BeneficiaryProfile, BeneficiaryID: r.ReferrerID,
				Reason: ledger.ReasonStaffShare, Points: share,
			})
		}
	}
	return awards, nil
}

// UndoConversionInput carries input for UndoConversion.
type UndoConversionInput struct {
	Actor      Principal
	ReferralID string
}

// UndoConversionDeps holds dependencies for UndoConversion.
type UndoConversionDeps struct {
	Referrals  ReferralReader
	Ledger     LedgerStore
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteUndoConversion moves a converted referral back to contacted.
// Awarded points are not reverted.
// PRE: referral exists and is converted
// POST: status is contacted, plan cleared, a status_change event appended
func ExecuteUndoConversion(ctx context.Context, input UndoConversionInput, deps UndoConversionDeps) error {
	if !input.Actor.Authenticated() {
		return ErrUnauthorized
	}
	r, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID)
	if err != nil {
		return err
	}
	planID := r.ConvertedPlanID
	if err := r.UndoConversion(); err != nil {
		return ErrInvalidTransition
	}
	return applyStatusChange(ctx, r, referral.StatusConverted, map[string]any{"plan_id": planID},
		input.Actor, deps.Ledger, deps.Now(), deps.GenerateID, ErrInvalidTransition)
}
