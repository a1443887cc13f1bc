package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"growthgame/internal/domain/history"
	"growthgame/internal/domain/ledger"
	"growthgame/internal/domain/referral"
)

// DefaultReferralBonusPoints is credited for every registered referral.
const DefaultReferralBonusPoints = 10

// RegisterReferralInput carries input for RegisterReferral.
type RegisterReferralInput struct {
	Actor        Principal
	ReferrerID   string
	ReferrerName string // optional; the profile name is used when empty
	LeadName     string
	LeadPhone    string
}

// RegisterReferralDeps holds dependencies for RegisterReferral.
type RegisterReferralDeps struct {
	Profiles    ProfileReader
	Ledger      LedgerStore
	BonusPoints int
	Now         func() time.Time
	GenerateID  func() string
}

// RegisterResult reports the new referral and the points credited.
type RegisterResult struct {
	ReferralID    string
	PointsAwarded int
}

// ExecuteRegisterReferral records a lead brought in by a profile and credits
// the referral bonus to that profile.
// PRE: ReferrerID names an existing profile in the caller's organization
// POST: referral exists with status new; referrer wallet and lifetime grew by
// the bonus; one created event appended; all in one transaction
func ExecuteRegisterReferral(ctx context.Context, input RegisterReferralInput, deps RegisterReferralDeps) (RegisterResult, error) {
	if !input.Actor.Authenticated() {
		return RegisterResult{}, ErrUnauthorized
	}
	referrer, err := deps.Profiles.GetByID(ctx, input.ReferrerID)
	if err != nil {
		return RegisterResult{}, notFound("referrer profile "+input.ReferrerID, err)
	}
	if referrer.OrganizationID != input.Actor.OrganizationID {
		return RegisterResult{}, fmt.Errorf("referrer profile %s: %w", input.ReferrerID, ErrNotFound)
	}

	name := strings.TrimSpace(input.ReferrerName)
	if name == "" {
		name = referrer.FullName
	}
	now := deps.Now()
	r := referral.Referral{
		ID:             deps.GenerateID(),
		OrganizationID: referrer.OrganizationID,
		ReferrerID:     referrer.ID,
		ReferrerName:   name,
		LeadName:       strings.TrimSpace(input.LeadName),
		LeadPhone:      strings.TrimSpace(input.LeadPhone),
		Status:         referral.StatusNew,
		Tags:           []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var awards []ledger.Award
	if deps.BonusPoints > 0 {
		awards = append(awards, ledger.Award{
			Kind:          ledger.BeneficiaryProfile,
			BeneficiaryID: referrer.ID,
			Reason:        ledger.ReasonRegistrationBonus,
			Points:        deps.BonusPoints,
		})
	}
	return applyRegistration(ctx, r, awards, input.Actor, deps.Ledger, deps.GenerateID)
}

// RegisterViaLeadInput carries input for RegisterViaLead.
type RegisterViaLeadInput struct {
	Actor           Principal
	CreatorID       string // profile recording the referral
	ReferringLeadID string
	LeadName        string
	LeadPhone       string
}

// RegisterViaLeadDeps holds dependencies for RegisterViaLead.
type RegisterViaLeadDeps struct {
	Referrals   ReferralReader
	Profiles    ProfileReader
	Ledger      LedgerStore
	BonusPoints int
	Now         func() time.Time
	GenerateID  func() string
}

// ExecuteRegisterViaLead records a lead brought in by another lead. The
// bonus goes to the referring lead's lead_points.
// PRE: ReferringLeadID and CreatorID exist in the caller's organization
// POST: referral exists with ReferredByLeadID set and ReferrerName copied
// from the referring lead; the referring lead's lead_points grew by the bonus
// INVARIANT: the referring chain stays acyclic
func ExecuteRegisterViaLead(ctx context.Context, input RegisterViaLeadInput, deps RegisterViaLeadDeps) (RegisterResult, error) {
	if !input.Actor.Authenticated() {
		return RegisterResult{}, ErrUnauthorized
	}
	lead, err := loadReferral(ctx, deps.Referrals, input.ReferringLeadID, input.Actor.OrganizationID)
	if err != nil {
		return RegisterResult{}, err
	}
	creator, err := deps.Profiles.GetByID(ctx, input.CreatorID)
	if err != nil {
		return RegisterResult{}, notFound("creator profile "+input.CreatorID, err)
	}
	if creator.OrganizationID != lead.OrganizationID {
		return RegisterResult{}, fmt.Errorf("creator profile %s: %w", input.CreatorID, ErrNotFound)
	}

	now := deps.Now()
	r := referral.Referral{
		ID:               deps.GenerateID(),
		OrganizationID:   lead.OrganizationID,
		ReferrerID:       creator.ID,
		ReferrerName:     lead.LeadName,
		ReferredByLeadID: lead.ID,
		LeadName:         strings.TrimSpace(input.LeadName),
		LeadPhone:        strings.TrimSpace(input.LeadPhone),
		Status:           referral.StatusNew,
		Tags:             []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := referral.CheckChain(r.ID, lead.ID, chainLookup(ctx, deps.Referrals)); err != nil {
		return RegisterResult{}, chainError(err)
	}

	var awards []ledger.Award
	if deps.BonusPoints > 0 {
		awards = append(awards, ledger.Award{
			Kind:          ledger.BeneficiaryLead,
			BeneficiaryID: lead.ID,
			Reason:        ledger.ReasonRegistrationBonus,
			Points:        deps.BonusPoints,
		})
	}
	return applyRegistration(ctx, r, awards, input.Actor, deps.Ledger, deps.GenerateID)
}

func applyRegistration(ctx context.Context, r referral.Referral, awards []ledger.Award, actor Principal, store LedgerStore, generateID func() string) (RegisterResult, error) {
	points := 0
	for _, a := range awards {
		points += a.Points
	}
	event := history.NewEvent(generateID(), r.ID, history.EventCreated, actor.Actor(), r.CreatedAt).WithData(map[string]any{
		"lead_name":           r.LeadName,
		"referrer_name":       r.ReferrerName,
		"referred_by_lead_id": r.ReferredByLeadID,
		"points":              points,
	})
	m := ledger.Mutation{
		Referral: r,
		Create:   true,
		Awards:   awards,
		Event:    event,
		EntryIDs: entryIDs(awards, generateID),
		At:       r.CreatedAt,
	}
	if err := m.Validate(); err != nil {
		return RegisterResult{}, err
	}

	res, err := store.Apply(ctx, m)
	if err != nil {
		slog.Error("referral_event", "event", "register_failed", "referral_id", r.ID, "error", err)
		return RegisterResult{}, ledgerError(err, ErrWriteFailed)
	}
	slog.Info("referral_event", "event", "referral_registered", "referral_id", r.ID,
		"referrer_id", r.ReferrerID, "referred_by_lead_id", r.ReferredByLeadID, "points", res.PointsAwarded)
	return RegisterResult{ReferralID: r.ID, PointsAwarded: res.PointsAwarded}, nil
}
