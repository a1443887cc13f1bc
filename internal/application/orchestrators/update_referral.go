package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"growthgame/internal/domain/history"
	"growthgame/internal/domain/referral"
)

// ReferralDetailsStore writes descriptive referral fields with their events.
type ReferralDetailsStore interface {
	ReferralReader
	UpdateDetails(ctx context.Context, r referral.Referral, events []history.Event) error
}

// ReferralPatch lists the fields to change; nil fields are left alone.
type ReferralPatch struct {
	LeadName     *string
	LeadPhone    *string
	Notes        *string
	Tags         *[]string
	ContactTag   *string
	FollowUpDate *string
	FollowUpNote *string
	IsClient     *bool
}

// UpdateReferralInput carries input for UpdateReferral.
type UpdateReferralInput struct {
	Actor      Principal
	ReferralID string
	Patch      ReferralPatch
}

// UpdateReferralDeps holds dependencies for UpdateReferral.
type UpdateReferralDeps struct {
	Referrals  ReferralDetailsStore
	TagExists  func(organizationID, tagID string) bool // nil accepts any tag
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteUpdateReferral applies a patch to the descriptive fields of a
// referral. Status, plan and points are never touched.
// PRE: referral exists in the caller's organization
// POST: the row and one history event per changed concern are committed
// together
func ExecuteUpdateReferral(ctx context.Context, input UpdateReferralInput, deps UpdateReferralDeps) (referral.Referral, error) {
	if !input.Actor.Authenticated() {
		return referral.Referral{}, ErrUnauthorized
	}
	r, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID)
	if err != nil {
		return referral.Referral{}, err
	}
	now := deps.Now()
	actor := input.Actor.Actor()
	p := input.Patch
	var events []history.Event
	event := func(t history.EventType, data map[string]any) {
		events = append(events, history.NewEvent(deps.GenerateID(), r.ID, t, actor, now).WithData(data))
	}

	if p.LeadName != nil {
		r.LeadName = strings.TrimSpace(*p.LeadName)
	}
	if p.LeadPhone != nil {
		r.LeadPhone = strings.TrimSpace(*p.LeadPhone)
	}
	if p.Notes != nil && *p.Notes != r.Notes {
		r.Notes = *p.Notes
		event(history.EventNoteAdded, map[string]any{"notes": r.Notes})
	}
	if p.Tags != nil {
		tags := referral.NormalizeTags(*p.Tags)
		if deps.TagExists != nil {
			for _, id := range tags {
				if !deps.TagExists(r.OrganizationID, id) {
					return referral.Referral{}, fmt.Errorf("unknown tag %q", id)
				}
			}
		}
		added, removed := diffTags(r.Tags, tags)
		if len(added) > 0 || len(removed) > 0 {
			event(history.EventTagChange, map[string]any{"added": added, "removed": removed})
		}
		r.Tags = tags
	}
	if p.ContactTag != nil && *p.ContactTag != r.ContactTag {
		event(history.EventQualificationChange, map[string]any{"from": r.ContactTag, "to": *p.ContactTag})
		r.ContactTag = *p.ContactTag
	}
	if p.FollowUpDate != nil {
		r.FollowUpDate = strings.TrimSpace(*p.FollowUpDate)
	}
	if p.FollowUpNote != nil {
		r.FollowUpNote = *p.FollowUpNote
	}
	if p.IsClient != nil {
		r.SetClient(*p.IsClient, now)
	}
	r.UpdatedAt = now

	if err := r.Validate(); err != nil {
		return referral.Referral{}, err
	}
	if err := deps.Referrals.UpdateDetails(ctx, r, events); err != nil {
		return referral.Referral{}, notFoundOrWrite("referral "+r.ID, err)
	}
	slog.Info("referral_event", "event", "details_updated", "referral_id", r.ID, "events", len(events))
	return r, nil
}

// diffTags returns the ids in next but not prev, and in prev but not next.
func diffTags(prev, next []string) (added, removed []string) {
	in := func(list []string, id string) bool {
		for _, v := range list {
			if v == id {
				return true
			}
		}
		return false
	}
	added, removed = []string{}, []string{}
	for _, id := range next {
		if !in(prev, id) {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !in(next, id) {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// ReferringLeadStore re-links a referral. The store re-checks the chain
// inside its write so concurrent links cannot close a cycle.
type ReferringLeadStore interface {
	ReferralReader
	LinkReferringLead(ctx context.Context, id, leadID string, at time.Time, event history.Event) error
}

// LinkReferringLeadInput carries input for LinkReferringLead.
type LinkReferringLeadInput struct {
	Actor      Principal
	ReferralID string
	LeadID     string // empty clears the link
}

// LinkReferringLeadDeps holds dependencies for LinkReferringLead.
type LinkReferringLeadDeps struct {
	Referrals  ReferringLeadStore
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteLinkReferringLead sets or clears the lead that referred a referral.
// Points already awarded are not moved.
// PRE: both referrals exist in the caller's organization
// POST: ReferredByLeadID equals LeadID and a referring_lead_change event
// records the previous and new lead; an unchanged link writes nothing
// INVARIANT: no referral transitively refers itself
func ExecuteLinkReferringLead(ctx context.Context, input LinkReferringLeadInput, deps LinkReferringLeadDeps) error {
	if !input.Actor.Authenticated() {
		return ErrUnauthorized
	}
	r, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID)
	if err != nil {
		return err
	}
	if input.LeadID == r.ReferredByLeadID {
		return nil
	}
	if input.LeadID != "" {
		if _, err := loadReferral(ctx, deps.Referrals, input.LeadID, r.OrganizationID); err != nil {
			return err
		}
		if err := referral.CheckChain(r.ID, input.LeadID, chainLookup(ctx, deps.Referrals)); err != nil {
			return chainError(err)
		}
	}

	now := deps.Now()
	event := history.NewEvent(deps.GenerateID(), r.ID, history.EventReferringLeadChange, input.Actor.Actor(), now).
		WithData(map[string]any{"from": r.ReferredByLeadID, "to": input.LeadID})
	if err := deps.Referrals.LinkReferringLead(ctx, r.ID, input.LeadID, now, event); err != nil {
		if errors.Is(err, referral.ErrSelfReferral) || errors.Is(err, referral.ErrChainCycle) || errors.Is(err, referral.ErrChainTooDeep) {
			return chainError(err)
		}
		return notFoundOrWrite("referral "+r.ID, err)
	}
	slog.Info("referral_event", "event", "referring_lead_linked", "referral_id", r.ID, "from", r.ReferredByLeadID, "lead_id", input.LeadID)
	return nil
}
