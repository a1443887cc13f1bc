package orchestrators

import (
	"context"

	"growthgame/internal/domain/ledger"
	"growthgame/internal/domain/profile"
	"growthgame/internal/domain/referral"
)

// LedgerStore applies a referral mutation, its awards and its history event
// atomically.
type LedgerStore interface {
	Apply(ctx context.Context, m ledger.Mutation) (ledger.Result, error)
	HasEntry(ctx context.Context, idempotencyKey string) (bool, error)
}

// ReferralReader loads referrals and walks referring-lead chains.
type ReferralReader interface {
	GetByID(ctx context.Context, id string) (referral.Referral, error)
	ReferredByLeadID(ctx context.Context, id string) (string, error)
}

// ProfileReader loads profiles.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (profile.Profile, error)
}

// loadReferral fetches a referral visible to the caller's organization.
func loadReferral(ctx context.Context, store ReferralReader, id, organizationID string) (referral.Referral, error) {
	r, err := store.GetByID(ctx, id)
	if err != nil {
		return referral.Referral{}, notFound("referral "+id, err)
	}
	if organizationID != "" && r.OrganizationID != organizationID {
		return referral.Referral{}, notFound("referral "+id, errNoRowsInOrg)
	}
	return r, nil
}

// chainLookup adapts a ReferralReader to referral.LeadLookup.
func chainLookup(ctx context.Context, store ReferralReader) referral.LeadLookup {
	return func(id string) (string, error) {
		return store.ReferredByLeadID(ctx, id)
	}
}

// entryIDs generates one ledger entry id per award.
func entryIDs(awards []ledger.Award, generate func() string) []string {
	ids := make([]string, len(awards))
	for i := range ids {
		ids[i] = generate()
	}
	return ids
}
