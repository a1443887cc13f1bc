package projections

import (
	"context"
	"sort"
	"time"

	"growthgame/internal/domain/referral"
)

// FollowUpReferralStore defines the referral store interface needed by the follow-up projection.
type FollowUpReferralStore interface {
	DueFollowUps(ctx context.Context, organizationID, onOrBefore string) ([]referral.Referral, error)
}

// FollowUpDismissals returns the referral ids a profile dismissed.
type FollowUpDismissals interface {
	DismissedIDs(ctx context.Context, profileID string) (map[string]bool, error)
}

// GetDueFollowUpsQuery carries query parameters.
type GetDueFollowUpsQuery struct {
	OrganizationID string
	ProfileID      string
	OnlyMine       bool      // restrict to referrals the profile referred
	Now            time.Time // optional: if zero, time.Now() is used
}

// DueFollowUp is a referral waiting for a call back.
type DueFollowUp struct {
	ReferralID   string `json:"referral_id"`
	LeadName     string `json:"lead_name"`
	LeadPhone    string `json:"lead_phone"`
	ReferrerName string `json:"referrer_name"`
	FollowUpDate string `json:"follow_up_date"`
	FollowUpNote string `json:"follow_up_note"`
	Overdue      bool   `json:"overdue"`
}

// GetDueFollowUpsDeps holds dependencies for GetDueFollowUps.
type GetDueFollowUpsDeps struct {
	Referrals  FollowUpReferralStore
	Dismissals FollowUpDismissals
}

// QueryGetDueFollowUps lists follow-ups dated today or earlier that the
// profile has not dismissed.
// POST: Rows are ordered by follow_up_date, then referral id
func QueryGetDueFollowUps(ctx context.Context, query GetDueFollowUpsQuery, deps GetDueFollowUpsDeps) ([]DueFollowUp, error) {
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := now.Format("2006-01-02")

	due, err := deps.Referrals.DueFollowUps(ctx, query.OrganizationID, today)
	if err != nil {
		return nil, err
	}
	dismissed, err := deps.Dismissals.DismissedIDs(ctx, query.ProfileID)
	if err != nil {
		return nil, err
	}

	out := []DueFollowUp{}
	for _, r := range due {
		if dismissed[r.ID] {
			continue
		}
		if query.OnlyMine && r.ReferrerID != query.ProfileID {
			continue
		}
		out = append(out, DueFollowUp{
			ReferralID:   r.ID,
			LeadName:     r.LeadName,
			LeadPhone:    r.LeadPhone,
			ReferrerName: r.ReferrerName,
			FollowUpDate: r.FollowUpDate,
			FollowUpNote: r.FollowUpNote,
			Overdue:      r.FollowUpDate < today,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FollowUpDate != out[j].FollowUpDate {
			return out[i].FollowUpDate < out[j].FollowUpDate
		}
		return out[i].ReferralID < out[j].ReferralID
	})
	return out, nil
}
