package projections

import (
	"time"

	"growthgame/internal/domain/referral"
)

// ReferralView is the JSON shape of a referral.
type ReferralView struct {
	ID               string     `json:"id"`
	ReferrerID       string     `json:"referrer_id,omitempty"`
	ReferrerName     string     `json:"referrer_name"`
	ReferredByLeadID string     `json:"referred_by_lead_id,omitempty"`
	LeadName         string     `json:"lead_name"`
	LeadPhone        string     `json:"lead_phone"`
	Status           string     `json:"status"`
	LeadPoints       int        `json:"lead_points"`
	ConvertedPlanID  string     `json:"converted_plan_id,omitempty"`
	ContactTag       string     `json:"contact_tag"`
	Notes            string     `json:"notes"`
	FollowUpDate     string     `json:"follow_up_date,omitempty"`
	FollowUpNote     string     `json:"follow_up_note,omitempty"`
	Tags             []string   `json:"tags"`
	IsClient         bool       `json:"is_client"`
	ClientSince      *time.Time `json:"client_since,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewReferralView converts a domain referral for output.
func NewReferralView(r referral.Referral) ReferralView {
	v := ReferralView{
		ID:               r.ID,
		ReferrerID:       r.ReferrerID,
		ReferrerName:     r.ReferrerName,
		ReferredByLeadID: r.ReferredByLeadID,
		LeadName:         r.LeadName,
		LeadPhone:        r.LeadPhone,
		Status:           r.Status,
		LeadPoints:       r.LeadPoints,
		ConvertedPlanID:  r.ConvertedPlanID,
		ContactTag:       r.ContactTag,
		Notes:            r.Notes,
		FollowUpDate:     r.FollowUpDate,
		FollowUpNote:     r.FollowUpNote,
		Tags:             r.Tags,
		IsClient:         r.IsClient,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if !r.ClientSince.IsZero() {
		since := r.ClientSince
		v.ClientSince = &since
	}
	return v
}
