package referral

import (
	"context"
	"time"

	"growthgame/internal/domain/history"
	domain "growthgame/internal/domain/referral"
)

// Store persists Referral state outside the points ledger. Status changes
// and awards go through the ledger store.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Referral, error)
	ReferredByLeadID(ctx context.Context, id string) (string, error)
	UpdateDetails(ctx context.Context, r domain.Referral, events []history.Event) error
	LinkReferringLead(ctx context.Context, id, leadID string, at time.Time, event history.Event) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Referral, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	CountByStatus(ctx context.Context, organizationID string) (map[string]int, error)
	LeadRanking(ctx context.Context, organizationID string) ([]LeadRank, error)
	DueFollowUps(ctx context.Context, organizationID, onOrBefore string) ([]domain.Referral, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	OrganizationID string
	Limit          int
	Offset         int
	Status         string
	ContactTag     string
	Tag            string
	ReferrerID     string
	Search         string // matches lead name or phone
}

// LeadRank is one row of the lead leaderboard.
type LeadRank struct {
	ID               string `json:"id"`
	LeadName         string `json:"lead_name"`
	LeadPoints       int    `json:"lead_points"`
	SubReferralCount int    `json:"sub_referral_count"`
}
