package projections

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"growthgame/internal/domain/history"
	"growthgame/internal/domain/ledger"
	"growthgame/internal/domain/referral"
)

// DetailHistoryStore defines the history store interface needed by the detail projection.
type DetailHistoryStore interface {
	ListByReferral(ctx context.Context, referralID string) ([]history.Event, error)
}

// DetailLedgerStore defines the ledger store interface needed by the detail projection.
type DetailLedgerStore interface {
	ListByReferral(ctx context.Context, referralID string) ([]ledger.Entry, error)
}

// TimelineEvent is a history event with its payload decoded.
type TimelineEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"event_type"`
	Data          json.RawMessage `json:"event_data"`
	CreatedByID   string          `json:"created_by_id"`
	CreatedByName string          `json:"created_by_name"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AwardView is one ledger row credited for a referral.
type AwardView struct {
	Beneficiary   string    `json:"beneficiary_kind"`
	BeneficiaryID string    `json:"beneficiary_id"`
	Reason        string    `json:"reason"`
	Points        int       `json:"points"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetReferralDetailQuery carries query parameters.
type GetReferralDetailQuery struct {
	OrganizationID string
	ReferralID     string
}

// GetReferralDetailResult carries the query result.
type GetReferralDetailResult struct {
	Referral ReferralView    `json:"referral"`
	Timeline []TimelineEvent `json:"timeline"`
	Awards   []AwardView     `json:"awards"`
}

// GetReferralDetailDeps holds dependencies for GetReferralDetail.
type GetReferralDetailDeps struct {
	Referrals ReferralStore
	History   DetailHistoryStore
	Ledger    DetailLedgerStore // nil omits awards
}

// QueryGetReferralDetail loads a referral with its timeline, oldest first.
// PRE: query.ReferralID is non-empty
// POST: Returns ErrNotFound for ids outside query.OrganizationID
func QueryGetReferralDetail(ctx context.Context, query GetReferralDetailQuery, deps GetReferralDetailDeps) (GetReferralDetailResult, error) {
	r, err := loadOrgReferral(ctx, deps.Referrals, query.OrganizationID, query.ReferralID)
	if err != nil {
		return GetReferralDetailResult{}, err
	}
	events, err := deps.History.ListByReferral(ctx, r.ID)
	if err != nil {
		return GetReferralDetailResult{}, err
	}
	result := GetReferralDetailResult{
		Referral: NewReferralView(r),
		Timeline: make([]TimelineEvent, 0, len(events)),
		Awards:   []AwardView{},
	}
	for _, e := range events {
		data := json.RawMessage(e.Data)
		if !json.Valid(data) {
			data = json.RawMessage("{}")
		}
		result.Timeline = append(result.Timeline, TimelineEvent{
			ID:            e.ID,
			Type:          string(e.Type),
			Data:          data,
			CreatedByID:   e.CreatedByID,
			CreatedByName: e.CreatedByName,
			CreatedAt:     e.CreatedAt,
		})
	}

	if deps.Ledger != nil {
		entries, err := deps.Ledger.ListByReferral(ctx, r.ID)
		if err != nil {
			return GetReferralDetailResult{}, err
		}
		for _, e := range entries {
			result.Awards = append(result.Awards, AwardView{
				Beneficiary:   string(e.Kind),
				BeneficiaryID: e.BeneficiaryID,
				Reason:        string(e.Reason),
				Points:        e.Points,
				CreatedAt:     e.CreatedAt,
			})
		}
	}
	return result, nil
}

func loadOrgReferral(ctx context.Context, store ReferralStore, organizationID, id string) (referral.Referral, error) {
	r, err := store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && r.OrganizationID != organizationID) {
		return referral.Referral{}, fmt.Errorf("referral %s: %w", id, ErrNotFound)
	}
	return r, err
}
