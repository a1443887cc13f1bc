package projections

import (
	"context"

	"github.com/shopspring/decimal"

	"growthgame/internal/domain/referral"
)

// StatsReferralStore defines the referral store interface needed by the stats projection.
type StatsReferralStore interface {
	CountByStatus(ctx context.Context, organizationID string) (map[string]int, error)
}

// StatsLedgerStore defines the ledger store interface needed by the stats projection.
type StatsLedgerStore interface {
	TotalAwarded(ctx context.Context, organizationID string) (int, error)
}

// PipelineStats summarises the referral funnel of an organization.
type PipelineStats struct {
	Total              int             `json:"total"`
	New                int             `json:"new"`
	Contacted          int             `json:"contacted"`
	Converted          int             `json:"converted"`
	ConversionRate     decimal.Decimal `json:"conversion_rate"` // percent, one decimal place
	TotalPointsAwarded int             `json:"total_points_awarded"`
}

// GetPipelineStatsDeps holds dependencies for GetPipelineStats.
type GetPipelineStatsDeps struct {
	Referrals StatsReferralStore
	Ledger    StatsLedgerStore
}

// QueryGetPipelineStats counts referrals per status and the points paid out.
// POST: ConversionRate is 0 when there are no referrals
// INVARIANT: Total = New + Contacted + Converted (legacy statuses are not counted)
func QueryGetPipelineStats(ctx context.Context, organizationID string, deps GetPipelineStatsDeps) (PipelineStats, error) {
	counts, err := deps.Referrals.CountByStatus(ctx, organizationID)
	if err != nil {
		return PipelineStats{}, err
	}
	total, err := deps.Ledger.TotalAwarded(ctx, organizationID)
	if err != nil {
		return PipelineStats{}, err
	}

	s := PipelineStats{
		New:                counts[referral.StatusNew],
		Contacted:          counts[referral.StatusContacted],
		Converted:          counts[referral.StatusConverted],
		ConversionRate:     decimal.Zero,
		TotalPointsAwarded: total,
	}
	s.Total = s.New + s.Contacted + s.Converted
	if s.Total > 0 {
		s.ConversionRate = decimal.NewFromInt(int64(s.Converted)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Round(1)
	}
	return s, nil
}
