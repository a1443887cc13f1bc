package projections

import (
	"context"
	"fmt"

	referralStore "growthgame/internal/adapters/storage/referral"
	"growthgame/internal/domain/profile"
)

// RankingProfileStore defines the profile store interface needed by the ranking projection.
type RankingProfileStore interface {
	Ranking(ctx context.Context, organizationID, role string) ([]profile.Profile, error)
}

// RankingLeadStore defines the referral store interface needed by the lead ranking.
type RankingLeadStore interface {
	LeadRanking(ctx context.Context, organizationID string) ([]referralStore.LeadRank, error)
}

// GetProfileRankingQuery carries query parameters.
type GetProfileRankingQuery struct {
	OrganizationID string
	Role           string // empty ranks every role
	Limit          int    // 0 returns everyone
}

// RankedProfile is one row of the profile leaderboard.
type RankedProfile struct {
	Position       int    `json:"position"`
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	LifetimePoints int    `json:"lifetime_points"`
	WalletBalance  int    `json:"wallet_balance"`
}

// GetProfileRankingDeps holds dependencies for GetProfileRanking.
type GetProfileRankingDeps struct {
	Profiles RankingProfileStore
}

// QueryGetProfileRanking ranks profiles by lifetime points.
// PRE: query.Role is empty or a valid role
// POST: Rows are ordered by lifetime_points desc, id asc; Position starts at 1
func QueryGetProfileRanking(ctx context.Context, query GetProfileRankingQuery, deps GetProfileRankingDeps) ([]RankedProfile, error) {
	if query.Role != "" && !profile.IsValidRole(query.Role) {
		return nil, fmt.Errorf("%w: %q", profile.ErrInvalidRole, query.Role)
	}
	profiles, err := deps.Profiles.Ranking(ctx, query.OrganizationID, query.Role)
	if err != nil {
		return nil, err
	}
	if query.Limit > 0 && len(profiles) > query.Limit {
		profiles = profiles[:query.Limit]
	}
	out := make([]RankedProfile, 0, len(profiles))
	for i, p := range profiles {
		out = append(out, RankedProfile{
			Position:       i + 1,
			ID:             p.ID,
			FullName:       p.FullName,
			Role:           p.Role,
			LifetimePoints: p.LifetimePoints,
			WalletBalance:  p.WalletBalance,
		})
	}
	return out, nil
}

// RankedLead is one row of the lead leaderboard.
type RankedLead struct {
	Position int `json:"position"`
	referralStore.LeadRank
}

// GetLeadRankingDeps holds dependencies for GetLeadRanking.
type GetLeadRankingDeps struct {
	Referrals RankingLeadStore
}

// QueryGetLeadRanking ranks leads that earned points or referred others.
// POST: Rows are ordered by lead_points desc, id asc; idle leads are omitted
func QueryGetLeadRanking(ctx context.Context, organizationID string, limit int, deps GetLeadRankingDeps) ([]RankedLead, error) {
	rows, err := deps.Referrals.LeadRanking(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]RankedLead, 0, len(rows))
	for i, r := range rows {
		out = append(out, RankedLead{Position: i + 1, LeadRank: r})
	}
	return out, nil
}
