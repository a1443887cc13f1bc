package web

import (
	"net/http"
	"strconv"
	"time"

	"growthgame/internal/application/orchestrators"
	"growthgame/internal/application/projections"
)

// perfWindow is how far back /api/perf aggregates.
const perfWindow = time.Hour

// queryLimit reads a non-negative ?limit=, 0 when absent or malformed.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// handleProfileRanking handles GET /api/rankings/profiles?role=&limit=.
func handleProfileRanking(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	ranked, err := projections.QueryGetProfileRanking(r.Context(), projections.GetProfileRankingQuery{
		OrganizationID: p.OrganizationID,
		Role:           r.URL.Query().Get("role"),
		Limit:          queryLimit(r),
	}, projections.GetProfileRankingDeps{Profiles: stores.Profiles})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": ranked})
}

// handleLeadRanking handles GET /api/rankings/leads?limit=.
func handleLeadRanking(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	ranked, err := projections.QueryGetLeadRanking(r.Context(), p.OrganizationID, queryLimit(r),
		projections.GetLeadRankingDeps{Referrals: stores.Referrals})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": ranked})
}

// handleStats handles GET /api/stats.
func handleStats(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	stats, err := projections.QueryGetPipelineStats(r.Context(), p.OrganizationID, projections.GetPipelineStatsDeps{
		Referrals: stores.Referrals,
		Ledger:    stores.Ledger,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleFollowUps handles GET /api/follow-ups. ?mine=1 keeps only the
// caller's own referrals.
func handleFollowUps(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	due, err := projections.QueryGetDueFollowUps(r.Context(), projections.GetDueFollowUpsQuery{
		OrganizationID: p.OrganizationID,
		ProfileID:      p.ProfileID,
		OnlyMine:       r.URL.Query().Get("mine") == "1",
		Now:            timeNow(),
	}, projections.GetDueFollowUpsDeps{
		Referrals:  stores.Referrals,
		Dismissals: services.Overlays,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"follow_ups": due})
}

// handleDismissFollowUp handles POST /api/follow-ups/{id}/dismiss.
func handleDismissFollowUp(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	err := orchestrators.ExecuteDismissFollowUp(r.Context(), orchestrators.DismissFollowUpInput{
		Actor:      p,
		ReferralID: r.PathValue("id"),
	}, orchestrators.DismissFollowUpDeps{
		Referrals: stores.Referrals,
		Overlays:  services.Overlays,
		Now:       timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// handlePerf handles GET /api/perf. Admins only.
func handlePerf(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	if !p.IsAdmin() {
		writeError(w, orchestrators.ErrForbidden)
		return
	}
	if services.Collector == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, services.Collector.Snapshot(timeNow().Add(-perfWindow), 10))
}
