package web

import "net/http"

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/csrf", handleCSRFToken)
	mux.HandleFunc("POST /api/login", handleLogin)
	mux.HandleFunc("POST /api/logout", handleLogout)
	mux.HandleFunc("GET /api/me", authed(handleMe))

	mux.HandleFunc("GET /api/referrals", authed(handleListReferrals))
	mux.HandleFunc("POST /api/referrals", authed(handleRegisterReferral))
	mux.HandleFunc("POST /api/referrals/via-lead", authed(handleRegisterViaLead))
	mux.HandleFunc("GET /api/referrals/{id}", authed(handleGetReferral))
	mux.HandleFunc("PATCH /api/referrals/{id}", authed(handleUpdateReferral))
	mux.HandleFunc("DELETE /api/referrals/{id}", authed(handleDeleteReferral))
	mux.HandleFunc("POST /api/referrals/{id}/contacted", authed(handleMarkContacted))
	mux.HandleFunc("DELETE /api/referrals/{id}/contacted", authed(handleUndoContacted))
	mux.HandleFunc("POST /api/referrals/{id}/conversion", authed(handleConfirmConversion))
	mux.HandleFunc("DELETE /api/referrals/{id}/conversion", authed(handleUndoConversion))
	mux.HandleFunc("PUT /api/referrals/{id}/referring-lead", authed(handleLinkReferringLead))
	mux.HandleFunc("POST /api/referrals/{id}/whatsapp", authed(handleWhatsAppContact))
	mux.HandleFunc("GET /api/referrals/{id}/history", authed(handleReferralHistory))

	mux.HandleFunc("GET /api/rankings/profiles", authed(handleProfileRanking))
	mux.HandleFunc("GET /api/rankings/leads", authed(handleLeadRanking))
	mux.HandleFunc("GET /api/stats", authed(handleStats))

	mux.HandleFunc("GET /api/plans", authed(handleListPlans))
	mux.HandleFunc("PUT /api/plans/{id}/override", authed(handleSetPlanOverride))
	mux.HandleFunc("DELETE /api/plans/{id}/override", authed(handleClearPlanOverride))

	mux.HandleFunc("GET /api/settings/{key}", authed(handleGetSetting))
	mux.HandleFunc("PUT /api/settings/{key}", authed(handleReplaceSetting))
	mux.HandleFunc("POST /api/settings/{key}/reset", authed(handleResetSetting))

	mux.HandleFunc("GET /api/follow-ups", authed(handleFollowUps))
	mux.HandleFunc("POST /api/follow-ups/{id}/dismiss", authed(handleDismissFollowUp))

	mux.HandleFunc("GET /api/export/referrals.csv", authed(handleExportCSV))
	mux.HandleFunc("GET /api/export/referrals.xlsx", authed(handleExportXLSX))
	mux.HandleFunc("GET /api/export/referrals.json", authed(handleExportJSON))

	mux.HandleFunc("POST /api/team-members", authed(handleAddTeamMember))
	mux.HandleFunc("DELETE /api/team-members/{id}", authed(handleRemoveTeamMember))

	mux.HandleFunc("GET /api/perf", authed(handlePerf))
	mux.HandleFunc("GET /ws/notifications", authed(handleNotificationsWS))
}
