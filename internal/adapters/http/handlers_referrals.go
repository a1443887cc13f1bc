package web

import (
	"net/http"

	"growthgame/internal/application/listutil"
	"growthgame/internal/application/orchestrators"
	"growthgame/internal/application/projections"
)

// handleListReferrals handles GET /api/referrals.
// Query: page, per_page, q, status, tag, contact_tag, referrer_id.
func handleListReferrals(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	params := listutil.ParseListParams(r.URL.Query(), projections.ReferralListFilterKeys)
	result, err := projections.QueryGetReferralList(r.Context(), projections.GetReferralListQuery{
		OrganizationID: p.OrganizationID,
		Params:         params,
	}, projections.GetReferralListDeps{Referrals: stores.Referrals})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type registerReferralRequest struct {
	ReferrerID   string `json:"referrer_id"` // defaults to the caller
	ReferrerName string `json:"referrer_name"`
	LeadName     string `json:"lead_name"`
	LeadPhone    string `json:"lead_phone"`
}

// handleRegisterReferral handles POST /api/referrals.
// POST: 201 with the new referral id and the bonus credited
func handleRegisterReferral(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var in registerReferralRequest
	if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}
	if in.ReferrerID == "" {
		in.ReferrerID = p.ProfileID
	}
	res, err := orchestrators.ExecuteRegisterReferral(r.Context(), orchestrators.RegisterReferralInput{
		Actor:        p,
		ReferrerID:   in.ReferrerID,
		ReferrerName: in.ReferrerName,
		LeadName:     in.LeadName,
		LeadPhone:    in.LeadPhone,
	}, orchestrators.RegisterReferralDeps{
		Profiles:    stores.Profiles,
		Ledger:      stores.Ledger,
		BonusPoints: options.BonusPoints,
		Now:         timeNow,
		GenerateID:  generateID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{
		"referral_id":    res.ReferralID,
		"points_awarded": res.PointsAwarded,
	})
}

type registerViaLeadRequest struct {
	ReferringLeadID string `json:"referring_lead_id"`
	LeadName        string `json:"lead_name"`
	LeadPhone       string `json:"lead_phone"`
}

// handleRegisterViaLead handles POST /api/referrals/via-lead.
func handleRegisterViaLead(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var in registerViaLeadRequest
	if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}
	res, err := orchestrators.ExecuteRegisterViaLead(r.Context(), orchestrators.RegisterViaLeadInput{
		Actor:           p,
		CreatorID:       p.ProfileID,
		ReferringLeadID: in.ReferringLeadID,
		LeadName:        in.LeadName,
		LeadPhone:       in.LeadPhone,
	}, orchestrators.RegisterViaLeadDeps{
		Referrals:   stores.Referrals,
		Profiles:    stores.Profiles,
		Ledger:      stores.Ledger,
		BonusPoints: options.BonusPoints,
		Now:         timeNow,
		GenerateID:  generateID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{
		"referral_id":    res.ReferralID,
		"points_awarded": res.PointsAwarded,
	})
}

func referralDetail(r *http.Request, p orchestrators.Principal) (projections.GetReferralDetailResult, error) {
	return projections.QueryGetReferralDetail(r.Context(), projections.GetReferralDetailQuery{
		OrganizationID: p.OrganizationID,
		ReferralID:     r.PathValue("id"),
	}, projections.GetReferralDetailDeps{
		Referrals: stores.Referrals,
		History:   stores.History,
		Ledger:    stores.Ledger,
	})
}

// handleGetReferral handles GET /api/referrals/{id}.
func handleGetReferral(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	detail, err := referralDetail(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleReferralHistory handles GET /api/referrals/{id}/history.
func handleReferralHistory(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	detail, err := referralDetail(r, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": detail.Timeline})
}

type updateReferralRequest struct {
	LeadName     *string   `json:"lead_name"`
	LeadPhone    *string   `json:"lead_phone"`
	Notes        *string   `json:"notes"`
	Tags         *[]string `json:"tags"`
	ContactTag   *string   `json:"contact_tag"`
	FollowUpDate *string   `json:"follow_up_date"`
	FollowUpNote *string   `json:"follow_up_note"`
	IsClient     *bool     `json:"is_client"`
}

// handleUpdateReferral handles PATCH /api/referrals/{id}. Absent fields are
// left unchanged.
func handleUpdateReferral(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var in updateReferralRequest
	if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}
	updated, err := orchestrators.ExecuteUpdateReferral(r.Context(), orchestrators.UpdateReferralInput{
		Actor:      p,
		ReferralID: r.PathValue("id"),
		Patch: orchestrators.ReferralPatch{
			LeadName:     in.LeadName,
			LeadPhone:    in.LeadPhone,
			Notes:        in.Notes,
			Tags:         in.Tags,
			ContactTag:   in.ContactTag,
			FollowUpDate: in.FollowUpDate,
			FollowUpNote: in.FollowUpNote,
			IsClient:     in.IsClient,
		},
	}, orchestrators.UpdateReferralDeps{
		Referrals:  stores.Referrals,
		TagExists:  orchestrators.OverlayTagExists(r.Context(), services.Overlays),
		Now:        timeNow,
		GenerateID: generateID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"referral": projections.NewReferralView(updated)})
}

// handleDeleteReferral handles DELETE /api/referrals/{id}. Owners and admins only.
func handleDeleteReferral(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	err := orchestrators.ExecuteDeleteReferral(r.Context(), orchestrators.DeleteReferralInput{
		Actor:      p,
		ReferralID: r.PathValue("id"),
	}, orchestrators.DeleteReferralDeps{Referrals: stores.Referrals})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func contactDeps() orchestrators.ContactStatusDeps {
	return orchestrators.ContactStatusDeps{
		Referrals:  stores.Referrals,
		Ledger:     stores.Ledger,
		Now:        timeNow,
		GenerateID: generateID,
	}
}

// handleMarkContacted handles POST /api/referrals/{id}/contacted.
func handleMarkContacted(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	in := orchestrators.ContactStatusInput{Actor: p, ReferralID: r.PathValue("id")}
	if err := orchestrators.ExecuteMarkContacted(r.Context(), in, contactDeps()); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"status": "contacted"})
}

// handleUndoContacted handles DELETE /api/referrals/{id}/contacted.
func handleUndoContacted(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	in := orchestrators.ContactStatusInput{Actor: p, ReferralID: r.PathValue("id")}
	if err := orchestrators.ExecuteUndoContacted(r.Context(), in, contactDeps()); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"status": "new"})
}

type conversionRequest struct {
	PlanID string `json:"plan_id"`
}

// handleConfirmConversion handles POST /api/referrals/{id}/conversion.
// POST: 200 with the points credited; 409 when already converted
func handleConfirmConversion(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var in conversionRequest
	if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}
	res, err := orchestrators.ExecuteConfirmConversion(r.Context(), orchestrators.ConfirmConversionInput{
		Actor:      p,
		ReferralID: r.PathValue("id"),
		PlanID:     in.PlanID,
	}, orchestrators.ConfirmConversionDeps{
		Referrals:         stores.Referrals,
		Ledger:            stores.Ledger,
		Plans:             overlayPlans(),
		Now:               timeNow,
		GenerateID:        generateID,
		StaffSharePercent: options.StaffSharePercent,
		ApplyStaffShare:   options.ApplyStaffShare,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"points_awarded": res.PointsAwarded,
		"staff_share":    res.StaffShare,
		"plan_id":        res.PlanID,
		"plan_name":      res.PlanName,
	})
}

// handleUndoConversion handles DELETE /api/referrals/{id}/conversion.
// Points already credited stay.
func handleUndoConversion(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	err := orchestrators.ExecuteUndoConversion(r.Context(), orchestrators.UndoConversionInput{
		Actor:      p,
		ReferralID: r.PathValue("id"),
	}, orchestrators.UndoConversionDeps{
		Referrals:  stores.Referrals,
		Ledger:     stores.Ledger,
		Now:        timeNow,
		GenerateID: generateID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"status": "contacted"})
}

type referringLeadRequest struct {
	LeadID string `json:"lead_id"` // empty clears the link
}

// handleLinkReferringLead handles PUT /api/referrals/{id}/referring-lead.
func handleLinkReferringLead(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var in referringLeadRequest
	if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}
	err := orchestrators.ExecuteLinkReferringLead(r.Context(), orchestrators.LinkReferringLeadInput{
		Actor:      p,
		ReferralID: r.PathValue("id"),
		LeadID:     in.LeadID,
	}, orchestrators.LinkReferringLeadDeps{
		Referrals:  stores.Referrals,
		Now:        timeNow,
		GenerateID: generateID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"referred_by_lead_id": in.LeadID})
}

type whatsAppRequest struct {
	TemplateID string `json:"template_id"`
}

// handleWhatsAppContact handles POST /api/referrals/{id}/whatsapp.
// POST: returns the rendered message and its wa.me link
func handleWhatsAppContact(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var in whatsAppRequest
	if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}
	contact, err := orchestrators.ExecuteRecordWhatsAppContact(r.Context(), orchestrators.WhatsAppContactInput{
		Actor:      p,
		ReferralID: r.PathValue("id"),
		TemplateID: in.TemplateID,
	}, orchestrators.WhatsAppContactDeps{
		Referrals:     stores.Referrals,
		History:       stores.History,
		Templates:     orchestrators.OverlayTemplates{Overlays: services.Overlays},
		Organizations: stores.Organizations,
		Now:           timeNow,
		GenerateID:    generateID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"contact": contact})
}
