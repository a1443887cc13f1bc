package web

import (
	"net/http"

	"growthgame/internal/adapters/realtime"
	"growthgame/internal/application/orchestrators"
)

type addTeamMemberRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// handleAddTeamMember handles POST /api/team-members.
// POST: 201 with the new profile; the invite email is best effort
func handleAddTeamMember(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var in addTeamMemberRequest
	if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}
	member, err := orchestrators.ExecuteAddTeamMember(r.Context(), orchestrators.AddTeamMemberInput{
		Actor:    p,
		Email:    in.Email,
		FullName: in.FullName,
		Phone:    in.Phone,
		Role:     in.Role,
		Password: in.Password,
	}, orchestrators.AddTeamMemberDeps{
		Team:          stores.Team,
		Organizations: stores.Organizations,
		Mailer:        services.Mailer,
		AppURL:        options.AppURL,
		RetryDelay:    options.TeamRetryDelay,
		Now:           timeNow,
		GenerateID:    generateID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{
		"profile": map[string]any{
			"id":        member.ID,
			"full_name": member.FullName,
			"email":     member.Email,
			"phone":     member.Phone,
			"role":      member.Role,
		},
	})
}

// handleRemoveTeamMember handles DELETE /api/team-members/{id}.
func handleRemoveTeamMember(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	err := orchestrators.ExecuteRemoveTeamMember(r.Context(), orchestrators.RemoveTeamMemberInput{
		Actor:    p,
		TargetID: r.PathValue("id"),
	}, orchestrators.RemoveTeamMemberDeps{Team: stores.Team, Profiles: stores.Profiles})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// handleNotificationsWS handles GET /ws/notifications. The connection
// receives follow-up reminders addressed to the caller.
func handleNotificationsWS(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	if services.Hub == nil {
		http.Error(w, "notifications unavailable", http.StatusServiceUnavailable)
		return
	}
	realtime.Serve(w, r, upgrader, services.Hub, p.ProfileID)
}
