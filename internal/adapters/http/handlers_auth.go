package web

import (
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"growthgame/internal/adapters/http/middleware"
	"growthgame/internal/application/orchestrators"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/login.
// PRE: body carries email and password (JSON or form)
// POST: returns a signed bearer token for the profile; a form login also
// opens a cookie session
func handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	form := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
	if form {
		if err := r.ParseForm(); err != nil {
			badRequest(w, "invalid form submission")
			return
		}
		in.Email = r.FormValue("email")
		in.Password = r.FormValue("password")
	} else if err := strictDecode(w, r, &in); err != nil {
		badRequest(w, "invalid request")
		return
	}

	p, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    in.Email,
		Password: in.Password,
	}, orchestrators.LoginDeps{
		AccountStore: stores.Accounts,
		Profiles:     stores.Profiles,
		Now:          timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	token, exp, err := services.Tokens.Issue(middleware.Identity{
		ProfileID:      p.ProfileID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		Role:           p.Role,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	if form {
		middleware.SetSessionCookie(w, token, exp, options.SecureCookies)
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
		"profile":    principalJSON(p),
	})
}

// handleLogout handles POST /api/logout. It ends a cookie session; bearer
// tokens simply expire.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w, options.SecureCookies)
	writeSuccess(w, http.StatusOK, nil)
}

// handleCSRFToken handles GET /api/csrf. Cookie sessions and form posts send
// the token back in the X-CSRF-Token header or the gorilla.csrf.Token field.
func handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": csrf.Token(r)})
}

// handleMe handles GET /api/me.
func handleMe(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	writeJSON(w, http.StatusOK, principalJSON(p))
}

// handleHealth handles GET /healthz.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func principalJSON(p orchestrators.Principal) map[string]any {
	return map[string]any{
		"id":              p.ProfileID,
		"organization_id": p.OrganizationID,
		"name":            p.Name,
		"role":            p.Role,
	}
}
