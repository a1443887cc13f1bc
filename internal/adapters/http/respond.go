package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"growthgame/internal/adapters/http/middleware"
	"growthgame/internal/application/orchestrators"
	"growthgame/internal/application/projections"
	"growthgame/internal/domain/ledger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// principalHandler is a handler that needs an authenticated caller.
type principalHandler func(w http.ResponseWriter, r *http.Request, p orchestrators.Principal)

// authed rejects anonymous requests with 401 and hands the caller to h.
func authed(h principalHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.GetIdentity(r.Context())
		if !ok {
			writeError(w, orchestrators.ErrUnauthorized)
			return
		}
		h(w, r, orchestrators.Principal{
			ProfileID:      id.ProfileID,
			OrganizationID: id.OrganizationID,
			Name:           id.Name,
			Role:           id.Role,
		})
	}
}

// strictDecode decodes a JSON body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

// writeSuccess answers {"success": true} plus fields.
func writeSuccess(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// badRequest answers a malformed request.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": msg})
}

// statusFor maps the use case error taxonomy to HTTP statuses. Errors outside
// the taxonomy are validation failures.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrators.ErrUnauthorized), errors.Is(err, orchestrators.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, orchestrators.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orchestrators.ErrNotFound), errors.Is(err, projections.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrators.ErrInvalidPlan):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orchestrators.ErrAlreadyConverted),
		errors.Is(err, orchestrators.ErrInvalidTransition),
		errors.Is(err, orchestrators.ErrReferralCycle),
		errors.Is(err, orchestrators.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, orchestrators.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, orchestrators.ErrWriteFailed), errors.Is(err, ledger.ErrStaleStatus):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// writeError answers {"success": false, "error": ...}. Write failures are
// logged and reported with a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("internal_error", "error", err.Error())
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// internalError logs err and answers 500 without leaking details.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal server error"})
}
