package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"growthgame/internal/application/orchestrators"
	"growthgame/internal/domain/plan"
)

func overlayPlans() orchestrators.OverlayPlans {
	return orchestrators.OverlayPlans{Catalog: services.Catalog, Overlays: services.Overlays}
}

// handleListPlans handles GET /api/plans. Overrides are merged in and
// inactive plans are included.
func handleListPlans(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	plans, err := overlayPlans().Plans(r.Context(), p.OrganizationID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

// handleSetPlanOverride handles PUT /api/plans/{id}/override.
func handleSetPlanOverride(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	var override plan.Override
	if err := strictDecode(w, r, &override); err != nil {
		badRequest(w, "invalid request")
		return
	}
	merged, err := orchestrators.ExecuteSetPlanOverride(r.Context(), orchestrators.PlanOverrideInput{
		Actor:    p,
		PlanID:   r.PathValue("id"),
		Override: override,
	}, orchestrators.PlanOverrideDeps{Catalog: services.Catalog, Overlays: services.Overlays})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"plan": merged})
}

// handleClearPlanOverride handles DELETE /api/plans/{id}/override.
func handleClearPlanOverride(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	err := orchestrators.ExecuteClearPlanOverride(r.Context(), p, r.PathValue("id"),
		orchestrators.PlanOverrideDeps{Catalog: services.Catalog, Overlays: services.Overlays})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// writeSetting answers a settings document as {"key": ..., "value": ...}.
func writeSetting(w http.ResponseWriter, key string, value []byte) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"key":   key,
		"value": json.RawMessage(value),
	})
}

// handleGetSetting handles GET /api/settings/{key}.
func handleGetSetting(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	key := r.PathValue("key")
	value, err := orchestrators.ExecuteGetSetting(r.Context(), p, key, orchestrators.SettingsDeps{Overlays: services.Overlays})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSetting(w, key, value)
}

// handleReplaceSetting handles PUT /api/settings/{key}. The body is the whole
// new document.
func handleReplaceSetting(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"success": false, "error": "request too large"})
			return
		}
		badRequest(w, "invalid request")
		return
	}
	key := r.PathValue("key")
	value, err := orchestrators.ExecuteReplaceSetting(r.Context(), orchestrators.ReplaceSettingInput{
		Actor: p,
		Key:   key,
		Value: body,
	}, orchestrators.SettingsDeps{Overlays: services.Overlays})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSetting(w, key, value)
}

// handleResetSetting handles POST /api/settings/{key}/reset.
func handleResetSetting(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	key := r.PathValue("key")
	value, err := orchestrators.ExecuteResetSetting(r.Context(), p, key, orchestrators.SettingsDeps{Overlays: services.Overlays})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSetting(w, key, value)
}
