package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"growthgame/internal/application/overlay"
	"growthgame/internal/domain/setting"
)

// SettingsDeps holds dependencies for the overlay settings use cases.
type SettingsDeps struct {
	Overlays *overlay.Manager
}

// settingDocument resolves key to the caller's document. Organization keys
// need an admin to write; the dismissal list belongs to the caller.
func settingDocument(ctx context.Context, actor Principal, key string, write bool, overlays *overlay.Manager) (overlay.Document, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	if key == setting.KeyDismissedNotifications {
		return overlays.Dismissals(ctx, actor.ProfileID)
	}
	if !setting.IsOrganizationKey(key) {
		return nil, fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	if write && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	org, err := overlays.Organization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	doc, _ := org.Document(key)
	return doc, nil
}

// ExecuteGetSetting returns the JSON document of an overlay.
// PRE: key is an organization key or dismissed_notifications
// POST: returns the current in-memory list, defaults included
func ExecuteGetSetting(ctx context.Context, actor Principal, key string, deps SettingsDeps) ([]byte, error) {
	doc, err := settingDocument(ctx, actor, key, false, deps.Overlays)
	if err != nil {
		return nil, err
	}
	return doc.JSON()
}

// ReplaceSettingInput carries input for ReplaceSetting.
type ReplaceSettingInput struct {
	Actor Principal
	Key   string
	Value []byte
}

// ExecuteReplaceSetting swaps an overlay list for the decoded document.
// PRE: caller is owner or admin for organization keys
// POST: the list equals Value and a debounced write is scheduled, or the list
// is unchanged on error
func ExecuteReplaceSetting(ctx context.Context, input ReplaceSettingInput, deps SettingsDeps) ([]byte, error) {
	doc, err := settingDocument(ctx, input.Actor, input.Key, true, deps.Overlays)
	if err != nil {
		return nil, err
	}
	if err := doc.ReplaceJSON(input.Value); err != nil {
		return nil, err
	}
	slog.Info("setting_event", "event", "setting_replaced", "key", input.Key, "by", input.Actor.ProfileID)
	return doc.JSON()
}

// ExecuteResetSetting restores an overlay to its built-in defaults.
// PRE: caller is owner or admin for organization keys
// POST: the list equals its defaults and a debounced write is scheduled
func ExecuteResetSetting(ctx context.Context, actor Principal, key string, deps SettingsDeps) ([]byte, error) {
	doc, err := settingDocument(ctx, actor, key, true, deps.Overlays)
	if err != nil {
		return nil, err
	}
	doc.Reset()
	slog.Info("setting_event", "event", "setting_reset", "key", key, "by", actor.ProfileID)
	return doc.JSON()
}

// DismissFollowUpInput carries input for DismissFollowUp.
type DismissFollowUpInput struct {
	Actor      Principal
	ReferralID string
}

// DismissFollowUpDeps holds dependencies for DismissFollowUp.
type DismissFollowUpDeps struct {
	Referrals ReferralReader
	Overlays  *overlay.Manager
	Now       func() time.Time
}

// ExecuteDismissFollowUp hides a referral's follow-up from the caller's
// notifications. Dismissing twice keeps the first timestamp.
// PRE: referral exists in the caller's organization
// POST: the caller's dismissal list contains ReferralID
func ExecuteDismissFollowUp(ctx context.Context, input DismissFollowUpInput, deps DismissFollowUpDeps) error {
	if !input.Actor.Authenticated() {
		return ErrUnauthorized
	}
	if _, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID); err != nil {
		return err
	}
	list, err := deps.Overlays.Dismissals(ctx, input.Actor.ProfileID)
	if err != nil {
		return err
	}
	if _, ok := list.Get(input.ReferralID); ok {
		return nil
	}
	if err := list.Add(setting.Dismissal{ReferralID: input.ReferralID, DismissedAt: deps.Now()}); err != nil {
		return err
	}
	slog.Info("referral_event", "event", "follow_up_dismissed", "referral_id", input.ReferralID, "by", input.Actor.ProfileID)
	return nil
}
