package setting

import (
	"errors"
	"time"
)

// Setting keys stored in crm_settings.
const (
	KeyTags                   = "tags"
	KeyPlanOverrides          = "plan_overrides"
	KeyKanbanColumns          = "kanban_columns"
	KeyMessageTemplates       = "message_templates"
	KeyDismissedNotifications = "dismissed_notifications"
)

// OrganizationKeys are shared by everyone in an organization; the remaining
// keys are scoped to a single profile.
var OrganizationKeys = []string{KeyTags, KeyPlanOverrides, KeyKanbanColumns, KeyMessageTemplates}

// Domain errors
var (
	ErrUnknownKey   = errors.New("unknown setting key")
	ErrEmptyScope   = errors.New("setting scope is required")
	ErrInvalidValue = errors.New("setting value must be a JSON document")
)

// Setting is one persisted overlay document.
type Setting struct {
	ScopeID   string // organization id, or profile id for per-user keys
	Key       string
	Value     string // JSON
	UpdatedAt time.Time
}

// Validate checks the setting before it is stored.
// PRE: Setting is populated
// POST: Returns nil if the key is known and the scope set
func (s *Setting) Validate() error {
	if s.ScopeID == "" {
		return ErrEmptyScope
	}
	if !IsValidKey(s.Key) {
		return ErrUnknownKey
	}
	if s.Value == "" {
		return ErrInvalidValue
	}
	return nil
}

// IsValidKey reports whether key is a known overlay.
func IsValidKey(key string) bool {
	return IsOrganizationKey(key) || key == KeyDismissedNotifications
}

// IsOrganizationKey reports whether key is shared across an organization.
func IsOrganizationKey(key string) bool {
	for _, k := range OrganizationKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Dismissal records that a profile dismissed the follow-up notification of a
// referral.
type Dismissal struct {
	ReferralID  string    `json:"referral_id"`
	DismissedAt time.Time `json:"dismissed_at"`
}

// ItemID identifies the dismissal in its list.
func (d Dismissal) ItemID() string { return d.ReferralID }

// Validate checks the dismissal.
func (d Dismissal) Validate() error {
	if d.ReferralID == "" {
		return errors.New("dismissal must reference a referral")
	}
	return nil
}
