package orchestrators

import (
	"growthgame/internal/domain/history"
	"growthgame/internal/domain/profile"
)

// Principal is the authenticated caller of a use case.
type Principal struct {
	ProfileID      string
	OrganizationID string
	Name           string
	Role           string
}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.ProfileID != ""
}

// IsAdmin reports whether the principal may manage the team and settings.
func (p Principal) IsAdmin() bool {
	return profile.IsAdminRole(p.Role)
}

// Actor attributes history events to the principal.
func (p Principal) Actor() history.Actor {
	return history.Actor{ID: p.ProfileID, Name: p.Name}
}

// requireAdmin returns ErrUnauthorized or ErrForbidden unless p is an
// authenticated owner or admin.
func requireAdmin(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
