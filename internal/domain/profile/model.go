package profile

import (
	"errors"
	"strings"
	"time"
)

// Role constants (app_role).
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleBarber = "barber"
	RoleClient = "client"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleOwner, RoleAdmin, RoleBarber, RoleClient}

// Domain errors
var (
	ErrEmptyName      = errors.New("profile name cannot be empty")
	ErrInvalidRole    = errors.New("role must be one of: owner, admin, barber, client")
	ErrNegativePoints = errors.New("points cannot be negative")
)

// Profile is a team member or client and their points wallet.
type Profile struct {
	ID             string
	OrganizationID string
	FullName       string
	Email          string
	Phone          string
	Role           string
	WalletBalance  int // spendable
	LifetimePoints int // monotonic, used for ranking
	CreatedAt      time.Time
}

// Validate checks if the Profile has valid data.
// PRE: Profile struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.FullName) == "" {
		return ErrEmptyName
	}
	if !IsValidRole(p.Role) {
		return ErrInvalidRole
	}
	if p.WalletBalance < 0 || p.LifetimePoints < 0 {
		return ErrNegativePoints
	}
	return nil
}

// IsValidRole reports whether role is a known app role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdminRole reports whether role may manage the team and configuration.
func IsAdminRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin
}

// Award credits points to both counters.
// PRE: points >= 0
// POST: WalletBalance and LifetimePoints grow by points
func (p *Profile) Award(points int) error {
	if points < 0 {
		return ErrNegativePoints
	}
	p.WalletBalance += points
	p.LifetimePoints += points
	return nil
}
