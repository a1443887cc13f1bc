package organization

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyName is returned when an organization has no name.
var ErrEmptyName = errors.New("organization name cannot be empty")

// Organization is a barbershop. Every profile and referral belongs to one.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Validate checks if the Organization has valid data.
func (o *Organization) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
