package column

import (
	"errors"
	"strings"

	"growthgame/internal/domain/referral"
)

// Domain errors
var (
	ErrEmptyID       = errors.New("column id cannot be empty")
	ErrEmptyTitle    = errors.New("column title cannot be empty")
	ErrInvalidStatus = errors.New("column must map to a referral status")
)

// Column is one lane of the referral kanban board. Each lane shows the
// referrals in Status.
type Column struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Position int    `json:"position"`
	Color    string `json:"color,omitempty"`
}

// ItemID identifies the column in its list.
func (c Column) ItemID() string { return c.ID }

// Validate checks if the Column has valid data.
// PRE: Column struct is populated
// POST: Returns nil if valid, error otherwise
func (c Column) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}
	if referral.ValidateStatus(c.Status) != nil {
		return ErrInvalidStatus
	}
	return nil
}

// Defaults returns one lane per pipeline status.
func Defaults() []Column {
	return []Column{
		{ID: referral.StatusNew, Title: "Novos", Status: referral.StatusNew, Position: 0, Color: "#3b82f6"},
		{ID: referral.StatusContacted, Title: "Contatados", Status: referral.StatusContacted, Position: 1, Color: "#f59e0b"},
		{ID: referral.StatusConverted, Title: "Convertidos", Status: referral.StatusConverted, Position: 2, Color: "#10b981"},
	}
}
