package tag

import (
	"errors"
	"regexp"
	"strings"
)

// MaxNameLength bounds tag labels.
const MaxNameLength = 40

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Domain errors
var (
	ErrEmptyID      = errors.New("tag id cannot be empty")
	ErrEmptyName    = errors.New("tag name cannot be empty")
	ErrInvalidColor = errors.New("tag color must be #RRGGBB")
)

// Tag is a label that can be attached to referrals.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ItemID identifies the tag in its list.
func (t Tag) ItemID() string { return t.ID }

// Validate checks if the Tag has valid data.
// PRE: Tag struct is populated
// POST: Returns nil if valid, error otherwise
func (t Tag) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > MaxNameLength {
		return errors.New("tag name cannot exceed 40 characters")
	}
	if t.Color != "" && !colorPattern.MatchString(t.Color) {
		return ErrInvalidColor
	}
	return nil
}

// Defaults returns the tags a new organization starts with.
func Defaults() []Tag {
	return []Tag{
		{ID: "vip", Name: "VIP", Color: "#d4af37"},
		{ID: "primeira_visita", Name: "Primeira visita", Color: "#3b82f6"},
		{ID: "retorno", Name: "Retorno", Color: "#10b981"},
		{ID: "sem_resposta", Name: "Sem resposta", Color: "#9ca3af"},
	}
}
