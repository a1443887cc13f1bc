package history

import (
	"encoding/json"
	"errors"
	"time"
)

// EventType identifies what happened to a referral.
type EventType string

const (
	EventCreated             EventType = "created"
	EventStatusChange        EventType = "status_change"
	EventTagChange           EventType = "tag_change"
	EventQualificationChange EventType = "qualification_change"
	EventNoteAdded           EventType = "note_added"
	EventWhatsAppContact     EventType = "whatsapp_contact"
	EventConversion          EventType = "conversion"
	EventReferringLeadChange EventType = "referring_lead_change"
)

// Domain errors
var (
	ErrEmptyReferralID = errors.New("history event must reference a referral")
	ErrInvalidType     = errors.New("unknown history event type")
)

// Event is one append-only entry in a referral's timeline.
type Event struct {
	ID            string    `json:"id"`
	ReferralID    string    `json:"referral_id"`
	Type          EventType `json:"event_type"`
	Data          string    `json:"event_data"` // JSON object
	CreatedByID   string    `json:"created_by_id"`
	CreatedByName string    `json:"created_by_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Actor attributes an event to a person.
type Actor struct {
	ID   string
	Name string
}

// NewEvent creates an event stamped with at.
// PRE: id and referralID are non-empty
// POST: Returns an Event with empty data payload
func NewEvent(id, referralID string, eventType EventType, actor Actor, at time.Time) Event {
	return Event{
		ID:            id,
		ReferralID:    referralID,
		Type:          eventType,
		Data:          "{}",
		CreatedByID:   actor.ID,
		CreatedByName: actor.Name,
		CreatedAt:     at,
	}
}

// WithData sets the JSON payload. Values that fail to marshal leave the
// payload unchanged.
func (e Event) WithData(data map[string]any) Event {
	b, err := json.Marshal(data)
	if err != nil {
		return e
	}
	e.Data = string(b)
	return e
}

// DataMap decodes the payload.
func (e Event) DataMap() (map[string]any, error) {
	out := map[string]any{}
	if e.Data == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(e.Data), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the event before it is appended.
// PRE: Event is populated
// POST: Returns nil if the event can be stored
func (e *Event) Validate() error {
	if e.ReferralID == "" {
		return ErrEmptyReferralID
	}
	if !IsValidType(e.Type) {
		return ErrInvalidType
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.Data == "" {
		e.Data = "{}"
	}
	return nil
}

// IsValidType reports whether t is a known event type.
func IsValidType(t EventType) bool {
	switch t {
	case EventCreated, EventStatusChange, EventTagChange, EventQualificationChange,
		EventNoteAdded, EventWhatsAppContact, EventConversion, EventReferringLeadChange:
		return true
	}
	return false
}
