package referral

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength  = 120
	MaxNotesLength = 4000
)

// Status constants. A referral moves new -> contacted -> converted and can
// be walked back one step at a time.
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusConverted = "converted"
)

// Legacy status values still present in the database enum. They are never
// written and are rejected when read back into a transition.
const (
	legacyStatusCliente = "cliente"
	legacyStatusClient  = "client"
)

// Contact tag constants (lead qualification).
const (
	ContactTagNone = ""
	ContactTagHot  = "hot"
	ContactTagWarm = "warm"
	ContactTagCold = "cold"
)

// MaxChainDepth bounds how far a lead-refers-lead chain is walked.
const MaxChainDepth = 32

// Domain errors
var (
	ErrEmptyLeadName      = errors.New("lead name cannot be empty")
	ErrEmptyLeadPhone     = errors.New("lead phone cannot be empty")
	ErrInvalidStatus      = errors.New("status must be 'new', 'contacted', or 'converted'")
	ErrDeprecatedStatus   = errors.New("status value is deprecated")
	ErrInvalidContactTag  = errors.New("contact tag must be 'hot', 'warm', 'cold' or empty")
	ErrPlanStatusMismatch = errors.New("converted plan must be set if and only if status is converted")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAlreadyConverted   = errors.New("referral is already converted")
	ErrNotConverted       = errors.New("referral is not converted")
	ErrNoReferrer         = errors.New("referral must have a referrer profile or a referring lead")
	ErrSelfReferral       = errors.New("a referral cannot refer itself")
	ErrChainCycle         = errors.New("referring lead chain contains a cycle")
	ErrChainTooDeep       = errors.New("referring lead chain is too deep")
	ErrInvalidFollowUp    = errors.New("follow-up date must be YYYY-MM-DD")
)

// Referral is a lead in the pipeline. It can itself act as the referrer of
// other referrals through ReferredByLeadID.
type Referral struct {
	ID               string
	OrganizationID   string
	ReferrerID       string // profile credited (or creator, on the lead path)
	ReferrerName     string // denormalised for display
	ReferredByLeadID string
	LeadName         string
	LeadPhone        string
	Status           string
	LeadPoints       int
	ConvertedPlanID  string
	ContactTag       string
	Notes            string
	FollowUpDate     string // YYYY-MM-DD
	FollowUpNote     string
	Tags             []string
	IsClient         bool
	ClientSince      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks if the Referral has valid data.
// PRE: Referral struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: ConvertedPlanID is non-empty iff Status is converted
func (r *Referral) Validate() error {
	if strings.TrimSpace(r.LeadName) == "" {
		return ErrEmptyLeadName
	}
	if len(r.LeadName) > MaxNameLength {
		return errors.New("lead name cannot exceed 120 characters")
	}
	if strings.TrimSpace(r.LeadPhone) == "" {
		return ErrEmptyLeadPhone
	}
	if len(r.Notes) > MaxNotesLength {
		return errors.New("notes cannot exceed 4000 characters")
	}
	if err := ValidateStatus(r.Status); err != nil {
		return err
	}
	if !IsValidContactTag(r.ContactTag) {
		return ErrInvalidContactTag
	}
	if (r.ConvertedPlanID != "") != (r.Status == StatusConverted) {
		return ErrPlanStatusMismatch
	}
	if r.ReferredByLeadID != "" && r.ReferredByLeadID == r.ID {
		return ErrSelfReferral
	}
	if r.FollowUpDate != "" {
		if _, err := time.Parse("2006-01-02", r.FollowUpDate); err != nil {
			return ErrInvalidFollowUp
		}
	}
	return nil
}

// ValidateNew checks a referral about to be created. Existing rows may lose
// their referrer when the profile is deleted; new rows must name one.
func (r *Referral) ValidateNew() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ReferrerID == "" && r.ReferredByLeadID == "" {
		return ErrNoReferrer
	}
	return nil
}

// ValidateStatus reports whether s is a writable status.
func ValidateStatus(s string) error {
	switch s {
	case StatusNew, StatusContacted, StatusConverted:
		return nil
	case legacyStatusCliente, legacyStatusClient:
		return ErrDeprecatedStatus
	default:
		return ErrInvalidStatus
	}
}

// IsValidContactTag reports whether tag is a known qualification value.
func IsValidContactTag(tag string) bool {
	switch tag {
	case ContactTagNone, ContactTagHot, ContactTagWarm, ContactTagCold:
		return true
	}
	return false
}

// IsConverted returns true if the referral has been sold a plan.
func (r *Referral) IsConverted() bool {
	return r.Status == StatusConverted
}

// IsLeadPath returns true if the points for this referral go to another lead.
func (r *Referral) IsLeadPath() bool {
	return r.ReferredByLeadID != ""
}

// MarkContacted moves a new referral to contacted.
// PRE: Status is new
// POST: Status is contacted
func (r *Referral) MarkContacted() error {
	if r.Status != StatusNew {
		return ErrInvalidTransition
	}
	r.Status = StatusContacted
	return nil
}

// UndoContacted moves a contacted referral back to new.
// PRE: Status is contacted
// POST: Status is new
func (r *Referral) UndoContacted() error {
	if r.Status != StatusContacted {
		return ErrInvalidTransition
	}
	r.Status = StatusNew
	return nil
}

// Convert records the sale of planID.
// PRE: Status is new or contacted, planID is non-empty
// POST: Status is converted, ConvertedPlanID is planID
func (r *Referral) Convert(planID string) error {
	if r.Status == StatusConverted {
		return ErrAlreadyConverted
	}
	if err := ValidateStatus(r.Status); err != nil {
		return err
	}
	if planID == "" {
		return errors.New("plan id is required")
	}
	r.Status = StatusConverted
	r.ConvertedPlanID = planID
	return nil
}

// UndoConversion reverts a conversion. Awarded points are left untouched.
// PRE: Status is converted
// POST: Status is contacted, ConvertedPlanID is empty
func (r *Referral) UndoConversion() error {
	if r.Status != StatusConverted {
		return ErrNotConverted
	}
	r.Status = StatusContacted
	r.ConvertedPlanID = ""
	return nil
}

// SetClient flips the client flag, stamping or clearing ClientSince.
func (r *Referral) SetClient(isClient bool, now time.Time) {
	if isClient && !r.IsClient {
		r.ClientSince = now
	}
	if !isClient {
		r.ClientSince = time.Time{}
	}
	r.IsClient = isClient
}

// LeadLookup resolves the referring lead of a referral id.
type LeadLookup func(id string) (parentID string, err error)

// CheckChain verifies that making parentID the referring lead of id does not
// create a cycle.
// PRE: lookup returns the ReferredByLeadID of an existing referral
// POST: Returns nil if the chain ends without revisiting id
func CheckChain(id, parentID string, lookup LeadLookup) error {
	if parentID == "" {
		return nil
	}
	if parentID == id {
		return ErrSelfReferral
	}
	seen := map[string]bool{id: true}
	current := parentID
	for depth := 0; current != ""; depth++ {
		if depth >= MaxChainDepth {
			return ErrChainTooDeep
		}
		if seen[current] {
			return ErrChainCycle
		}
		seen[current] = true
		next, err := lookup(current)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// NormalizeTags trims, drops empties and de-duplicates tag ids, keeping order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
