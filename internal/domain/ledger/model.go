package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"growthgame/internal/domain/history"
	"growthgame/internal/domain/referral"
)

// BeneficiaryKind says which counter an award moves.
type BeneficiaryKind string

const (
	BeneficiaryProfile BeneficiaryKind = "profile" // wallet_balance + lifetime_points
	BeneficiaryLead    BeneficiaryKind = "lead"    // referrals.lead_points
)

// Reason says why points were awarded.
type Reason string

const (
	ReasonRegistrationBonus Reason = "registration_bonus"
	ReasonConversion        Reason = "conversion"
	ReasonStaffShare        Reason = "staff_share"
)

// Domain errors
var (
	ErrStaleStatus         = errors.New("referral status changed concurrently")
	ErrBeneficiaryNotFound = errors.New("award beneficiary not found")
	ErrInvalidAward        = errors.New("award must name a beneficiary and a positive amount")
	ErrReferralNotFound    = errors.New("referral not found")
	ErrMissingHistoryEvent = errors.New("mutation must carry a history event")
	ErrInvalidSharePercent = errors.New("share percent must be between 0 and 100")
)

// Award credits Points to one beneficiary. Exactly one award per
// (Reason, ReferralID) is ever applied.
type Award struct {
	Kind          BeneficiaryKind
	BeneficiaryID string
	Reason        Reason
	Points        int
}

// Validate checks the award before it is applied.
func (a Award) Validate() error {
	if a.BeneficiaryID == "" || a.Points <= 0 {
		return ErrInvalidAward
	}
	if a.Kind != BeneficiaryProfile && a.Kind != BeneficiaryLead {
		return ErrInvalidAward
	}
	return nil
}

// IdempotencyKey is the unique ledger key for an award on a referral.
func IdempotencyKey(reason Reason, referralID string) string {
	return fmt.Sprintf("%s:%s", reason, referralID)
}

// Entry is one immutable row of the points ledger.
type Entry struct {
	ID             string
	OrganizationID string
	ReferralID     string
	Kind           BeneficiaryKind
	BeneficiaryID  string
	Reason         Reason
	Points         int
	IdempotencyKey string
	CreatedAt      time.Time
}

// Mutation is a single atomic change to a referral: the new row state, the
// points it awards and the history event describing it.
//
// When Create is true the whole row is inserted. Otherwise only status and
// converted plan are written, and only if the stored status still equals
// ExpectStatus. Awards whose idempotency key already exists are skipped.
type Mutation struct {
	Referral     referral.Referral
	Create       bool
	ExpectStatus string
	Awards       []Award
	Event        history.Event
	EntryIDs     []string // ids for the ledger rows, parallel to Awards
	At           time.Time
}

// Validate checks the mutation is internally consistent.
// PRE: Mutation is populated
// POST: Returns nil if the store may apply it
func (m *Mutation) Validate() error {
	validate := m.Referral.Validate
	if m.Create {
		validate = m.Referral.ValidateNew
	}
	if err := validate(); err != nil {
		return err
	}
	if !m.Create && m.ExpectStatus == "" {
		return errors.New("update mutation must name the expected status")
	}
	if m.Event.ID == "" {
		return ErrMissingHistoryEvent
	}
	if err := m.Event.Validate(); err != nil {
		return err
	}
	if len(m.EntryIDs) != len(m.Awards) {
		return errors.New("each award needs a ledger entry id")
	}
	for _, a := range m.Awards {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Result reports what a mutation actually applied.
type Result struct {
	PointsAwarded int // sum over Entries
	Entries       []Entry
}

// StaffShare computes round_half_up(points * percent / 100).
// PRE: 0 <= percent <= 100
// POST: Returns the share in whole points
func StaffShare(points int, percent decimal.Decimal) (int, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return 0, ErrInvalidSharePercent
	}
	share := decimal.NewFromInt(int64(points)).Mul(percent).Div(decimal.NewFromInt(100)).Round(0)
	return int(share.IntPart()), nil
}
