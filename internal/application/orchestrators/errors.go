package orchestrators

import (
	"database/sql"
	"errors"
	"fmt"

	"growthgame/internal/domain/ledger"
	"growthgame/internal/domain/plan"
	"growthgame/internal/domain/referral"
)

// Error taxonomy shared by every use case. Handlers map these to HTTP
// statuses; anything else is a validation error.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrAlreadyConverted  = errors.New("referral already converted")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReferralCycle     = errors.New("referring lead chain would contain a cycle")
	ErrWriteFailed       = errors.New("write failed")
	ErrUnauthorized      = errors.New("authentication required")
	ErrForbidden         = errors.New("not allowed")
	ErrEmailTaken        = errors.New("email already registered")
)

// errNoRowsInOrg hides rows of other organizations behind a not-found.
var errNoRowsInOrg = fmt.Errorf("other organization: %w", sql.ErrNoRows)

// notFound wraps err as ErrNotFound when it is a missing row.
func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// notFoundOrWrite classifies a failed write as ErrNotFound or ErrWriteFailed.
func notFoundOrWrite(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%w: %v", ErrWriteFailed, err)
}

// ledgerError translates a failed ledger Apply. stale is the error a lost
// status race maps to.
func ledgerError(err error, stale error) error {
	switch {
	case errors.Is(err, ledger.ErrStaleStatus):
		return stale
	case errors.Is(err, ledger.ErrReferralNotFound), errors.Is(err, ledger.ErrBeneficiaryNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
}

// planError maps catalog lookups to ErrInvalidPlan.
func planError(err error) error {
	if errors.Is(err, plan.ErrUnknownPlan) || errors.Is(err, plan.ErrInactivePlan) {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return err
}

// chainError maps cycle detection failures to ErrReferralCycle.
func chainError(err error) error {
	switch {
	case errors.Is(err, referral.ErrSelfReferral), errors.Is(err, referral.ErrChainCycle), errors.Is(err, referral.ErrChainTooDeep):
		return fmt.Errorf("%w: %v", ErrReferralCycle, err)
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("referring lead: %w", ErrNotFound)
	}
	return err
}
