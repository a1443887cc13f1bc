package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"growthgame/internal/domain/history"
	"growthgame/internal/domain/ledger"
	"growthgame/internal/domain/referral"
)

// ContactStatusInput carries input for MarkContacted and UndoContacted.
type ContactStatusInput struct {
	Actor      Principal
	ReferralID string
}

// ContactStatusDeps holds dependencies for the contact transitions.
type ContactStatusDeps struct {
	Referrals  ReferralReader
	Ledger     LedgerStore
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteMarkContacted moves a referral from new to contacted.
// PRE: referral exists with status new
// POST: status is contacted and a status_change event is appended
func ExecuteMarkContacted(ctx context.Context, input ContactStatusInput, deps ContactStatusDeps) error {
	return transitionContact(ctx, input, deps, (*referral.Referral).MarkContacted)
}

// ExecuteUndoContacted moves a referral from contacted back to new.
// PRE: referral exists with status contacted
// POST: status is new and a status_change event is appended
func ExecuteUndoContacted(ctx context.Context, input ContactStatusInput, deps ContactStatusDeps) error {
	return transitionContact(ctx, input, deps, (*referral.Referral).UndoContacted)
}

func transitionContact(ctx context.Context, input ContactStatusInput, deps ContactStatusDeps, step func(*referral.Referral) error) error {
	if !input.Actor.Authenticated() {
		return ErrUnauthorized
	}
	r, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID)
	if err != nil {
		return err
	}
	from := r.Status
	if err := step(&r); err != nil {
		if errors.Is(err, referral.ErrInvalidTransition) {
			return ErrInvalidTransition
		}
		return err
	}
	return applyStatusChange(ctx, r, from, nil, input.Actor, deps.Ledger, deps.Now(), deps.GenerateID, ErrInvalidTransition)
}

// applyStatusChange writes a status-only mutation guarded by from.
func applyStatusChange(ctx context.Context, r referral.Referral, from string, extra map[string]any, actor Principal, store LedgerStore, now time.Time, generateID func() string, stale error) error {
	data := map[string]any{"from": from, "to": r.Status}
	for k, v := range extra {
		data[k] = v
	}
	r.UpdatedAt = now
	m := ledger.Mutation{
		Referral:     r,
		ExpectStatus: from,
		Event:        history.NewEvent(generateID(), r.ID, history.EventStatusChange, actor.Actor(), now).WithData(data),
		At:           now,
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if _, err := store.Apply(ctx, m); err != nil {
		slog.Info("referral_event", "event", "status_change_failed", "referral_id", r.ID, "from", from, "to", r.Status, "error", err)
		return ledgerError(err, stale)
	}
	slog.Info("referral_event", "event", "status_changed", "referral_id", r.ID, "from", from, "to", r.Status)
	return nil
}
