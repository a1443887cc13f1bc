package orchestrators

import (
	"context"
	"log/slog"
)

// ReferralDeleter hard-deletes referrals.
type ReferralDeleter interface {
	ReferralReader
	Delete(ctx context.Context, id string) error
}

// DeleteReferralInput carries input for DeleteReferral.
type DeleteReferralInput struct {
	Actor      Principal
	ReferralID string
}

// DeleteReferralDeps holds dependencies for DeleteReferral.
type DeleteReferralDeps struct {
	Referrals ReferralDeleter
}

// ExecuteDeleteReferral removes a referral and its history. Ledger entries
// and counters are kept.
// PRE: caller is owner or admin
// POST: the referral row is gone; referrals it referred lose the link
func ExecuteDeleteReferral(ctx context.Context, input DeleteReferralInput, deps DeleteReferralDeps) error {
	if err := requireAdmin(input.Actor); err != nil {
		return err
	}
	if _, err := loadReferral(ctx, deps.Referrals, input.ReferralID, input.Actor.OrganizationID); err != nil {
		return err
	}
	if err := deps.Referrals.Delete(ctx, input.ReferralID); err != nil {
		return notFoundOrWrite("referral "+input.ReferralID, err)
	}
	slog.Info("referral_event", "event", "referral_deleted", "referral_id", input.ReferralID, "by", input.Actor.ProfileID)
	return nil
}
