package projections

import (
	"context"
	"errors"

	referralStore "growthgame/internal/adapters/storage/referral"
	"growthgame/internal/domain/referral"
)

// ErrNotFound is returned when the requested row is absent or belongs to
// another organization.
var ErrNotFound = errors.New("not found")

// ReferralStore interface for referral list queries.
type ReferralStore interface {
	GetByID(ctx context.Context, id string) (referral.Referral, error)
	List(ctx context.Context, filter referralStore.ListFilter) ([]referral.Referral, error)
	Count(ctx context.Context, filter referralStore.ListFilter) (int, error)
}
