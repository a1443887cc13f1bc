package history

import (
	"context"

	domain "growthgame/internal/domain/history"
)

// Store persists the append-only referral timeline.
type Store interface {
	Append(ctx context.Context, e domain.Event) error
	ListByReferral(ctx context.Context, referralID string) ([]domain.Event, error)
}
