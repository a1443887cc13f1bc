package ledger

import (
	"context"

	domain "growthgame/internal/domain/ledger"
)

// Store applies ledger mutations atomically and reads the points ledger.
type Store interface {
	Apply(ctx context.Context, m domain.Mutation) (domain.Result, error)
	HasEntry(ctx context.Context, idempotencyKey string) (bool, error)
	ListByReferral(ctx context.Context, referralID string) ([]domain.Entry, error)
	ListByBeneficiary(ctx context.Context, kind domain.BeneficiaryKind, id string) ([]domain.Entry, error)
	TotalAwarded(ctx context.Context, organizationID string) (int, error)
}
