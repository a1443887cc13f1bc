package profile

import (
	"context"

	domain "growthgame/internal/domain/profile"
)

// Store persists Profile state. Points counters are only ever moved by the
// ledger store; Save leaves them untouched on existing rows.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Profile, error)
	Save(ctx context.Context, value domain.Profile) error
	List(ctx context.Context, filter ListFilter) ([]domain.Profile, error)
	Ranking(ctx context.Context, organizationID, role string) ([]domain.Profile, error)
	Count(ctx context.Context, organizationID string) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	OrganizationID string
	Role           string
	Limit          int
	Offset         int
}
