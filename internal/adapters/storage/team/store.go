package team

import (
	"context"

	"growthgame/internal/domain/account"
	"growthgame/internal/domain/profile"
)

// Store creates and removes team members. Each call touches the account,
// profile and role rows together.
type Store interface {
	CreateMember(ctx context.Context, a account.Account, p profile.Profile) error
	DeleteMember(ctx context.Context, profileID string) error
}
