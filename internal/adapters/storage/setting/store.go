package setting

import (
	"context"

	domain "growthgame/internal/domain/setting"
)

// Store persists overlay documents keyed by (scope, key).
type Store interface {
	Get(ctx context.Context, scopeID, key string) (domain.Setting, error)
	Save(ctx context.Context, value domain.Setting) error
	Delete(ctx context.Context, scopeID, key string) error
}
