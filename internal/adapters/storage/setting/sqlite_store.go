package setting

import (
	"context"
	"database/sql"
	"fmt"

	"growthgame/internal/adapters/storage"
	domain "growthgame/internal/domain/setting"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new setting store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves one overlay document.
// PRE: scopeID and key are non-empty
// POST: Returns the setting or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) Get(ctx context.Context, scopeID, key string) (domain.Setting, error) {
	var st domain.Setting
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT scope_id, key, value, updated_at FROM crm_settings WHERE scope_id = ? AND key = ?",
		scopeID, key,
	).Scan(&st.ScopeID, &st.Key, &st.Value, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Setting{}, fmt.Errorf("setting %s not found: %w", key, err)
	}
	if err != nil {
		return domain.Setting{}, err
	}
	st.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return st, nil
}

// Save upserts an overlay document. Last write wins.
// PRE: value has been validated
// POST: The stored document equals value
func (s *SQLiteStore) Save(ctx context.Context, value domain.Setting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crm_settings (scope_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		value.ScopeID, value.Key, value.Value, storage.FormatTime(value.UpdatedAt))
	return err
}

// Delete removes an overlay document so defaults apply again.
func (s *SQLiteStore) Delete(ctx context.Context, scopeID, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM crm_settings WHERE scope_id = ? AND key = ?", scopeID, key)
	return err
}
