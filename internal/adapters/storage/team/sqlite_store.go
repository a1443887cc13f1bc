package team

import (
	"context"
	"database/sql"
	"fmt"

	"growthgame/internal/adapters/storage"
	accountStore "growthgame/internal/adapters/storage/account"
	profileStore "growthgame/internal/adapters/storage/profile"
	"growthgame/internal/domain/account"
	"growthgame/internal/domain/profile"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new team store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateMember inserts the account, profile and role in one transaction.
// PRE: a and p are validated, a.ID == p.ID
// POST: all three rows exist, or none do
func (s *SQLiteStore) CreateMember(ctx context.Context, a account.Account, p profile.Profile) error {
	if a.ID != p.ID {
		return fmt.Errorf("account %s and profile %s must share an id", a.ID, p.ID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := accountStore.Insert(ctx, tx, a); err != nil {
		return err
	}
	if err := profileStore.Insert(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteMember removes the role, profile and account of a member.
// Referrals keep their rows with referrer_id cleared.
// PRE: profileID is non-empty
// POST: no rows remain for profileID; a missing profile wraps sql.ErrNoRows
func (s *SQLiteStore) DeleteMember(ctx context.Context, profileID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE profile_id = ?", profileID); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", profileID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile not found: %w", sql.ErrNoRows)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", profileID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return tx.Commit()
}
