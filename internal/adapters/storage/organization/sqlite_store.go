package organization

import (
	"context"
	"database/sql"
	"fmt"

	"growthgame/internal/adapters/storage"
	domain "growthgame/internal/domain/organization"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new organization store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Organization by its ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	var createdAt string
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM organizations WHERE id = ?", id).
		Scan(&o.ID, &o.Name, &createdAt)
	if err == sql.ErrNoRows {
		return domain.Organization{}, fmt.Errorf("organization not found: %w", err)
	}
	if err != nil {
		return domain.Organization{}, err
	}
	o.CreatedAt, _ = storage.ParseTime(createdAt)
	return o, nil
}

// Save persists an Organization (insert or rename).
// PRE: entity has been validated
// POST: Entity is persisted
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Organization) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET name=excluded.name",
		entity.ID, entity.Name, storage.FormatTime(entity.CreatedAt))
	return err
}

// List returns every organization, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Organization, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM organizations ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Organization
	for rows.Next() {
		var o domain.Organization
		var createdAt string
		if err := rows.Scan(&o.ID, &o.Name, &createdAt); err != nil {
			return nil, err
		}
		o.CreatedAt, _ = storage.ParseTime(createdAt)
		results = append(results, o)
	}
	return results, rows.Err()
}
