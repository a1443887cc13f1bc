package profile

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"growthgame/internal/adapters/storage"
	domain "growthgame/internal/domain/profile"
)

const selectProfile = `SELECT p.id, p.organization_id, p.full_name, p.email, p.phone, COALESCE(ur.role, ''),
	p.wallet_balance, p.lifetime_points, p.created_at
	FROM profiles p LEFT JOIN user_roles ur ON ur.profile_id = p.id`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new profile store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Profile with its role.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, selectProfile+" WHERE p.id = ?", id)
	entity, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Profile{}, fmt.Errorf("profile not found: %w", err)
	}
	return entity, err
}

// Insert writes a profile and its role through ex, which may be a transaction.
// PRE: p has been validated
// POST: profile and user_roles rows inserted
func Insert(ctx context.Context, ex storage.Execer, p domain.Profile) error {
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO profiles (id, organization_id, full_name, email, phone, wallet_balance, lifetime_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrganizationID, p.FullName, p.Email, p.Phone, p.WalletBalance, p.LifetimePoints, storage.FormatTime(p.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if _, err := ex.ExecContext(ctx, "INSERT INTO user_roles (profile_id, role) VALUES (?, ?)", p.ID, p.Role); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// Save persists a Profile and its role (insert or update). Counters are
// written on insert only.
// PRE: entity has been validated
// POST: Entity is persisted
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	fields := []string{"id", "organization_id", "full_name", "email", "phone", "wallet_balance", "lifetime_points", "created_at"}
	placeholders := []string{"?", "?", "?", "?", "?", "?", "?", "?"}
	updates := []string{
		"full_name=excluded.full_name",
		"email=excluded.email",
		"phone=excluded.phone",
	}
	query := fmt.Sprintf(
		"INSERT INTO profiles (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	if _, err := tx.ExecContext(ctx, query,
		entity.ID,
		entity.OrganizationID,
		entity.FullName,
		entity.Email,
		entity.Phone,
		entity.WalletBalance,
		entity.LifetimePoints,
		storage.FormatTime(entity.CreatedAt),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_roles (profile_id, role) VALUES (?, ?) ON CONFLICT(profile_id) DO UPDATE SET role=excluded.role",
		entity.ID, entity.Role,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves Profiles based on the filter, by name.
// PRE: filter.OrganizationID is set
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Profile, error) {
	var queryBuilder strings.Builder
	args := []any{filter.OrganizationID}

	queryBuilder.WriteString(selectProfile)
	queryBuilder.WriteString(" WHERE p.organization_id = ?")
	if filter.Role != "" {
		queryBuilder.WriteString(" AND ur.role = ?")
		args = append(args, filter.Role)
	}
	queryBuilder.WriteString(" ORDER BY p.full_name ASC, p.id ASC")
	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}
	return s.query(ctx, queryBuilder.String(), args...)
}

// Ranking returns the profiles of a role ordered for the leaderboard.
// PRE: organizationID is non-empty
// POST: Sorted by lifetime_points desc, then id asc
func (s *SQLiteStore) Ranking(ctx context.Context, organizationID, role string) ([]domain.Profile, error) {
	query := selectProfile + " WHERE p.organization_id = ?"
	args := []any{organizationID}
	if role != "" {
		query += " AND ur.role = ?"
		args = append(args, role)
	}
	query += " ORDER BY p.lifetime_points DESC, p.id ASC"
	return s.query(ctx, query, args...)
}

// Count returns the number of profiles in an organization.
func (s *SQLiteStore) Count(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles WHERE organization_id = ?", organizationID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Profile
	for rows.Next() {
		entity, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

func scanProfile(scan func(dest ...any) error) (domain.Profile, error) {
	var p domain.Profile
	var createdAt string
	if err := scan(&p.ID, &p.OrganizationID, &p.FullName, &p.Email, &p.Phone, &p.Role,
		&p.WalletBalance, &p.LifetimePoints, &createdAt); err != nil {
		return domain.Profile{}, err
	}
	p.CreatedAt, _ = storage.ParseTime(createdAt)
	return p, nil
}
