package history

import (
	"context"
	"database/sql"

	"growthgame/internal/adapters/storage"
	domain "growthgame/internal/domain/history"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new history store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert writes one event through ex, which may be a transaction. Other
// stores call it to keep their row change and its history event atomic.
// PRE: e has been validated
// POST: Event row inserted
func Insert(ctx context.Context, ex storage.Execer, e domain.Event) error {
	data := e.Data
	if data == "" {
		data = "{}"
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO lead_history (id, referral_id, event_type, event_data, created_by_id, created_by_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ReferralID, string(e.Type), data, e.CreatedByID, e.CreatedByName, storage.FormatTime(e.CreatedAt),
	)
	return err
}

// Append adds one event.
// PRE: e has been validated
// POST: Event is persisted
func (s *SQLiteStore) Append(ctx context.Context, e domain.Event) error {
	return Insert(ctx, s.db, e)
}

// ListByReferral returns a referral's events oldest first.
// PRE: referralID is non-empty
// POST: Returns events ordered by created_at, then id
func (s *SQLiteStore) ListByReferral(ctx context.Context, referralID string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, referral_id, event_type, event_data, created_by_id, created_by_name, created_at
		FROM lead_history WHERE referral_id = ? ORDER BY created_at ASC, id ASC`, referralID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var e domain.Event
	var eventType, createdAt string
	var byID, byName sql.NullString
	if err := scan(&e.ID, &e.ReferralID, &eventType, &e.Data, &byID, &byName, &createdAt); err != nil {
		return domain.Event{}, err
	}
	e.Type = domain.EventType(eventType)
	e.CreatedByID = byID.String
	e.CreatedByName = byName.String
	e.CreatedAt, _ = storage.ParseTime(createdAt)
	return e, nil
}
