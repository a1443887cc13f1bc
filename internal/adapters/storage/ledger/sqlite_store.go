package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"growthgame/internal/adapters/storage"
	historyStore "growthgame/internal/adapters/storage/history"
	referralStore "growthgame/internal/adapters/storage/referral"
	domain "growthgame/internal/domain/ledger"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new ledger store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Apply writes the referral change, its point awards, the counter updates
// and the history event in one transaction.
// PRE: m has been validated
// POST: Either everything is committed or nothing is. A status that no
// longer equals m.ExpectStatus yields ErrStaleStatus; a missing row yields
// ErrReferralNotFound.
// INVARIANT: each counter moves by exactly the points of the ledger rows
// inserted for it
func (s *SQLiteStore) Apply(ctx context.Context, m domain.Mutation) (domain.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Result{}, err
	}
	defer tx.Rollback()

	ref := m.Referral
	if m.Create {
		if err := referralStore.Insert(ctx, tx, ref); err != nil {
			return domain.Result{}, fmt.Errorf("insert referral: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			"UPDATE referrals SET status = ?, converted_plan_id = ?, updated_at = ? WHERE id = ? AND status = ?",
			ref.Status, storage.NullString(ref.ConvertedPlanID), storage.FormatTime(m.At), ref.ID, m.ExpectStatus)
		if err != nil {
			return domain.Result{}, fmt.Errorf("update referral status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM referrals WHERE id = ?", ref.ID).Scan(&exists); err != nil {
				return domain.Result{}, err
			}
			if exists == 0 {
				return domain.Result{}, domain.ErrReferralNotFound
			}
			return domain.Result{}, domain.ErrStaleStatus
		}
	}

	var result domain.Result
	for i, a := range m.Awards {
		entry := domain.Entry{
			ID:             m.EntryIDs[i],
			OrganizationID: ref.OrganizationID,
			ReferralID:     ref.ID,
			Kind:           a.Kind,
			BeneficiaryID:  a.BeneficiaryID,
			Reason:         a.Reason,
			Points:         a.Points,
			IdempotencyKey: domain.IdempotencyKey(a.Reason, ref.ID),
			CreatedAt:      m.At,
		}
		inserted, err := insertEntry(ctx, tx, entry)
		if err != nil {
			return domain.Result{}, fmt.Errorf("insert ledger entry %s: %w", entry.IdempotencyKey, err)
		}
		if !inserted {
			continue
		}
		if err := credit(ctx, tx, a); err != nil {
			return domain.Result{}, err
		}
		result.Entries = append(result.Entries, entry)
		result.PointsAwarded += a.Points
	}

	if err := historyStore.Insert(ctx, tx, m.Event); err != nil {
		return domain.Result{}, fmt.Errorf("append history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// insertEntry reports false when the idempotency key is already taken.
func insertEntry(ctx context.Context, tx *sql.Tx, e domain.Entry) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO points_entries
		(id, organization_id, referral_id, beneficiary_kind, beneficiary_id, reason, points, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING`,
		e.ID, e.OrganizationID, e.ReferralID, string(e.Kind), e.BeneficiaryID, string(e.Reason), e.Points,
		e.IdempotencyKey, storage.FormatTime(e.CreatedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func credit(ctx context.Context, tx *sql.Tx, a domain.Award) error {
	var res sql.Result
	var err error
	switch a.Kind {
	case domain.BeneficiaryProfile:
		res, err = tx.ExecContext(ctx,
			"UPDATE profiles SET wallet_balance = wallet_balance + ?, lifetime_points = lifetime_points + ? WHERE id = ?",
			a.Points, a.Points, a.BeneficiaryID)
	case domain.BeneficiaryLead:
		res, err = tx.ExecContext(ctx,
			"UPDATE referrals SET lead_points = lead_points + ? WHERE id = ?",
			a.Points, a.BeneficiaryID)
	default:
		return domain.ErrInvalidAward
	}
	if err != nil {
		return fmt.Errorf("credit %s %s: %w", a.Kind, a.BeneficiaryID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", a.Kind, a.BeneficiaryID, domain.ErrBeneficiaryNotFound)
	}
	return nil
}

// HasEntry reports whether an award with the key was already made.
func (s *SQLiteStore) HasEntry(ctx context.Context, idempotencyKey string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points_entries WHERE idempotency_key = ?", idempotencyKey).Scan(&n)
	return n > 0, err
}

const entryColumns = "id, organization_id, referral_id, beneficiary_kind, beneficiary_id, reason, points, idempotency_key, created_at"

// ListByReferral returns the awards made for a referral, oldest first.
func (s *SQLiteStore) ListByReferral(ctx context.Context, referralID string) ([]domain.Entry, error) {
	return s.list(ctx, "SELECT "+entryColumns+" FROM points_entries WHERE referral_id = ? ORDER BY created_at ASC, id ASC", referralID)
}

// ListByBeneficiary returns the awards credited to one profile or lead.
func (s *SQLiteStore) ListByBeneficiary(ctx context.Context, kind domain.BeneficiaryKind, id string) ([]domain.Entry, error) {
	return s.list(ctx, "SELECT "+entryColumns+" FROM points_entries WHERE beneficiary_kind = ? AND beneficiary_id = ? ORDER BY created_at ASC, id ASC", string(kind), id)
}

// TotalAwarded sums every award made in an organization.
func (s *SQLiteStore) TotalAwarded(ctx context.Context, organizationID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(points), 0) FROM points_entries WHERE organization_id = ?", organizationID).Scan(&total)
	return total, err
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var kind, reason, createdAt string
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.ReferralID, &kind, &e.BeneficiaryID, &reason, &e.Points, &e.IdempotencyKey, &createdAt); err != nil {
			return nil, err
		}
		e.Kind = domain.BeneficiaryKind(kind)
		e.Reason = domain.Reason(reason)
		e.CreatedAt, _ = storage.ParseTime(createdAt)
		results = append(results, e)
	}
	return results, rows.Err()
}
