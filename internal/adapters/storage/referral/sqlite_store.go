package referral

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"growthgame/internal/adapters/storage"
	historyStore "growthgame/internal/adapters/storage/history"
	"growthgame/internal/domain/history"
	domain "growthgame/internal/domain/referral"
)

// Columns selected by every referral query, in scanReferral order.
const Columns = `id, organization_id, referrer_id, referrer_name, referred_by_lead_id, lead_name, lead_phone,
	status, lead_points, converted_plan_id, contact_tag, notes, follow_up_date, follow_up_note, tags,
	is_client, client_since, created_at, updated_at`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new referral store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Referral by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Referral, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+Columns+" FROM referrals WHERE id = ?", id)
	entity, err := ScanReferral(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Referral{}, fmt.Errorf("referral not found: %w", err)
	}
	return entity, err
}

// ReferredByLeadID returns the referring lead of id, "" when unset.
// PRE: id is non-empty
// POST: Returns an error wrapping sql.ErrNoRows if id does not exist
func (s *SQLiteStore) ReferredByLeadID(ctx context.Context, id string) (string, error) {
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT referred_by_lead_id FROM referrals WHERE id = ?", id).Scan(&parent)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("referral not found: %w", err)
	}
	return parent.String, err
}

// Insert writes a new referral row through ex, which may be a transaction.
// PRE: r has been validated with ValidateNew
// POST: Row inserted; lead_points starts at r.LeadPoints
func Insert(ctx context.Context, ex storage.Execer, r domain.Referral) error {
	tags, err := json.Marshal(nonNilTags(r.Tags))
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		"INSERT INTO referrals ("+Columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID,
		r.OrganizationID,
		storage.NullString(r.ReferrerID),
		r.ReferrerName,
		storage.NullString(r.ReferredByLeadID),
		r.LeadName,
		r.LeadPhone,
		r.Status,
		r.LeadPoints,
		storage.NullString(r.ConvertedPlanID),
		r.ContactTag,
		r.Notes,
		storage.NullString(r.FollowUpDate),
		r.FollowUpNote,
		string(tags),
		r.IsClient,
		storage.NullTime(r.ClientSince),
		storage.FormatTime(r.CreatedAt),
		storage.FormatTime(r.UpdatedAt),
	)
	return err
}

// UpdateDetails writes the descriptive fields of r and appends events in one
// transaction. Status, plan and lead_points are never touched here.
// PRE: r has been validated; events reference r.ID
// POST: Row and events committed together, or nothing is written
func (s *SQLiteStore) UpdateDetails(ctx context.Context, r domain.Referral, events []history.Event) error {
	tags, err := json.Marshal(nonNilTags(r.Tags))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE referrals SET
		lead_name = ?, lead_phone = ?, referred_by_lead_id = ?, contact_tag = ?, notes = ?,
		follow_up_date = ?, follow_up_note = ?, tags = ?, is_client = ?, client_since = ?, updated_at = ?
		WHERE id = ?`,
		r.LeadName,
		r.LeadPhone,
		storage.NullString(r.ReferredByLeadID),
		r.ContactTag,
		r.Notes,
		storage.NullString(r.FollowUpDate),
		r.FollowUpNote,
		string(tags),
		r.IsClient,
		storage.NullTime(r.ClientSince),
		storage.FormatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("referral not found: %w", sql.ErrNoRows)
	}

	for _, e := range events {
		if err := historyStore.Insert(ctx, tx, e); err != nil {
			return fmt.Errorf("append %s event: %w", e.Type, err)
		}
	}
	return tx.Commit()
}

// LinkReferringLead points id at leadID (or clears it) and appends event.
// The link is written before the chain is walked, so the walk runs under the
// write lock and sees every committed link.
// PRE: event belongs to id
// POST: the link and event are committed, or nothing is; a missing id wraps
// sql.ErrNoRows and a cyclic chain returns the domain chain error
func (s *SQLiteStore) LinkReferringLead(ctx context.Context, id, leadID string, at time.Time, event history.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE referrals SET referred_by_lead_id = ?, updated_at = ? WHERE id = ?",
		storage.NullString(leadID), storage.FormatTime(at), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("referral not found: %w", sql.ErrNoRows)
	}

	lookup := func(cur string) (string, error) {
		var parent sql.NullString
		if err := tx.QueryRowContext(ctx, "SELECT referred_by_lead_id FROM referrals WHERE id = ?", cur).Scan(&parent); err != nil {
			return "", fmt.Errorf("referring lead %s: %w", cur, err)
		}
		return parent.String, nil
	}
	if err := domain.CheckChain(id, leadID, lookup); err != nil {
		return err
	}

	if err := historyStore.Insert(ctx, tx, event); err != nil {
		return fmt.Errorf("append %s event: %w", event.Type, err)
	}
	return tx.Commit()
}

// Delete hard-deletes a referral. History cascades; referrals it referred
// keep existing with referred_by_lead_id cleared.
// PRE: id is non-empty
// POST: Returns an error wrapping sql.ErrNoRows if nothing was deleted
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM referrals WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("referral not found: %w", sql.ErrNoRows)
	}
	return nil
}

func whereClause(filter ListFilter) (string, []any) {
	conds := []string{"organization_id = ?"}
	args := []any{filter.OrganizationID}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ContactTag != "" {
		conds = append(conds, "contact_tag = ?")
		args = append(args, filter.ContactTag)
	}
	if filter.Tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(referrals.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
	}
	if filter.ReferrerID != "" {
		conds = append(conds, "referrer_id = ?")
		args = append(args, filter.ReferrerID)
	}
	if filter.Search != "" {
		conds = append(conds, "(lead_name LIKE ? OR lead_phone LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List retrieves referrals based on the filter, newest first.
// PRE: filter.OrganizationID is set
// POST: Returns at most filter.Limit entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Referral, error) {
	var queryBuilder strings.Builder
	where, args := whereClause(filter)

	queryBuilder.WriteString("SELECT " + Columns + " FROM referrals")
	queryBuilder.WriteString(where)
	queryBuilder.WriteString(" ORDER BY created_at DESC, id ASC")
	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Referral
	for rows.Next() {
		entity, err := ScanReferral(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns how many referrals match the filter, ignoring paging.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := whereClause(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM referrals"+where, args...).Scan(&count)
	return count, err
}

// CountByStatus returns the number of referrals per status.
// PRE: organizationID is non-empty
// POST: Statuses with no referrals are absent from the map
func (s *SQLiteStore) CountByStatus(ctx context.Context, organizationID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM referrals WHERE organization_id = ? GROUP BY status", organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// LeadRanking ranks referrals acting as referrers by lead_points, joined
// with how many referrals each one introduced.
// PRE: organizationID is non-empty
// POST: Sorted by lead_points desc, then id asc; rows with no points and
// no sub-referrals are omitted
func (s *SQLiteStore) LeadRanking(ctx context.Context, organizationID string) ([]LeadRank, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.lead_name, r.lead_points, COUNT(c.id) AS sub_referrals
		FROM referrals r
		LEFT JOIN referrals c ON c.referred_by_lead_id = r.id
		WHERE r.organization_id = ?
		GROUP BY r.id, r.lead_name, r.lead_points
		HAVING r.lead_points > 0 OR COUNT(c.id) > 0
		ORDER BY r.lead_points DESC, r.id ASC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LeadRank
	for rows.Next() {
		var lr LeadRank
		if err := rows.Scan(&lr.ID, &lr.LeadName, &lr.LeadPoints, &lr.SubReferralCount); err != nil {
			return nil, err
		}
		results = append(results, lr)
	}
	return results, rows.Err()
}

// DueFollowUps returns referrals with a follow-up date on or before the
// given YYYY-MM-DD date, earliest first.
// PRE: onOrBefore is a YYYY-MM-DD date
// POST: Converted referrals are excluded
func (s *SQLiteStore) DueFollowUps(ctx context.Context, organizationID, onOrBefore string) ([]domain.Referral, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+Columns+` FROM referrals
		WHERE organization_id = ? AND follow_up_date IS NOT NULL AND follow_up_date <= ? AND status != 'converted'
		ORDER BY follow_up_date ASC, id ASC`, organizationID, onOrBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Referral
	for rows.Next() {
		entity, err := ScanReferral(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// ScanReferral extracts a Referral from a row scanner function whose columns
// follow Columns.
func ScanReferral(scan func(dest ...any) error) (domain.Referral, error) {
	var r domain.Referral
	var referrerID, referredBy, planID, followUpDate, clientSince sql.NullString
	var tags, createdAt, updatedAt string
	err := scan(
		&r.ID,
		&r.OrganizationID,
		&referrerID,
		&r.ReferrerName,
		&referredBy,
		&r.LeadName,
		&r.LeadPhone,
		&r.Status,
		&r.LeadPoints,
		&planID,
		&r.ContactTag,
		&r.Notes,
		&followUpDate,
		&r.FollowUpNote,
		&tags,
		&r.IsClient,
		&clientSince,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Referral{}, err
	}
	r.ReferrerID = referrerID.String
	r.ReferredByLeadID = referredBy.String
	r.ConvertedPlanID = planID.String
	r.FollowUpDate = followUpDate.String
	r.ClientSince = storage.ParseNullTime(clientSince)
	r.CreatedAt, _ = storage.ParseTime(createdAt)
	r.UpdatedAt, _ = storage.ParseTime(updatedAt)
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			return domain.Referral{}, fmt.Errorf("decode tags of %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
