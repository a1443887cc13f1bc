package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	up      string
}

// migrations are applied in order; never edit a released entry, append a
// new one instead.
var migrations = []migration{
	{version: 1, name: "baseline", up: schemaV1},
	{version: 2, name: "referral_indexes", up: schemaV2},
	{version: 3, name: "points_ledger", up: schemaV3},
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	failed_logins INTEGER NOT NULL DEFAULT 0,
	locked_until TEXT
);

CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	full_name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	wallet_balance INTEGER NOT NULL DEFAULT 0 CHECK (wallet_balance >= 0),
	lifetime_points INTEGER NOT NULL DEFAULT 0 CHECK (lifetime_points >= 0),
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_roles (
	profile_id TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'barber', 'client'))
);

CREATE TABLE IF NOT EXISTS referrals (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	referrer_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	referrer_name TEXT NOT NULL DEFAULT '',
	referred_by_lead_id TEXT REFERENCES referrals(id) ON DELETE SET NULL,
	lead_name TEXT NOT NULL,
	lead_phone TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'contacted', 'converted', 'cliente', 'client')),
	lead_points INTEGER NOT NULL DEFAULT 0 CHECK (lead_points >= 0),
	converted_plan_id TEXT,
	contact_tag TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	follow_up_date TEXT,
	follow_up_note TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	is_client INTEGER NOT NULL DEFAULT 0,
	client_since TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	CHECK ((converted_plan_id IS NOT NULL) = (status = 'converted'))
);

CREATE TABLE IF NOT EXISTS lead_history (
	id TEXT PRIMARY KEY,
	referral_id TEXT NOT NULL REFERENCES referrals(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	event_data TEXT NOT NULL DEFAULT '{}',
	created_by_id TEXT NOT NULL DEFAULT '',
	created_by_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crm_settings (
	scope_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (scope_id, key)
);
`

const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_referrals_org_status ON referrals(organization_id, status);
CREATE INDEX IF NOT EXISTS idx_referrals_referred_by ON referrals(referred_by_lead_id);
CREATE INDEX IF NOT EXISTS idx_referrals_follow_up ON referrals(follow_up_date);
CREATE INDEX IF NOT EXISTS idx_lead_history_referral ON lead_history(referral_id, created_at);
CREATE INDEX IF NOT EXISTS idx_profiles_org ON profiles(organization_id);
`

// points_entries has no foreign key to referrals so awards survive a hard
// delete of the referral.
const schemaV3 = `
CREATE TABLE IF NOT EXISTS points_entries (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	referral_id TEXT NOT NULL,
	beneficiary_kind TEXT NOT NULL CHECK (beneficiary_kind IN ('profile', 'lead')),
	beneficiary_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	points INTEGER NOT NULL CHECK (points > 0),
	idempotency_key TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_entries_beneficiary ON points_entries(beneficiary_kind, beneficiary_id);
CREATE INDEX IF NOT EXISTS idx_points_entries_org ON points_entries(organization_id);
`

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the applied schema version, 0 for an empty database.
// PRE: db is open
// POST: Returns the highest recorded version
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies pending migrations, each in its own transaction. When an
// on-disk database is upgraded, a copy is taken first at <dbPath>.bak-v<N>.
// PRE: db is open with foreign keys enabled
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(db *sql.DB, dbPath string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}

	if current > 0 && dbPath != "" && !strings.HasPrefix(dbPath, ":memory:") {
		backup := fmt.Sprintf("%s.bak-v%d", dbPath, current)
		if _, err := db.Exec("VACUUM INTO ?", backup); err != nil {
			return fmt.Errorf("backup before migration: %w", err)
		}
		slog.Info("schema_event", "event", "backup_created", "path", backup, "version", current)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		slog.Info("schema_event", "event", "migration_applied", "version", m.version, "name", m.name)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.up); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}
