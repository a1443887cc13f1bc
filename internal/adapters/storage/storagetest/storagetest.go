// Package storagetest opens migrated in-memory databases for store tests.
package storagetest

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"

	"growthgame/internal/adapters/storage"
)

// OrgID is the organization seeded by Open.
const OrgID = "org-1"

var dbSeq atomic.Int64

// Open returns a migrated in-memory database holding one organization. A
// single connection keeps every query on the same database.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test%d?mode=memory&_pragma=foreign_keys(ON)", dbSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec("INSERT INTO organizations (id, name, created_at) VALUES (?, 'Barbearia Central', '2026-01-01T00:00:00.000000000Z')", OrgID); err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	return db
}

// AddProfile inserts a profile and its role with zeroed counters.
func AddProfile(t *testing.T, db *sql.DB, id, name, role string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO profiles (id, organization_id, full_name, created_at)
		VALUES (?, ?, ?, '2026-01-01T00:00:00.000000000Z')`, id, OrgID, name); err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
	if _, err := db.Exec("INSERT INTO user_roles (profile_id, role) VALUES (?, ?)", id, role); err != nil {
		t.Fatalf("seed role %s: %v", id, err)
	}
}
