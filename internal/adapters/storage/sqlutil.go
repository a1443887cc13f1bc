package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is how every timestamp column is written. The fixed-width
// fraction keeps text ordering equal to time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Execer is the write half shared by *sql.DB, *sql.Tx and SQLDB, so helpers
// can run inside or outside a transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FormatTime renders t in UTC for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NullTime returns nil for the zero time so the column stays NULL.
func NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return FormatTime(t)
}

// NullString returns nil for "" so the column stays NULL.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ParseTime accepts the formats SQLite and earlier writers produce.
func ParseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}

// ParseNullTime parses a nullable timestamp column, zero when NULL.
func ParseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, _ := ParseTime(ns.String)
	return t
}
