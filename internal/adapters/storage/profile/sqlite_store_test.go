package profile

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"growthgame/internal/adapters/storage/storagetest"
	domain "growthgame/internal/domain/profile"
)

func TestSave_DoesNotOverwriteCounters(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()
	p := domain.Profile{ID: "p1", OrganizationID: storagetest.OrgID, FullName: "Carlos", Role: domain.RoleBarber,
		CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec("UPDATE profiles SET wallet_balance = 40, lifetime_points = 90 WHERE id = 'p1'"); err != nil {
		t.Fatal(err)
	}

	p.FullName = "Carlos Lima"
	p.Role = domain.RoleAdmin
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FullName != "Carlos Lima" || got.Role != domain.RoleAdmin {
		t.Errorf("got %+v", got)
	}
	if got.WalletBalance != 40 || got.LifetimePoints != 90 {
		t.Errorf("counters = %d/%d, want 40/90", got.WalletBalance, got.LifetimePoints)
	}
	if _, err := store.GetByID(ctx, "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestRanking_ByRoleWithIDTieBreak(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	for _, p := range []struct {
		id, role string
		points   int
	}{
		{"p-c", domain.RoleBarber, 30},
		{"p-b", domain.RoleBarber, 90},
		{"p-a", domain.RoleBarber, 90},
		{"p-x", domain.RoleClient, 500},
	} {
		storagetest.AddProfile(t, db, p.id, p.id, p.role)
		db.Exec("UPDATE profiles SET lifetime_points = ? WHERE id = ?", p.points, p.id)
	}

	got, err := store.Ranking(context.Background(), storagetest.OrgID, domain.RoleBarber)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"p-a", "p-b", "p-c"}
	if len(got) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("rank %d = %s, want %s", i, got[i].ID, id)
		}
	}

	all, _ := store.Ranking(context.Background(), storagetest.OrgID, "")
	if len(all) != 4 || all[0].ID != "p-x" {
		t.Errorf("unpartitioned ranking = %v", all)
	}
	n, _ := store.Count(context.Background(), storagetest.OrgID)
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}
}
