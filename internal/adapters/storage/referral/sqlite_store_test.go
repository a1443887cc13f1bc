package referral

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"growthgame/internal/adapters/storage/storagetest"
	"growthgame/internal/domain/history"
	domain "growthgame/internal/domain/referral"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *sql.DB, r domain.Referral) domain.Referral {
	t.Helper()
	if r.OrganizationID == "" {
		r.OrganizationID = storagetest.OrgID
	}
	if r.Status == "" {
		r.Status = domain.StatusNew
	}
	if r.LeadPhone == "" {
		r.LeadPhone = "11999990000"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = testNow
	}
	r.UpdatedAt = r.CreatedAt
	if err := Insert(context.Background(), db, r); err != nil {
		t.Fatalf("insert %s: %v", r.ID, err)
	}
	return r
}

func TestGetByID_RoundTrip(t *testing.T) {
	db := storagetest.Open(t)
	storagetest.AddProfile(t, db, "barber-1", "Carlos", "barber")
	store := NewSQLiteStore(db)
	want := seed(t, db, domain.Referral{
		ID: "ref-1", ReferrerID: "barber-1", ReferrerName: "Carlos", LeadName: "Ana",
		ContactTag: domain.ContactTagHot, Tags: []string{"vip"}, FollowUpDate: "2026-03-12",
		IsClient: true, ClientSince: testNow,
	})

	got, err := store.GetByID(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ReferrerID != want.ReferrerID || got.ContactTag != "hot" || got.FollowUpDate != "2026-03-12" {
		t.Errorf("got %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "vip" {
		t.Errorf("Tags = %v, want [vip]", got.Tags)
	}
	if !got.IsClient || !got.ClientSince.Equal(testNow) || !got.CreatedAt.Equal(testNow) {
		t.Errorf("client/time fields not preserved: %+v", got)
	}

	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateDetails_WritesEventsAtomically(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	r := seed(t, db, domain.Referral{ID: "ref-1", LeadName: "Ana"})
	ctx := context.Background()

	r.Notes = "prefere sábado"
	r.UpdatedAt = testNow.Add(time.Hour)
	note := history.NewEvent("evt-1", r.ID, history.EventNoteAdded, history.Actor{ID: "u1", Name: "Carlos"}, r.UpdatedAt)
	if err := store.UpdateDetails(ctx, r, []history.Event{note}); err != nil {
		t.Fatalf("UpdateDetails: %v", err)
	}
	got, _ := store.GetByID(ctx, "ref-1")
	if got.Notes != "prefere sábado" {
		t.Errorf("Notes = %q", got.Notes)
	}

	// A duplicate event id aborts the whole update.
	r.Notes = "outra nota"
	if err := store.UpdateDetails(ctx, r, []history.Event{note}); err == nil {
		t.Fatal("expected duplicate event id to fail")
	}
	got, _ = store.GetByID(ctx, "ref-1")
	if got.Notes != "prefere sábado" {
		t.Errorf("Notes = %q after failed update, want unchanged", got.Notes)
	}

	missing := domain.Referral{ID: "ghost", LeadName: "X", LeadPhone: "1", Status: domain.StatusNew}
	if err := store.UpdateDetails(ctx, missing, nil); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestDelete_CascadesHistoryAndClearsChildren(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()
	seed(t, db, domain.Referral{ID: "lead-1", LeadName: "Ana"})
	seed(t, db, domain.Referral{ID: "lead-2", LeadName: "Bia", ReferredByLeadID: "lead-1"})
	evt := history.NewEvent("evt-1", "lead-1", history.EventCreated, history.Actor{}, testNow)
	if _, err := db.Exec(`INSERT INTO lead_history (id, referral_id, event_type, created_at) VALUES (?, ?, ?, ?)`,
		evt.ID, evt.ReferralID, string(evt.Type), "2026-03-10T14:00:00.000000000Z"); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, "lead-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int
	db.QueryRow("SELECT COUNT(*) FROM lead_history WHERE referral_id = 'lead-1'").Scan(&n)
	if n != 0 {
		t.Errorf("history rows = %d, want 0", n)
	}
	parent, err := store.ReferredByLeadID(ctx, "lead-2")
	if err != nil || parent != "" {
		t.Errorf("ReferredByLeadID = %q, %v; want cleared", parent, err)
	}
	if err := store.Delete(ctx, "lead-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete err = %v, want sql.ErrNoRows", err)
	}
}

func TestListFilters(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()
	seed(t, db, domain.Referral{ID: "a", LeadName: "Ana Souza", Tags: []string{"vip"}, CreatedAt: testNow})
	seed(t, db, domain.Referral{ID: "b", LeadName: "Bruno", Status: domain.StatusContacted, CreatedAt: testNow.Add(time.Minute)})
	seed(t, db, domain.Referral{ID: "c", LeadName: "Carla", LeadPhone: "21912345678", ContactTag: "cold", CreatedAt: testNow.Add(2 * time.Minute)})

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"all newest first", ListFilter{}, []string{"c", "b", "a"}},
		{"status", ListFilter{Status: domain.StatusContacted}, []string{"b"}},
		{"tag", ListFilter{Tag: "vip"}, []string{"a"}},
		{"contact tag", ListFilter{ContactTag: "cold"}, []string{"c"}},
		{"search name", ListFilter{Search: "souza"}, []string{"a"}},
		{"search phone", ListFilter{Search: "2191"}, []string{"c"}},
		{"page", ListFilter{Limit: 1, Offset: 1}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.OrganizationID = storagetest.OrgID
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("row %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}

	n, _ := store.Count(ctx, ListFilter{OrganizationID: storagetest.OrgID, Limit: 1})
	if n != 3 {
		t.Errorf("Count = %d, want 3 (paging ignored)", n)
	}
	counts, _ := store.CountByStatus(ctx, storagetest.OrgID)
	if counts[domain.StatusNew] != 2 || counts[domain.StatusContacted] != 1 {
		t.Errorf("CountByStatus = %v", counts)
	}
}

func TestLeadRanking_OrderAndOmission(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	seed(t, db, domain.Referral{ID: "l-b", LeadName: "B", LeadPoints: 50})
	seed(t, db, domain.Referral{ID: "l-a", LeadName: "A", LeadPoints: 50})
	seed(t, db, domain.Referral{ID: "l-c", LeadName: "C", LeadPoints: 0})
	seed(t, db, domain.Referral{ID: "l-d", LeadName: "D", LeadPoints: 0, ReferredByLeadID: "l-c"})
	seed(t, db, domain.Referral{ID: "l-e", LeadName: "E", LeadPoints: 0})

	got, err := store.LeadRanking(context.Background(), storagetest.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"l-a", "l-b", "l-c"}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("rank %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if got[2].SubReferralCount != 1 {
		t.Errorf("l-c sub referrals = %d, want 1", got[2].SubReferralCount)
	}
}

func TestDueFollowUps(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	seed(t, db, domain.Referral{ID: "due", LeadName: "A", FollowUpDate: "2026-03-09"})
	seed(t, db, domain.Referral{ID: "today", LeadName: "B", FollowUpDate: "2026-03-10"})
	seed(t, db, domain.Referral{ID: "later", LeadName: "C", FollowUpDate: "2026-03-11"})
	seed(t, db, domain.Referral{ID: "none", LeadName: "D"})
	seed(t, db, domain.Referral{ID: "won", LeadName: "E", FollowUpDate: "2026-03-01", Status: domain.StatusConverted, ConvertedPlanID: "gold_corte"})

	got, err := store.DueFollowUps(context.Background(), storagetest.OrgID, "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "due" || got[1].ID != "today" {
		t.Errorf("got %v", got)
	}
}

func linkEvent(id, referralID string) history.Event {
	return history.NewEvent(id, referralID, history.EventReferringLeadChange, history.Actor{ID: "barber-1", Name: "Carlos"}, testNow)
}

func countEvents(t *testing.T, db *sql.DB, referralID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM lead_history WHERE referral_id = ? AND event_type = ?",
		referralID, string(history.EventReferringLeadChange)).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestLinkReferringLead_ChecksChainInsideWrite(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()
	seed(t, db, domain.Referral{ID: "a", LeadName: "Ana"})
	seed(t, db, domain.Referral{ID: "b", LeadName: "Bia", ReferredByLeadID: "a"})
	seed(t, db, domain.Referral{ID: "c", LeadName: "Caio", ReferredByLeadID: "b"})

	if err := store.LinkReferringLead(ctx, "a", "c", testNow, linkEvent("ev-1", "a")); !errors.Is(err, domain.ErrChainCycle) {
		t.Fatalf("err = %v, want ErrChainCycle", err)
	}
	if parent, _ := store.ReferredByLeadID(ctx, "a"); parent != "" || countEvents(t, db, "a") != 0 {
		t.Errorf("rejected link left parent %q or an event", parent)
	}

	if err := store.LinkReferringLead(ctx, "c", "a", testNow.Add(time.Minute), linkEvent("ev-2", "c")); err != nil {
		t.Fatalf("relink: %v", err)
	}
	got, _ := store.GetByID(ctx, "c")
	if got.ReferredByLeadID != "a" || !got.UpdatedAt.Equal(testNow.Add(time.Minute)) || countEvents(t, db, "c") != 1 {
		t.Errorf("after relink: %+v, events %d", got, countEvents(t, db, "c"))
	}

	if err := store.LinkReferringLead(ctx, "ghost", "", testNow, linkEvent("ev-3", "ghost")); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing err = %v, want sql.ErrNoRows", err)
	}
}

func TestLinkReferringLead_ConcurrentOppositeLinks(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()
	seed(t, db, domain.Referral{ID: "x", LeadName: "Xico"})
	seed(t, db, domain.Referral{ID: "y", LeadName: "Yara"})

	errs := make(chan error, 2)
	go func() { errs <- store.LinkReferringLead(ctx, "x", "y", testNow, linkEvent("ev-x", "x")) }()
	go func() { errs <- store.LinkReferringLead(ctx, "y", "x", testNow, linkEvent("ev-y", "y")) }()
	first, second := <-errs, <-errs
	if first == nil && second == nil {
		t.Fatal("both opposite links committed")
	}

	px, _ := store.ReferredByLeadID(ctx, "x")
	py, _ := store.ReferredByLeadID(ctx, "y")
	if px == "y" && py == "x" {
		t.Error("chain x -> y -> x was stored")
	}
}
