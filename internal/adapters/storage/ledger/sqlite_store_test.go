package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"growthgame/internal/adapters/storage/storagetest"
	"growthgame/internal/domain/history"
	domain "growthgame/internal/domain/ledger"
	"growthgame/internal/domain/referral"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	db    *sql.DB
	store *SQLiteStore
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storagetest.Open(t)
	storagetest.AddProfile(t, db, "barber-1", "Carlos", "barber")
	return &fixture{db: db, store: NewSQLiteStore(db)}
}

func (f *fixture) id(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fixture) event(referralID string, typ history.EventType) history.Event {
	return history.NewEvent(f.id("evt"), referralID, typ, history.Actor{ID: "barber-1", Name: "Carlos"}, testNow)
}

// register applies a creation mutation with the registration bonus.
func (f *fixture) register(t *testing.T, r referral.Referral, award domain.Award) domain.Result {
	t.Helper()
	r.OrganizationID = storagetest.OrgID
	r.Status = referral.StatusNew
	r.CreatedAt, r.UpdatedAt = testNow, testNow
	m := domain.Mutation{
		Referral: r,
		Create:   true,
		Awards:   []domain.Award{award},
		Event:    f.event(r.ID, history.EventCreated),
		EntryIDs: []string{f.id("entry")},
		At:       testNow,
	}
	res, err := f.store.Apply(context.Background(), m)
	if err != nil {
		t.Fatalf("register %s: %v", r.ID, err)
	}
	return res
}

func (f *fixture) convert(r referral.Referral, expect string, awards ...domain.Award) (domain.Result, error) {
	r.Status = referral.StatusConverted
	r.ConvertedPlanID = "gold_corte"
	ids := make([]string, len(awards))
	for i := range ids {
		ids[i] = f.id("entry")
	}
	return f.store.Apply(context.Background(), domain.Mutation{
		Referral:     r,
		ExpectStatus: expect,
		Awards:       awards,
		Event:        f.event(r.ID, history.EventConversion),
		EntryIDs:     ids,
		At:           testNow,
	})
}

func (f *fixture) counters(t *testing.T, profileID string) (wallet, lifetime int) {
	t.Helper()
	if err := f.db.QueryRow("SELECT wallet_balance, lifetime_points FROM profiles WHERE id = ?", profileID).Scan(&wallet, &lifetime); err != nil {
		t.Fatalf("read counters: %v", err)
	}
	return wallet, lifetime
}

func (f *fixture) leadPoints(t *testing.T, referralID string) int {
	t.Helper()
	var pts int
	if err := f.db.QueryRow("SELECT lead_points FROM referrals WHERE id = ?", referralID).Scan(&pts); err != nil {
		t.Fatalf("read lead points: %v", err)
	}
	return pts
}

func bonus(kind domain.BeneficiaryKind, id string) domain.Award {
	return domain.Award{Kind: kind, BeneficiaryID: id, Reason: domain.ReasonRegistrationBonus, Points: 10}
}

func conversion(kind domain.BeneficiaryKind, id string, pts int) domain.Award {
	return domain.Award{Kind: kind, BeneficiaryID: id, Reason: domain.ReasonConversion, Points: pts}
}

func TestApply_RegisterCreditsProfile(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, referral.Referral{ID: "ref-1", ReferrerID: "barber-1", LeadName: "Ana", LeadPhone: "11999990000"},
		bonus(domain.BeneficiaryProfile, "barber-1"))

	if res.PointsAwarded != 10 || len(res.Entries) != 1 {
		t.Fatalf("result = %+v, want 10 points in one entry", res)
	}
	wallet, lifetime := f.counters(t, "barber-1")
	if wallet != 10 || lifetime != 10 {
		t.Errorf("counters = %d/%d, want 10/10", wallet, lifetime)
	}
	var events int
	f.db.QueryRow("SELECT COUNT(*) FROM lead_history WHERE referral_id = 'ref-1'").Scan(&events)
	if events != 1 {
		t.Errorf("history events = %d, want 1", events)
	}
}

func TestApply_ConversionIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	r := referral.Referral{ID: "ref-1", ReferrerID: "barber-1", LeadName: "Ana", LeadPhone: "11999990000"}
	f.register(t, r, bonus(domain.BeneficiaryProfile, "barber-1"))

	res, err := f.convert(r, referral.StatusNew, conversion(domain.BeneficiaryProfile, "barber-1", 80))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if res.PointsAwarded != 80 {
		t.Errorf("PointsAwarded = %d, want 80", res.PointsAwarded)
	}

	// Second attempt from the same starting status loses the CAS.
	if _, err := f.convert(r, referral.StatusNew, conversion(domain.BeneficiaryProfile, "barber-1", 80)); !errors.Is(err, domain.ErrStaleStatus) {
		t.Fatalf("err = %v, want ErrStaleStatus", err)
	}
	wallet, lifetime := f.counters(t, "barber-1")
	if wallet != 90 || lifetime != 90 {
		t.Errorf("counters = %d/%d, want 90/90", wallet, lifetime)
	}
}

func TestApply_ReconversionAfterUndoAwardsNothing(t *testing.T) {
	f := newFixture(t)
	r := referral.Referral{ID: "ref-1", ReferrerID: "barber-1", LeadName: "Ana", LeadPhone: "11999990000"}
	f.register(t, r, bonus(domain.BeneficiaryProfile, "barber-1"))
	if _, err := f.convert(r, referral.StatusNew, conversion(domain.BeneficiaryProfile, "barber-1", 80)); err != nil {
		t.Fatal(err)
	}

	undo := r
	undo.Status = referral.StatusContacted
	if _, err := f.store.Apply(context.Background(), domain.Mutation{
		Referral: undo, ExpectStatus: referral.StatusConverted,
		Event: f.event(r.ID, history.EventStatusChange), At: testNow,
	}); err != nil {
		t.Fatalf("undo: %v", err)
	}

	res, err := f.convert(r, referral.StatusContacted, conversion(domain.BeneficiaryProfile, "barber-1", 80))
	if err != nil {
		t.Fatalf("reconvert: %v", err)
	}
	if res.PointsAwarded != 0 {
		t.Errorf("PointsAwarded = %d, want 0", res.PointsAwarded)
	}
	var status string
	f.db.QueryRow("SELECT status FROM referrals WHERE id = 'ref-1'").Scan(&status)
	if status != referral.StatusConverted {
		t.Errorf("status = %q, want converted", status)
	}
	if _, lifetime := f.counters(t, "barber-1"); lifetime != 90 {
		t.Errorf("lifetime = %d, want 90", lifetime)
	}
}

func TestApply_LeadPathCreditsReferringLead(t *testing.T) {
	f := newFixture(t)
	parent := referral.Referral{ID: "lead-1", ReferrerID: "barber-1", LeadName: "Ana", LeadPhone: "11999990000"}
	f.register(t, parent, bonus(domain.BeneficiaryProfile, "barber-1"))
	child := referral.Referral{ID: "lead-2", ReferrerID: "barber-1", ReferrerName: "Ana", ReferredByLeadID: "lead-1", LeadName: "Bruno", LeadPhone: "11988880000"}
	f.register(t, child, bonus(domain.BeneficiaryLead, "lead-1"))

	if _, err := f.convert(child, referral.StatusNew, conversion(domain.BeneficiaryLead, "lead-1", 80)); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got := f.leadPoints(t, "lead-1"); got != 90 {
		t.Errorf("lead_points = %d, want 90", got)
	}
	if _, lifetime := f.counters(t, "barber-1"); lifetime != 10 {
		t.Errorf("barber lifetime = %d, want 10 (only the first registration)", lifetime)
	}
}

func TestApply_RollsBackOnMissingBeneficiary(t *testing.T) {
	f := newFixture(t)
	m := domain.Mutation{
		Referral: referral.Referral{ID: "ref-1", OrganizationID: storagetest.OrgID, ReferrerID: "barber-1", LeadName: "Ana",
			LeadPhone: "11999990000", Status: referral.StatusNew, CreatedAt: testNow, UpdatedAt: testNow},
		Create:   true,
		Awards:   []domain.Award{bonus(domain.BeneficiaryProfile, "ghost")},
		Event:    f.event("ref-1", history.EventCreated),
		EntryIDs: []string{"entry-x"},
		At:       testNow,
	}
	if _, err := f.store.Apply(context.Background(), m); !errors.Is(err, domain.ErrBeneficiaryNotFound) {
		t.Fatalf("err = %v, want ErrBeneficiaryNotFound", err)
	}
	var n int
	f.db.QueryRow("SELECT COUNT(*) FROM referrals").Scan(&n)
	if n != 0 {
		t.Errorf("referral row survived rollback")
	}
	f.db.QueryRow("SELECT COUNT(*) FROM points_entries").Scan(&n)
	if n != 0 {
		t.Errorf("ledger entry survived rollback")
	}
}

func TestApply_MissingReferral(t *testing.T) {
	f := newFixture(t)
	r := referral.Referral{ID: "nope", OrganizationID: storagetest.OrgID, LeadName: "X", LeadPhone: "1"}
	if _, err := f.convert(r, referral.StatusNew); !errors.Is(err, domain.ErrReferralNotFound) {
		t.Fatalf("err = %v, want ErrReferralNotFound", err)
	}
}

func TestLedgerSumsMatchCounters(t *testing.T) {
	f := newFixture(t)
	storagetest.AddProfile(t, f.db, "barber-2", "Diego", "barber")
	parent := referral.Referral{ID: "lead-1", ReferrerID: "barber-1", LeadName: "Ana", LeadPhone: "1"}
	f.register(t, parent, bonus(domain.BeneficiaryProfile, "barber-1"))
	f.register(t, referral.Referral{ID: "lead-2", ReferrerID: "barber-2", LeadName: "Bia", LeadPhone: "2"}, bonus(domain.BeneficiaryProfile, "barber-2"))
	child := referral.Referral{ID: "lead-3", ReferrerID: "barber-2", ReferredByLeadID: "lead-1", LeadName: "Caio", LeadPhone: "3"}
	f.register(t, child, bonus(domain.BeneficiaryLead, "lead-1"))
	f.convert(parent, referral.StatusNew, conversion(domain.BeneficiaryProfile, "barber-1", 120))
	f.convert(child, referral.StatusNew, conversion(domain.BeneficiaryLead, "lead-1", 50),
		domain.Award{Kind: domain.BeneficiaryProfile, BeneficiaryID: "barber-2", Reason: domain.ReasonStaffShare, Points: 5})

	ctx := context.Background()
	for _, id := range []string{"barber-1", "barber-2"} {
		entries, err := f.store.ListByBeneficiary(ctx, domain.BeneficiaryProfile, id)
		if err != nil {
			t.Fatal(err)
		}
		sum := 0
		for _, e := range entries {
			sum += e.Points
		}
		if _, lifetime := f.counters(t, id); lifetime != sum {
			t.Errorf("%s lifetime = %d, ledger sum = %d", id, lifetime, sum)
		}
	}
	entries, _ := f.store.ListByBeneficiary(ctx, domain.BeneficiaryLead, "lead-1")
	sum := 0
	for _, e := range entries {
		sum += e.Points
	}
	if got := f.leadPoints(t, "lead-1"); got != sum || sum != 60 {
		t.Errorf("lead-1 lead_points = %d, ledger sum = %d, want 60", got, sum)
	}

	total, err := f.store.TotalAwarded(ctx, storagetest.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	if total != 10+10+10+120+50+5 {
		t.Errorf("TotalAwarded = %d, want 205", total)
	}
	has, _ := f.store.HasEntry(ctx, domain.IdempotencyKey(domain.ReasonConversion, "lead-3"))
	if !has {
		t.Error("HasEntry(conversion:lead-3) = false")
	}
	byRef, _ := f.store.ListByReferral(ctx, "lead-3")
	if len(byRef) != 3 {
		t.Errorf("ListByReferral(lead-3) = %d entries, want 3", len(byRef))
	}
}
