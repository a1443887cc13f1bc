package orchestrators

import (
	"context"
	"sync"
	"testing"
	"time"

	"growthgame/internal/domain/referral"
	"growthgame/internal/domain/setting"
)

type fakePublisher struct {
	mu   sync.Mutex
	sent map[string][]any
	live map[string]bool
}

func newFakePublisher(live ...string) *fakePublisher {
	p := &fakePublisher{sent: map[string][]any{}, live: map[string]bool{}}
	for _, id := range live {
		p.live[id] = true
	}
	return p
}

func (p *fakePublisher) Publish(profileID string, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[profileID] = append(p.sent[profileID], payload)
	if p.live[profileID] {
		return 1
	}
	return 0
}

func (p *fakePublisher) count(profileID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent[profileID])
}

func seedFollowUp(db *memDB, id, referrer, date string) {
	seedReferral(db, id, "")
	r := db.referrals[id]
	r.ReferrerID = referrer
	r.FollowUpDate = date
	r.FollowUpNote = "ligar depois das 18h"
	db.referrals[id] = r
}

func TestNotifyFollowUps_SkipsDismissedAndFuture(t *testing.T) {
	db := newMemDB()
	seedFollowUp(db, "due", barber.ProfileID, "2026-03-10")
	seedFollowUp(db, "overdue", barber.ProfileID, "2026-03-01")
	seedFollowUp(db, "future", barber.ProfileID, "2026-03-11")
	seedFollowUp(db, "dismissed", barber.ProfileID, "2026-03-09")
	seedFollowUp(db, "orphan", "", "2026-03-09")
	seedFollowUp(db, "admins", admin.ProfileID, "2026-03-10")

	overlays := newTestOverlays(t, newMemSettings())
	dismissals, err := overlays.Dismissals(context.Background(), barber.ProfileID)
	if err != nil {
		t.Fatal(err)
	}
	if err := dismissals.Add(setting.Dismissal{ReferralID: "dismissed", DismissedAt: testNow}); err != nil {
		t.Fatal(err)
	}

	pub := newFakePublisher(barber.ProfileID)
	n, err := ExecuteNotifyFollowUps(context.Background(), FollowUpNotifyDeps{
		Organizations: orgsView{db}, Referrals: db, Dismissals: overlays, Publisher: pub, Now: nowFunc,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}
	if got := pub.count(barber.ProfileID); got != 2 {
		t.Errorf("barber payloads = %d, want 2", got)
	}
	if got := pub.count(admin.ProfileID); got != 1 {
		t.Errorf("admin payloads = %d, want 1 (offline)", got)
	}
	for _, p := range pub.sent[barber.ProfileID] {
		if f := p.(FollowUpDue); f.ReferralID == "dismissed" || f.ReferralID == "future" || f.Type != "follow_up_due" {
			t.Errorf("unexpected payload %+v", f)
		}
	}
}

func TestNotifyFollowUps_IgnoresConverted(t *testing.T) {
	db := newMemDB()
	seedFollowUp(db, "sold", barber.ProfileID, "2026-03-01")
	r := db.referrals["sold"]
	r.Status, r.ConvertedPlanID = referral.StatusConverted, "gold_corte"
	db.referrals["sold"] = r

	pub := newFakePublisher(barber.ProfileID)
	n, err := ExecuteNotifyFollowUps(context.Background(), FollowUpNotifyDeps{
		Organizations: orgsView{db}, Referrals: db, Dismissals: newTestOverlays(t, newMemSettings()), Publisher: pub, Now: nowFunc,
	})
	if err != nil || n != 0 {
		t.Errorf("notify = %d, %v; want 0", n, err)
	}
}

func TestStartFollowUpNotifier_PushesAndStops(t *testing.T) {
	db := newMemDB()
	seedFollowUp(db, "due", barber.ProfileID, "2026-03-10")
	pub := newFakePublisher(barber.ProfileID)

	cancel := StartFollowUpNotifier(context.Background(), FollowUpNotifyDeps{
		Organizations: orgsView{db}, Referrals: db, Dismissals: newTestOverlays(t, newMemSettings()), Publisher: pub, Now: nowFunc,
	}, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for pub.count(barber.ProfileID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if pub.count(barber.ProfileID) == 0 {
		t.Fatal("notifier never pushed")
	}
}
