package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"growthgame/internal/domain/organization"
	"growthgame/internal/domain/referral"
)

// DefaultFollowUpInterval is how often due follow-ups are pushed.
const DefaultFollowUpInterval = time.Minute

// FollowUpDue is pushed to a profile for each referral awaiting contact.
type FollowUpDue struct {
	Type         string `json:"type"`
	ReferralID   string `json:"referral_id"`
	LeadName     string `json:"lead_name"`
	LeadPhone    string `json:"lead_phone"`
	FollowUpDate string `json:"follow_up_date"`
	FollowUpNote string `json:"follow_up_note"`
}

// NotificationPublisher delivers a payload to every connection of a profile.
type NotificationPublisher interface {
	Publish(profileID string, payload any) int
}

type followUpOrganizations interface {
	List(ctx context.Context) ([]organization.Organization, error)
}

type followUpReferrals interface {
	DueFollowUps(ctx context.Context, organizationID, onOrBefore string) ([]referral.Referral, error)
}

// DismissalSource returns the referral ids a profile dismissed.
type DismissalSource interface {
	DismissedIDs(ctx context.Context, profileID string) (map[string]bool, error)
}

// FollowUpNotifyDeps holds dependencies for the follow-up push.
type FollowUpNotifyDeps struct {
	Organizations followUpOrganizations
	Referrals     followUpReferrals
	Dismissals    DismissalSource
	Publisher     NotificationPublisher
	Now           func() time.Time
}

// ExecuteNotifyFollowUps pushes every due, undismissed follow-up to the
// profile that referred it. Referrals without a referrer profile are skipped.
// PRE: deps are initialized
// POST: returns the number of notifications delivered to live connections
func ExecuteNotifyFollowUps(ctx context.Context, deps FollowUpNotifyDeps) (int, error) {
	orgs, err := deps.Organizations.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list organizations: %w", err)
	}
	today := deps.Now().Format("2006-01-02")

	delivered := 0
	for _, org := range orgs {
		due, err := deps.Referrals.DueFollowUps(ctx, org.ID, today)
		if err != nil {
			return delivered, fmt.Errorf("due follow-ups for %s: %w", org.ID, err)
		}
		dismissed := make(map[string]map[string]bool)
		for _, r := range due {
			if r.ReferrerID == "" {
				continue
			}
			ids, ok := dismissed[r.ReferrerID]
			if !ok {
				ids, err = deps.Dismissals.DismissedIDs(ctx, r.ReferrerID)
				if err != nil {
					return delivered, err
				}
				dismissed[r.ReferrerID] = ids
			}
			if ids[r.ID] {
				continue
			}
			delivered += deps.Publisher.Publish(r.ReferrerID, FollowUpDue{
				Type:         "follow_up_due",
				ReferralID:   r.ID,
				LeadName:     r.LeadName,
				LeadPhone:    r.LeadPhone,
				FollowUpDate: r.FollowUpDate,
				FollowUpNote: r.FollowUpNote,
			})
		}
	}
	return delivered, nil
}

// StartFollowUpNotifier starts a background goroutine that pushes due
// follow-ups every interval.
// PRE: Context is valid, deps are initialized
// POST: Goroutine started, returns cancel function
func StartFollowUpNotifier(ctx context.Context, deps FollowUpNotifyDeps, interval time.Duration) func() {
	if interval <= 0 {
		interval = DefaultFollowUpInterval
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := ExecuteNotifyFollowUps(ctx, deps)
				if err != nil {
					slog.Error("notify_event", "event", "follow_up_push_failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Debug("notify_event", "event", "follow_ups_pushed", "count", n)
				}
			}
		}
	}()

	return cancel
}
