package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"growthgame/internal/adapters/email"
	"growthgame/internal/domain/account"
	"growthgame/internal/domain/profile"
)

// DefaultTeamRetryDelay is how long AddTeamMember waits before its single retry.
const DefaultTeamRetryDelay = time.Second

// ErrSelfRemoval is returned when an admin tries to remove their own profile.
var ErrSelfRemoval = errors.New("cannot remove yourself from the team")

// TeamStore creates and deletes members atomically.
type TeamStore interface {
	CreateMember(ctx context.Context, a account.Account, p profile.Profile) error
	DeleteMember(ctx context.Context, profileID string) error
}

// AddTeamMemberInput carries input for AddTeamMember.
type AddTeamMemberInput struct {
	Actor    Principal
	Email    string
	FullName string
	Phone    string
	Role     string
	Password string
}

// AddTeamMemberDeps holds dependencies for AddTeamMember.
type AddTeamMemberDeps struct {
	Team          TeamStore
	Organizations OrganizationReader
	Mailer        email.Sender // nil skips the invite
	AppURL        string
	RetryDelay    time.Duration
	Sleep         func(ctx context.Context, d time.Duration) error
	Now           func() time.Time
	GenerateID    func() string
}

// ExecuteAddTeamMember creates the account, profile and role of a new team
// member and emails an invite.
// PRE: caller is owner or admin; only owners may add owners
// POST: the member exists or nothing was written; the invite is best-effort
func ExecuteAddTeamMember(ctx context.Context, input AddTeamMemberInput, deps AddTeamMemberDeps) (profile.Profile, error) {
	if err := requireAdmin(input.Actor); err != nil {
		return profile.Profile{}, err
	}
	if input.Role == profile.RoleOwner && input.Actor.Role != profile.RoleOwner {
		return profile.Profile{}, ErrForbidden
	}

	now := deps.Now()
	id := deps.GenerateID()
	acct := account.Account{
		ID:        id,
		Email:     account.NormalizeEmail(input.Email),
		CreatedAt: now,
	}
	if err := acct.Validate(); err != nil {
		return profile.Profile{}, err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return profile.Profile{}, err
	}
	p := profile.Profile{
		ID:             id,
		OrganizationID: input.Actor.OrganizationID,
		FullName:       strings.TrimSpace(input.FullName),
		Email:          acct.Email,
		Phone:          strings.TrimSpace(input.Phone),
		Role:           input.Role,
		CreatedAt:      now,
	}
	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}

	if err := createWithRetry(ctx, acct, p, deps); err != nil {
		return profile.Profile{}, err
	}
	slog.Info("team_event", "event", "member_added", "profile_id", p.ID, "role", p.Role, "by", input.Actor.ProfileID)

	sendInvite(ctx, p, deps)
	return p, nil
}

// createWithRetry retries a failed create once. A taken email is the
// caller's mistake and is never retried.
func createWithRetry(ctx context.Context, acct account.Account, p profile.Profile, deps AddTeamMemberDeps) error {
	err := deps.Team.CreateMember(ctx, acct, p)
	if err == nil {
		return nil
	}
	if errors.Is(err, account.ErrEmailTaken) {
		return fmt.Errorf("%w: %s", ErrEmailTaken, acct.Email)
	}
	slog.Warn("team_event", "event", "member_create_retry", "email", acct.Email, "error", err)

	delay := deps.RetryDelay
	if delay <= 0 {
		delay = DefaultTeamRetryDelay
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if serr := sleep(ctx, delay); serr != nil {
		return serr
	}
	if err := deps.Team.CreateMember(ctx, acct, p); err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			return fmt.Errorf("%w: %s", ErrEmailTaken, acct.Email)
		}
		slog.Error("team_event", "event", "member_create_failed", "email", acct.Email, "error", err)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func sendInvite(ctx context.Context, p profile.Profile, deps AddTeamMemberDeps) {
	if deps.Mailer == nil {
		return
	}
	orgName := p.OrganizationID
	if deps.Organizations != nil {
		if org, err := deps.Organizations.GetByID(ctx, p.OrganizationID); err == nil {
			orgName = org.Name
		}
	}
	req, err := email.RenderInvite(email.Invite{
		OrganizationName: orgName,
		FullName:         p.FullName,
		Email:            p.Email,
		Role:             p.Role,
		AppURL:           deps.AppURL,
	})
	if err == nil {
		_, err = deps.Mailer.Send(ctx, req)
	}
	if err != nil {
		slog.Warn("team_event", "event", "invite_failed", "profile_id", p.ID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RemoveTeamMemberInput carries input for RemoveTeamMember.
type RemoveTeamMemberInput struct {
	Actor    Principal
	TargetID string
}

// RemoveTeamMemberDeps holds dependencies for RemoveTeamMember.
type RemoveTeamMemberDeps struct {
	Team     TeamStore
	Profiles ProfileReader
}

// ExecuteRemoveTeamMember deletes a member's role, profile and account.
// Their referrals stay with referrer_id cleared.
// PRE: caller is owner or admin of the target's organization and not the target
// POST: no account, profile or role remains for TargetID
func ExecuteRemoveTeamMember(ctx context.Context, input RemoveTeamMemberInput, deps RemoveTeamMemberDeps) error {
	if err := requireAdmin(input.Actor); err != nil {
		return err
	}
	if input.TargetID == input.Actor.ProfileID {
		return ErrSelfRemoval
	}
	target, err := deps.Profiles.GetByID(ctx, input.TargetID)
	if err != nil {
		return notFound("profile "+input.TargetID, err)
	}
	if target.OrganizationID != input.Actor.OrganizationID {
		return fmt.Errorf("profile %s: %w", input.TargetID, ErrNotFound)
	}
	if target.Role == profile.RoleOwner && input.Actor.Role != profile.RoleOwner {
		return ErrForbidden
	}
	if err := deps.Team.DeleteMember(ctx, target.ID); err != nil {
		return notFoundOrWrite("profile "+target.ID, err)
	}
	slog.Info("team_event", "event", "member_removed", "profile_id", target.ID, "by", input.Actor.ProfileID)
	return nil
}
