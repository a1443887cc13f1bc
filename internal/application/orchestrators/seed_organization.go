package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"growthgame/internal/domain/account"
	"growthgame/internal/domain/organization"
	"growthgame/internal/domain/profile"
)

// SeedOrganizationInput names the first organization and its owner.
type SeedOrganizationInput struct {
	OrganizationName string
	OwnerName        string
	OwnerEmail       string
	OwnerPassword    string
}

type seedOrganizationStore interface {
	Save(ctx context.Context, o organization.Organization) error
}

type seedAccountCounter interface {
	Count(ctx context.Context) (int, error)
}

// SeedOrganizationDeps holds stores needed for first-run seeding.
type SeedOrganizationDeps struct {
	Organizations seedOrganizationStore
	Accounts      seedAccountCounter
	Team          TeamStore
	Now           func() time.Time
	GenerateID    func() string
}

// ExecuteSeedOrganization creates the first organization and its owner on an
// empty database. It does nothing once any account exists.
// PRE: Database is migrated
// POST: at least one organization with an owner exists; returns whether it
// seeded
func ExecuteSeedOrganization(ctx context.Context, input SeedOrganizationInput, deps SeedOrganizationDeps) (bool, error) {
	n, err := deps.Accounts.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if input.OwnerEmail == "" || input.OwnerPassword == "" {
		return false, errors.New("owner email and password are required to seed an empty database")
	}

	now := deps.Now()
	org := organization.Organization{ID: deps.GenerateID(), Name: input.OrganizationName, CreatedAt: now}
	if err := org.Validate(); err != nil {
		return false, err
	}
	ownerID := deps.GenerateID()
	acct := account.Account{ID: ownerID, Email: account.NormalizeEmail(input.OwnerEmail), CreatedAt: now}
	if err := acct.Validate(); err != nil {
		return false, err
	}
	if err := acct.SetPassword(input.OwnerPassword); err != nil {
		return false, err
	}
	owner := profile.Profile{
		ID:             ownerID,
		OrganizationID: org.ID,
		FullName:       input.OwnerName,
		Email:          acct.Email,
		Role:           profile.RoleOwner,
		CreatedAt:      now,
	}
	if err := owner.Validate(); err != nil {
		return false, err
	}

	if err := deps.Organizations.Save(ctx, org); err != nil {
		return false, fmt.Errorf("save organization: %w", err)
	}
	if err := deps.Team.CreateMember(ctx, acct, owner); err != nil {
		return false, fmt.Errorf("create owner: %w", err)
	}
	slog.Info("seed_event", "event", "organization_seeded", "organization_id", org.ID, "owner_email", acct.Email)
	return true, nil
}
