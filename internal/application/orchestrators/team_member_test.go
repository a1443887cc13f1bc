package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"growthgame/internal/adapters/email"
	"growthgame/internal/domain/profile"
)

func teamDeps(db *memDB, mailer email.Sender, slept *[]time.Duration) AddTeamMemberDeps {
	return AddTeamMemberDeps{
		Team:          db,
		Organizations: orgsView{db},
		Mailer:        mailer,
		AppURL:        "https://indica.example.com",
		RetryDelay:    time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
		Now:        nowFunc,
		GenerateID: seqIDs("member"),
	}
}

func newMemberInput(actor Principal, role string) AddTeamMemberInput {
	return AddTeamMemberInput{
		Actor: actor, Email: " Joao@Example.com ", FullName: "João Lima", Phone: "11912345678",
		Role: role, Password: "navalha123",
	}
}

func TestAddTeamMember_CreatesAndInvites(t *testing.T) {
	db := newMemDB()
	mailer := email.NewNoopSender()
	var slept []time.Duration

	p, err := ExecuteAddTeamMember(context.Background(), newMemberInput(admin, profile.RoleBarber), teamDeps(db, mailer, &slept))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Email != "joao@example.com" || p.OrganizationID != testOrg || p.Role != profile.RoleBarber {
		t.Errorf("profile = %+v", p)
	}
	acct, ok := db.accounts[p.ID]
	if !ok || acct.CheckPassword("navalha123") != nil {
		t.Error("account missing or password not set")
	}
	if len(slept) != 0 {
		t.Errorf("unexpected retry: %v", slept)
	}
	sent := mailer.Sent()
	if len(sent) != 1 || len(sent[0].To) != 1 || sent[0].To[0] != "joao@example.com" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].HTML, "Barbearia Central") {
		t.Errorf("invite should name the organization: %s", sent[0].HTML)
	}
}

func TestAddTeamMember_RetriesOnce(t *testing.T) {
	db := newMemDB()
	db.createErr = []error{errors.New("database is locked")}
	var slept []time.Duration

	if _, err := ExecuteAddTeamMember(context.Background(), newMemberInput(owner, profile.RoleAdmin), teamDeps(db, nil, &slept)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Errorf("slept = %v, want one 1s wait", slept)
	}

	db2 := newMemDB()
	db2.createErr = []error{errors.New("database is locked"), errors.New("database is locked")}
	slept = nil
	_, err := ExecuteAddTeamMember(context.Background(), newMemberInput(owner, profile.RoleAdmin), teamDeps(db2, nil, &slept))
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("err = %v, want ErrWriteFailed", err)
	}
	if len(db2.accounts) != 0 {
		t.Error("failed add left an account")
	}
}

func TestAddTeamMember_TakenEmailIsNotRetried(t *testing.T) {
	db := newMemDB()
	var slept []time.Duration
	if _, err := ExecuteAddTeamMember(context.Background(), newMemberInput(owner, profile.RoleBarber), teamDeps(db, nil, &slept)); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, err := ExecuteAddTeamMember(context.Background(), newMemberInput(owner, profile.RoleBarber), teamDeps(db, nil, &slept))
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
	if errors.Is(err, ErrWriteFailed) {
		t.Error("taken email must not be reported as a write failure")
	}
	if len(slept) != 0 {
		t.Errorf("slept = %v, want no retry", slept)
	}
	if len(db.accounts) != 1 {
		t.Errorf("accounts = %d, want 1", len(db.accounts))
	}
}

func TestAddTeamMember_Permissions(t *testing.T) {
	var slept []time.Duration
	tests := []struct {
		name  string
		actor Principal
		role  string
		want  error
	}{
		{"barber cannot add", barber, profile.RoleBarber, ErrForbidden},
		{"admin cannot add owner", admin, profile.RoleOwner, ErrForbidden},
		{"anonymous", Principal{}, profile.RoleBarber, ErrUnauthorized},
		{"bad role", owner, "manager", profile.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			_, err := ExecuteAddTeamMember(context.Background(), newMemberInput(tt.actor, tt.role), teamDeps(db, nil, &slept))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	db := newMemDB()
	if _, err := ExecuteAddTeamMember(context.Background(), newMemberInput(owner, profile.RoleOwner), teamDeps(db, nil, &slept)); err != nil {
		t.Errorf("owner adding owner: %v", err)
	}
}

func TestRemoveTeamMember(t *testing.T) {
	db := newMemDB()
	db.profiles["stranger"] = profile.Profile{ID: "stranger", OrganizationID: "org-2", FullName: "X", Role: profile.RoleBarber}
	deps := RemoveTeamMemberDeps{Team: db, Profiles: profilesView{db}}
	ctx := context.Background()

	tests := []struct {
		name  string
		input RemoveTeamMemberInput
		want  error
	}{
		{"self", RemoveTeamMemberInput{Actor: admin, TargetID: admin.ProfileID}, ErrSelfRemoval},
		{"barber caller", RemoveTeamMemberInput{Actor: barber, TargetID: admin.ProfileID}, ErrForbidden},
		{"admin removes owner", RemoveTeamMemberInput{Actor: admin, TargetID: owner.ProfileID}, ErrForbidden},
		{"other organization", RemoveTeamMemberInput{Actor: admin, TargetID: "stranger"}, ErrNotFound},
		{"missing", RemoveTeamMemberInput{Actor: admin, TargetID: "ghost"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ExecuteRemoveTeamMember(ctx, tt.input, deps); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := ExecuteRemoveTeamMember(ctx, RemoveTeamMemberInput{Actor: admin, TargetID: barber.ProfileID}, deps); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := db.profiles[barber.ProfileID]; ok {
		t.Error("profile still present")
	}
}
