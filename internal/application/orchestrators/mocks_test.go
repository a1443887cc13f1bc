package orchestrators

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"growthgame/internal/domain/account"
	"growthgame/internal/domain/history"
	"growthgame/internal/domain/ledger"
	"growthgame/internal/domain/organization"
	"growthgame/internal/domain/plan"
	"growthgame/internal/domain/profile"
	"growthgame/internal/domain/referral"
	"growthgame/internal/domain/setting"
)

const testOrg = "org-1"

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func nowFunc() time.Time { return testNow }

// seqIDs returns a generator producing prefix-1, prefix-2, ...
func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var (
	owner  = Principal{ProfileID: "owner-1", OrganizationID: testOrg, Name: "Rafael", Role: profile.RoleOwner}
	admin  = Principal{ProfileID: "admin-1", OrganizationID: testOrg, Name: "Paula", Role: profile.RoleAdmin}
	barber = Principal{ProfileID: "barber-1", OrganizationID: testOrg, Name: "Carlos", Role: profile.RoleBarber}
)

// memDB is an in-memory stand-in for the SQLite stores. Apply honours the
// status compare-and-set and the ledger idempotency keys.
type memDB struct {
	mu        sync.Mutex
	referrals map[string]referral.Referral
	profiles  map[string]profile.Profile
	accounts  map[string]account.Account
	orgs      map[string]organization.Organization
	entries   map[string]ledger.Entry
	events    []history.Event
	applyErr  error
	updateErr error // returned by UpdateDetails and LinkReferringLead
	createErr []error // consumed by CreateMember in order
}

func newMemDB() *memDB {
	db := &memDB{
		referrals: map[string]referral.Referral{},
		profiles:  map[string]profile.Profile{},
		accounts:  map[string]account.Account{},
		orgs:      map[string]organization.Organization{testOrg: {ID: testOrg, Name: "Barbearia Central", CreatedAt: testNow}},
		entries:   map[string]ledger.Entry{},
	}
	for _, p := range []Principal{owner, admin, barber} {
		db.profiles[p.ProfileID] = profile.Profile{ID: p.ProfileID, OrganizationID: p.OrganizationID, FullName: p.Name, Role: p.Role}
	}
	return db
}

func notFoundErr(what string) error {
	return fmt.Errorf("%s not found: %w", what, sql.ErrNoRows)
}

// --- ReferralReader / details / delete ---

func (m *memDB) GetByID(_ context.Context, id string) (referral.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok {
		return referral.Referral{}, notFoundErr("referral")
	}
	return r, nil
}

func (m *memDB) ReferredByLeadID(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok {
		return "", notFoundErr("referral")
	}
	return r.ReferredByLeadID, nil
}

// LinkReferringLead mirrors the SQLite store: write, then walk the chain.
func (m *memDB) LinkReferringLead(_ context.Context, id, leadID string, at time.Time, event history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.referrals[id]
	if !ok {
		return notFoundErr("referral")
	}
	lookup := func(rid string) (string, error) {
		if rid == id {
			return leadID, nil
		}
		r, ok := m.referrals[rid]
		if !ok {
			return "", notFoundErr("referral")
		}
		return r.ReferredByLeadID, nil
	}
	if err := referral.CheckChain(id, leadID, lookup); err != nil {
		return err
	}
	cur.ReferredByLeadID = leadID
	cur.UpdatedAt = at
	m.referrals[id] = cur
	m.events = append(m.events, event)
	return nil
}

func (m *memDB) UpdateDetails(_ context.Context, r referral.Referral, events []history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.referrals[r.ID]
	if !ok {
		return notFoundErr("referral")
	}
	r.Status, r.ConvertedPlanID, r.LeadPoints = cur.Status, cur.ConvertedPlanID, cur.LeadPoints
	m.referrals[r.ID] = r
	m.events = append(m.events, events...)
	return nil
}

func (m *memDB) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.referrals[id]; !ok {
		return notFoundErr("referral")
	}
	delete(m.referrals, id)
	for k, r := range m.referrals {
		if r.ReferredByLeadID == id {
			r.ReferredByLeadID = ""
			m.referrals[k] = r
		}
	}
	return nil
}

func (m *memDB) DueFollowUps(_ context.Context, orgID, onOrBefore string) ([]referral.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []referral.Referral
	for _, r := range m.referrals {
		if r.OrganizationID == orgID && r.FollowUpDate != "" && r.FollowUpDate <= onOrBefore && !r.IsConverted() {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- LedgerStore ---

func (m *memDB) Apply(_ context.Context, mut ledger.Mutation) (ledger.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return ledger.Result{}, m.applyErr
	}
	if err := mut.Validate(); err != nil {
		return ledger.Result{}, err
	}

	// Work on copies so a failure leaves nothing behind.
	referrals := make(map[string]referral.Referral, len(m.referrals))
	for k, v := range m.referrals {
		referrals[k] = v
	}
	profiles := make(map[string]profile.Profile, len(m.profiles))
	for k, v := range m.profiles {
		profiles[k] = v
	}

	r := mut.Referral
	if mut.Create {
		if _, exists := referrals[r.ID]; exists {
			return ledger.Result{}, fmt.Errorf("duplicate referral %s", r.ID)
		}
		referrals[r.ID] = r
	} else {
		cur, ok := referrals[r.ID]
		if !ok {
			return ledger.Result{}, ledger.ErrReferralNotFound
		}
		if cur.Status != mut.ExpectStatus {
			return ledger.Result{}, ledger.ErrStaleStatus
		}
		cur.Status, cur.ConvertedPlanID, cur.UpdatedAt = r.Status, r.ConvertedPlanID, mut.At
		referrals[r.ID] = cur
	}

	var res ledger.Result
	var added []ledger.Entry
	for i, a := range mut.Awards {
		key := ledger.IdempotencyKey(a.Reason, r.ID)
		if _, dup := m.entries[key]; dup {
			continue
		}
		switch a.Kind {
		case ledger.BeneficiaryProfile:
			p, ok := profiles[a.BeneficiaryID]
			if !ok {
				return ledger.Result{}, ledger.ErrBeneficiaryNotFound
			}
			p.Award(a.Points)
			profiles[p.ID] = p
		case ledger.BeneficiaryLead:
			lead, ok := referrals[a.BeneficiaryID]
			if !ok {
				return ledger.Result{}, ledger.ErrBeneficiaryNotFound
			}
			lead.LeadPoints += a.Points
			referrals[lead.ID] = lead
		}
		e := ledger.Entry{ID: mut.EntryIDs[i], OrganizationID: r.OrganizationID, ReferralID: r.ID, Kind: a.Kind,
			BeneficiaryID: a.BeneficiaryID, Reason: a.Reason, Points: a.Points, IdempotencyKey: key, CreatedAt: mut.At}
		added = append(added, e)
		res.Entries = append(res.Entries, e)
		res.PointsAwarded += a.Points
	}

	m.referrals, m.profiles = referrals, profiles
	for _, e := range added {
		m.entries[e.IdempotencyKey] = e
	}
	m.events = append(m.events, mut.Event)
	return res, nil
}

func (m *memDB) HasEntry(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *memDB) ledgerSum(kind ledger.BeneficiaryKind, id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, e := range m.entries {
		if e.Kind == kind && e.BeneficiaryID == id {
			sum += e.Points
		}
	}
	return sum
}

func (m *memDB) eventsOf(referralID string, t history.EventType) []history.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Event
	for _, e := range m.events {
		if e.ReferralID == referralID && e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- History ---

func (m *memDB) Append(_ context.Context, e history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// profilesView is a ProfileReader view over memDB.
type profilesView struct{ db *memDB }

func (v profilesView) GetByID(_ context.Context, id string) (profile.Profile, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	p, ok := v.db.profiles[id]
	if !ok {
		return profile.Profile{}, notFoundErr("profile")
	}
	return p, nil
}

// orgsView is an OrganizationReader view over memDB.
type orgsView struct{ db *memDB }

func (v orgsView) GetByID(_ context.Context, id string) (organization.Organization, error) {
	o, ok := v.db.orgs[id]
	if !ok {
		return organization.Organization{}, notFoundErr("organization")
	}
	return o, nil
}

func (v orgsView) List(_ context.Context) ([]organization.Organization, error) {
	var out []organization.Organization
	for _, o := range v.db.orgs {
		out = append(out, o)
	}
	return out, nil
}

func (v orgsView) Save(_ context.Context, o organization.Organization) error {
	v.db.orgs[o.ID] = o
	return nil
}

// --- TeamStore ---

func (m *memDB) CreateMember(_ context.Context, a account.Account, p profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createErr) > 0 {
		err := m.createErr[0]
		m.createErr = m.createErr[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("insert account: %w", account.ErrEmailTaken)
		}
	}
	m.accounts[a.ID] = a
	m.profiles[p.ID] = p
	return nil
}

func (m *memDB) DeleteMember(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return notFoundErr("profile")
	}
	delete(m.profiles, id)
	delete(m.accounts, id)
	return nil
}

// accountsView implements the account store methods over memDB.
type accountsView struct{ db *memDB }

func (v accountsView) GetByEmail(_ context.Context, email string) (account.Account, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	for _, a := range v.db.accounts {
		if a.Email == account.NormalizeEmail(email) {
			return a, nil
		}
	}
	return account.Account{}, notFoundErr("account")
}

func (v accountsView) Save(_ context.Context, a account.Account) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	v.db.accounts[a.ID] = a
	return nil
}

func (v accountsView) Count(_ context.Context) (int, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	return len(v.db.accounts), nil
}

// catalogPlans resolves plans against the built-in catalog and fixed overrides.
type catalogPlans struct {
	catalog   *plan.Catalog
	overrides map[string]plan.Override
}

func newCatalogPlans() catalogPlans {
	c, err := plan.DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return catalogPlans{catalog: c, overrides: map[string]plan.Override{}}
}

func (c catalogPlans) ResolvePlan(_ context.Context, _, id string) (plan.Plan, error) {
	return c.catalog.Resolve(id, c.overrides)
}

func (c catalogPlans) Plans(_ context.Context, _ string) ([]plan.Plan, error) {
	return c.catalog.Plans(c.overrides), nil
}

func planOverride(points *int, active *bool) plan.Override {
	return plan.Override{Points: points, Active: active}
}

// memSettings backs overlay managers in tests.
type memSettings struct {
	mu   sync.Mutex
	docs map[string]setting.Setting
}

func newMemSettings() *memSettings {
	return &memSettings{docs: map[string]setting.Setting{}}
}

func (m *memSettings) Get(_ context.Context, scope, key string) (setting.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.docs[scope+"/"+key]
	if !ok {
		return setting.Setting{}, notFoundErr("setting")
	}
	return st, nil
}

func (m *memSettings) Save(_ context.Context, st setting.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[st.ScopeID+"/"+st.Key] = st
	return nil
}

func (m *memSettings) value(scope, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[scope+"/"+key].Value
}
