package overlay

import (
	"context"
	"sync"

	"growthgame/internal/domain/column"
	"growthgame/internal/domain/msgtemplate"
	"growthgame/internal/domain/plan"
	"growthgame/internal/domain/setting"
	"growthgame/internal/domain/tag"
)

// Organization groups the overlays shared by one organization.
type Organization struct {
	Tags          *List[tag.Tag]
	PlanOverrides *List[plan.OverrideEntry]
	Columns       *List[column.Column]
	Templates     *List[msgtemplate.Template]
}

// Document returns the list stored under key, or false for per-profile and
// unknown keys.
func (o *Organization) Document(key string) (Document, bool) {
	switch key {
	case setting.KeyTags:
		return o.Tags, true
	case setting.KeyPlanOverrides:
		return o.PlanOverrides, true
	case setting.KeyKanbanColumns:
		return o.Columns, true
	case setting.KeyMessageTemplates:
		return o.Templates, true
	}
	return nil, false
}

// Overrides returns the plan override patch map.
func (o *Organization) Overrides() map[string]plan.Override {
	return plan.OverrideMap(o.PlanOverrides.All())
}

// Manager lazily loads overlays per organization and per profile and shares
// one Syncer between them.
type Manager struct {
	store  SettingGetter
	syncer *Syncer

	mu         sync.Mutex
	orgs       map[string]*Organization
	dismissals map[string]*List[setting.Dismissal]
}

// NewManager creates a manager reading from store and writing via syncer.
func NewManager(store SettingGetter, syncer *Syncer) *Manager {
	return &Manager{
		store:      store,
		syncer:     syncer,
		orgs:       make(map[string]*Organization),
		dismissals: make(map[string]*List[setting.Dismissal]),
	}
}

// Organization returns the overlays of orgID, loading them on first use.
// PRE: orgID is non-empty
// POST: the same *Organization is returned on every later call
func (m *Manager) Organization(ctx context.Context, orgID string) (*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orgs[orgID]; ok {
		return o, nil
	}

	o := &Organization{
		Tags:          NewList(orgID, setting.KeyTags, tag.Defaults, m.syncer),
		PlanOverrides: NewList[plan.OverrideEntry](orgID, setting.KeyPlanOverrides, nil, m.syncer),
		Columns:       NewList(orgID, setting.KeyKanbanColumns, column.Defaults, m.syncer),
		Templates:     NewList(orgID, setting.KeyMessageTemplates, msgtemplate.Defaults, m.syncer),
	}
	loaders := []func(context.Context, SettingGetter) error{
		o.Tags.Load, o.PlanOverrides.Load, o.Columns.Load, o.Templates.Load,
	}
	for _, load := range loaders {
		if err := load(ctx, m.store); err != nil {
			return nil, err
		}
	}
	m.orgs[orgID] = o
	return o, nil
}

// Dismissals returns the dismissed follow-up notifications of profileID.
func (m *Manager) Dismissals(ctx context.Context, profileID string) (*List[setting.Dismissal], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.dismissals[profileID]; ok {
		return l, nil
	}
	l := NewList[setting.Dismissal](profileID, setting.KeyDismissedNotifications, nil, m.syncer)
	if err := l.Load(ctx, m.store); err != nil {
		return nil, err
	}
	m.dismissals[profileID] = l
	return l, nil
}

// DismissedIDs returns the set of referral ids profileID dismissed.
func (m *Manager) DismissedIDs(ctx context.Context, profileID string) (map[string]bool, error) {
	l, err := m.Dismissals(ctx, profileID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, d := range l.All() {
		ids[d.ReferralID] = true
	}
	return ids, nil
}

// Close flushes pending writes.
func (m *Manager) Close(ctx context.Context) error {
	return m.syncer.Close(ctx)
}
