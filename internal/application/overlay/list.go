// Package overlay holds the in-memory configuration lists (tags, plan
// overrides, kanban columns, message templates, dismissed notifications)
// and syncs them to crm_settings through a debounced Syncer.
package overlay

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"growthgame/internal/domain/setting"
)

// Errors
var (
	ErrItemNotFound = errors.New("overlay item not found")
	ErrDuplicateID  = errors.New("overlay item id already exists")
	ErrEmptyID      = errors.New("overlay item id is required")
)

// Item is one entry of an overlay list.
type Item interface {
	ItemID() string
	Validate() error
}

// SettingGetter loads the persisted document of a list.
type SettingGetter interface {
	Get(ctx context.Context, scopeID, key string) (setting.Setting, error)
}

// Document is the untyped view of a list used by the settings endpoints.
type Document interface {
	JSON() ([]byte, error)
	ReplaceJSON(data []byte) error
	Reset()
}

// List is a debounced, concurrency-safe overlay list.
// INVARIANT: item ids are unique and non-empty
type List[T Item] struct {
	scope    string
	key      string
	defaults func() []T
	syncer   *Syncer

	mu    sync.RWMutex
	items []T
}

// NewList creates a list holding the defaults. Call Load to read the
// persisted document.
func NewList[T Item](scope, key string, defaults func() []T, syncer *Syncer) *List[T] {
	if defaults == nil {
		defaults = func() []T { return nil }
	}
	return &List[T]{scope: scope, key: key, defaults: defaults, syncer: syncer, items: defaults()}
}

// Load replaces the in-memory items with the stored document. A missing
// document keeps the defaults.
// PRE: store is reachable
// POST: items reflect the store, or the defaults when nothing is stored
func (l *List[T]) Load(ctx context.Context, store SettingGetter) error {
	st, err := store.Get(ctx, l.scope, l.key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", l.key, err)
	}
	var items []T
	if err := json.Unmarshal([]byte(st.Value), &items); err != nil {
		return fmt.Errorf("decode %s: %w", l.key, err)
	}
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
	return nil
}

// All returns a copy of the items in order.
func (l *List[T]) All() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Get returns the item with id.
func (l *List[T]) Get(id string) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexOf(id); i >= 0 {
		return l.items[i], true
	}
	var zero T
	return zero, false
}

// Add appends item.
// PRE: item is valid and its id is unused
// POST: item is last in the list; a write is scheduled
func (l *List[T]) Add(item T) error {
	if err := checkItem(item); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOf(item.ItemID()) >= 0 {
		return ErrDuplicateID
	}
	l.items = append(l.items, item)
	l.schedule()
	return nil
}

// Update replaces the item with the same id.
func (l *List[T]) Update(item T) error {
	if err := checkItem(item); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(item.ItemID())
	if i < 0 {
		return ErrItemNotFound
	}
	l.items[i] = item
	l.schedule()
	return nil
}

// Upsert updates the item with the same id or appends it.
func (l *List[T]) Upsert(item T) error {
	if err := checkItem(item); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(item.ItemID()); i >= 0 {
		l.items[i] = item
	} else {
		l.items = append(l.items, item)
	}
	l.schedule()
	return nil
}

// Remove deletes the item with id.
func (l *List[T]) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return ErrItemNotFound
	}
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	l.schedule()
	return nil
}

// Reset restores the defaults.
func (l *List[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = l.defaults()
	l.schedule()
}

// Replace swaps the whole list.
// PRE: every item is valid and ids are unique
// POST: the list equals items, or is unchanged on error
func (l *List[T]) Replace(items []T) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if err := checkItem(it); err != nil {
			return err
		}
		if seen[it.ItemID()] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, it.ItemID())
		}
		seen[it.ItemID()] = true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]T(nil), items...)
	l.schedule()
	return nil
}

// JSON encodes the items.
func (l *List[T]) JSON() ([]byte, error) {
	items := l.All()
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// ReplaceJSON decodes data and replaces the list with it.
func (l *List[T]) ReplaceJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: %v", setting.ErrInvalidValue, err)
	}
	return l.Replace(items)
}

func (l *List[T]) indexOf(id string) int {
	for i, it := range l.items {
		if it.ItemID() == id {
			return i
		}
	}
	return -1
}

// schedule must be called with l.mu held.
func (l *List[T]) schedule() {
	if l.syncer == nil {
		return
	}
	items := l.items
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	l.syncer.Schedule(l.scope, l.key, string(data))
}

func checkItem(item Item) error {
	if item.ItemID() == "" {
		return ErrEmptyID
	}
	return item.Validate()
}
