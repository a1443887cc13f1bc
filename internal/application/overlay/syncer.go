package overlay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"growthgame/internal/domain/setting"
)

// DefaultDelay is how long a key must stay quiet before it is written.
const DefaultDelay = 500 * time.Millisecond

// SettingSaver is the store method the syncer writes through.
type SettingSaver interface {
	Save(ctx context.Context, value setting.Setting) error
}

type settingKey struct {
	scope string
	key   string
}

type pendingWrite struct {
	value string
	timer *time.Timer
}

// Syncer debounces overlay writes per (scope, key). Each Schedule call
// restarts the key's timer; only the last value reaches the store.
// INVARIANT: at most one pending write exists per (scope, key)
type Syncer struct {
	store SettingSaver
	delay time.Duration
	now   func() time.Time

	mu      sync.Mutex
	pending map[settingKey]*pendingWrite
	closed  bool
	wg      sync.WaitGroup
}

// NewSyncer creates a syncer. A non-positive delay selects DefaultDelay.
func NewSyncer(store SettingSaver, delay time.Duration, now func() time.Time) *Syncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		store:   store,
		delay:   delay,
		now:     now,
		pending: make(map[settingKey]*pendingWrite),
	}
}

// Schedule records value as the latest document for (scope, key).
// PRE: value is a JSON document
// POST: a write of value happens after the delay unless superseded
func (s *Syncer) Schedule(scope, key, value string) {
	k := settingKey{scope: scope, key: key}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.write(context.Background(), k, value)
		return
	}
	if p, ok := s.pending[k]; ok {
		p.value = value
		p.timer.Reset(s.delay)
		return
	}
	s.wg.Add(1)
	s.pending[k] = &pendingWrite{
		value: value,
		timer: time.AfterFunc(s.delay, func() { s.fire(k) }),
	}
}

func (s *Syncer) fire(k settingKey) {
	s.mu.Lock()
	p, ok := s.pending[k]
	if ok {
		delete(s.pending, k)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	defer s.wg.Done()
	s.write(context.Background(), k, p.value)
}

// Pending reports how many keys are waiting to be written.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes every pending value now.
// POST: Pending() == 0; returns the first store error
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[settingKey]*pendingWrite)
	s.mu.Unlock()

	var firstErr error
	for k, p := range batch {
		// A timer that already fired finds its entry gone and returns
		// without calling Done.
		p.timer.Stop()
		s.wg.Done()
		if err := s.write(ctx, k, p.value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes pending writes and makes later Schedule calls write
// synchronously.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.Flush(ctx)
	s.wg.Wait()
	return err
}

func (s *Syncer) write(ctx context.Context, k settingKey, value string) error {
	err := s.store.Save(ctx, setting.Setting{
		ScopeID:   k.scope,
		Key:       k.key,
		Value:     value,
		UpdatedAt: s.now(),
	})
	if err != nil {
		slog.Error("overlay_event", "event", "sync_failed", "scope", k.scope, "key", k.key, "error", err)
		return err
	}
	slog.Debug("overlay_event", "event", "synced", "scope", k.scope, "key", k.key)
	return nil
}
