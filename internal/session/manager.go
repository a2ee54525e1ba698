package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyhub-backend/internal/models"
)

// Manager owns at most one Tracker per signed-in user and is the only
// entry point the rest of the application uses to reach session state.
// Handlers receive read snapshots and a fixed set of actions; no other
// component mutates tracker state directly.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	clock    Clock
	store    Store
	notifier Notifier
	onEnd    func(ctx context.Context, userID uuid.UUID)

	trackers map[uuid.UUID]*Tracker
	runLoops bool
}

func NewManager(cfg Config, clock Clock, store Store, notifier Notifier, onEnd func(context.Context, uuid.UUID)) *Manager {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Manager{
		cfg:      cfg,
		clock:    clock,
		store:    store,
		notifier: notifier,
		onEnd:    onEnd,
		trackers: make(map[uuid.UUID]*Tracker),
		runLoops: true,
	}
}

// Start begins a session for userID on the given navigation path.
// No-ops (started=false) when there is no signed-in user or the path is
// not a study route. Any previously active session for the user is
// finalized first, and the store additionally closes stale rows so two
// racing starts cannot leave more than one open session.
func (m *Manager) Start(ctx context.Context, userID uuid.UUID, path string) (Snapshot, bool, error) {
	if userID == uuid.Nil || !QualifiesForTracking(path) {
		return Snapshot{}, false, nil
	}

	now := m.clock.Now()

	m.mu.Lock()
	prev := m.trackers[userID]
	delete(m.trackers, userID)
	m.mu.Unlock()

	if prev != nil {
		prev.End(ctx, now)
	}

	s := &models.StudySession{
		UserID:    userID,
		Category:  string(ClassifyPath(path)),
		StartedAt: now,
	}
	if err := m.store.Start(ctx, s); err != nil {
		return Snapshot{}, false, err
	}

	t := newTracker(m.cfg, m.store, m.notifier, m.onEnd, s)

	m.mu.Lock()
	m.trackers[userID] = t
	m.mu.Unlock()

	if m.runLoops {
		go m.runLoop(userID, t)
	}

	return t.Snapshot(now), true, nil
}

func (m *Manager) runLoop(userID uuid.UUID, t *Tracker) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopLoop:
			m.mu.Lock()
			if m.trackers[userID] == t {
				delete(m.trackers, userID)
			}
			m.mu.Unlock()
			return
		case <-ticker.C:
			t.Tick(context.Background(), m.clock.Now())
		}
	}
}

func (m *Manager) tracker(userID uuid.UUID) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trackers[userID]
}

// Current returns the snapshot of the user's active session, or an empty
// snapshot when none exists.
func (m *Manager) Current(userID uuid.UUID) (Snapshot, bool) {
	t := m.tracker(userID)
	if t == nil {
		return Snapshot{}, false
	}
	snap := t.Snapshot(m.clock.Now())
	return snap, snap.IsActive
}

func (m *Manager) RecordActivity(ctx context.Context, userID uuid.UUID) {
	if t := m.tracker(userID); t != nil {
		t.RecordActivity(ctx, m.clock.Now())
	}
}

func (m *Manager) TogglePause(ctx context.Context, userID uuid.UUID) (Snapshot, bool) {
	t := m.tracker(userID)
	if t == nil {
		return Snapshot{}, false
	}
	now := m.clock.Now()
	t.TogglePause(ctx, now)
	return t.Snapshot(now), true
}

func (m *Manager) SetHidden(userID uuid.UUID, hidden bool) {
	if t := m.tracker(userID); t != nil {
		t.SetHidden(m.clock.Now(), hidden)
	}
}

// ScheduleUpdate queues metadata for the user's active session (counters
// such as cards_reviewed). Also counts as an activity signal.
func (m *Manager) ScheduleUpdate(ctx context.Context, userID uuid.UUID, partial map[string]interface{}) bool {
	t := m.tracker(userID)
	if t == nil {
		return false
	}
	t.ScheduleUpdate(ctx, m.clock.Now(), partial)
	return true
}

// End finalizes the user's active session, if any.
func (m *Manager) End(ctx context.Context, userID uuid.UUID) (Snapshot, bool) {
	m.mu.Lock()
	t, ok := m.trackers[userID]
	if ok {
		delete(m.trackers, userID)
	}
	m.mu.Unlock()

	if !ok {
		return Snapshot{}, false
	}

	now := m.clock.Now()
	t.End(ctx, now)
	return t.Snapshot(now), true
}

// Beacon is the best-effort page-unload write: finalize whatever is
// open and swallow every failure. At-most-once, no delivery guarantee.
func (m *Manager) Beacon(ctx context.Context, userID uuid.UUID) {
	m.mu.Lock()
	t, ok := m.trackers[userID]
	if ok {
		delete(m.trackers, userID)
	}
	m.mu.Unlock()

	if ok {
		t.EndWith(ctx, m.clock.Now(), "unload")
	}
}

// Shutdown finalizes every open session; called on server teardown so no
// session is left open indefinitely.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		trackers = append(trackers, t)
	}
	m.trackers = make(map[uuid.UUID]*Tracker)
	m.mu.Unlock()

	now := m.clock.Now()
	for _, t := range trackers {
		t.EndWith(ctx, now, "unload")
	}
}
