package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"studyhub-backend/internal/models"
)

var testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestTracker(store *fakeStore, notifier *fakeNotifier) *Tracker {
	cfg := DefaultConfig()
	cfg.FlushInterval = testFlushInterval

	s := &models.StudySession{
		UserID:    uuid.New(),
		Category:  string(CategoryFlashcards),
		StartedAt: testStart,
	}
	if err := store.Start(context.Background(), s); err != nil {
		panic(err)
	}

	var n Notifier
	if notifier != nil {
		n = notifier
	}
	return newTracker(cfg, store, n, nil, s)
}

func at(d time.Duration) time.Time { return testStart.Add(d) }

func TestIdleTransitionsFollowStagedSchedule(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	tr := newTestTracker(store, notifier)

	tr.Tick(ctx, at(119*time.Second))
	if snap := tr.Snapshot(at(119 * time.Second)); snap.State != "active" {
		t.Fatalf("expected active before warning time, got %s", snap.State)
	}

	tr.Tick(ctx, at(120*time.Second))
	if snap := tr.Snapshot(at(120 * time.Second)); snap.State != "idle_warned" {
		t.Fatalf("expected idle_warned at warning time, got %s", snap.State)
	}

	tr.Tick(ctx, at(179*time.Second))
	if snap := tr.Snapshot(at(179 * time.Second)); snap.State != "idle_warned" {
		t.Fatalf("expected idle_warned during grace window, got %s", snap.State)
	}

	tr.Tick(ctx, at(180*time.Second))
	snap := tr.Snapshot(at(180 * time.Second))
	if snap.State != "auto_paused" {
		t.Fatalf("expected auto_paused after grace window, got %s", snap.State)
	}
	if !snap.IsPaused {
		t.Error("expected IsPaused after auto pause")
	}

	types := notifier.types()
	if len(types) < 2 || types[0] != "idle_warning" || types[1] != "auto_paused" {
		t.Errorf("expected [idle_warning auto_paused] notices in order, got %v", types)
	}
}

func TestLargeClockJumpNeverSkipsWarningStage(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	tr := newTestTracker(store, notifier)

	// A single tick 10 minutes in must pass through IdleWarned on its
	// way to AutoPaused.
	tr.Tick(ctx, at(10*time.Minute))

	if snap := tr.Snapshot(at(10 * time.Minute)); snap.State != "auto_paused" {
		t.Fatalf("expected auto_paused after jump, got %s", snap.State)
	}

	types := notifier.types()
	if len(types) != 2 || types[0] != "idle_warning" || types[1] != "auto_paused" {
		t.Errorf("expected warning before pause even on a jump, got %v", types)
	}
}

func TestActivityResetsIdleWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	tr.Tick(ctx, at(120*time.Second))
	if snap := tr.Snapshot(at(120 * time.Second)); snap.State != "idle_warned" {
		t.Fatalf("expected idle_warned, got %s", snap.State)
	}

	tr.RecordActivity(ctx, at(150*time.Second))
	if snap := tr.Snapshot(at(150 * time.Second)); snap.State != "active" {
		t.Fatalf("expected activity to clear warning, got %s", snap.State)
	}

	// The originally scheduled auto-pause at t=180s must not happen.
	tr.Tick(ctx, at(180*time.Second))
	if snap := tr.Snapshot(at(180 * time.Second)); snap.State != "active" {
		t.Fatalf("expected active at the old auto-pause time, got %s", snap.State)
	}

	// The idle window restarts from the activity call.
	tr.Tick(ctx, at(270*time.Second))
	if snap := tr.Snapshot(at(270 * time.Second)); snap.State != "idle_warned" {
		t.Fatalf("expected re-warning 120s after activity, got %s", snap.State)
	}
}

func TestInactivityTimeoutEndsSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	tr.Tick(ctx, at(15*time.Minute))

	snap := tr.Snapshot(at(15 * time.Minute))
	if snap.IsActive {
		t.Fatal("expected session ended after inactivity timeout")
	}

	if len(store.finishes) != 1 || store.finishes[0].reason != "inactivity" {
		t.Fatalf("expected one inactivity finish, got %+v", store.finishes)
	}
}

func TestMaxDurationCapsElapsed(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	// Stay active past the cap: activity every 10 minutes.
	for i := 1; i <= 19; i++ {
		now := at(time.Duration(i) * 10 * time.Minute)
		tr.RecordActivity(ctx, now)
		tr.Tick(ctx, now)
	}

	snap := tr.Snapshot(at(19 * 10 * time.Minute))
	if snap.IsActive {
		t.Fatal("expected session ended at max duration")
	}

	if len(store.finishes) != 1 {
		t.Fatalf("expected one finish, got %d", len(store.finishes))
	}
	if store.finishes[0].reason != "max_duration" {
		t.Errorf("expected max_duration reason, got %s", store.finishes[0].reason)
	}
	if store.finishes[0].elapsed != int(DefaultMaxSessionDuration/time.Second) {
		t.Errorf("expected elapsed capped at %d, got %d",
			int(DefaultMaxSessionDuration/time.Second), store.finishes[0].elapsed)
	}
}

func TestClockJumpBeyondCapStillClamps(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	tr.RecordActivity(ctx, at(4*time.Hour))
	tr.Tick(ctx, at(4*time.Hour))

	if len(store.finishes) != 1 {
		t.Fatalf("expected session finished, got %d finishes", len(store.finishes))
	}
	if got := store.finishes[0].elapsed; got != int(DefaultMaxSessionDuration/time.Second) {
		t.Errorf("expected elapsed clamped to cap, got %d", got)
	}
}

func TestEndClampsToAtLeastOneSecond(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	tr.End(ctx, testStart)

	if len(store.finishes) != 1 {
		t.Fatalf("expected one finish, got %d", len(store.finishes))
	}
	if got := store.finishes[0].elapsed; got != 1 {
		t.Errorf("expected minimum 1s elapsed, got %d", got)
	}
	if store.finishes[0].reason != "user" {
		t.Errorf("expected user end reason, got %s", store.finishes[0].reason)
	}
}

func TestHiddenSuspendsAccrualWithoutTransition(t *testing.T) {
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	tr.SetHidden(at(60*time.Second), true)
	tr.SetHidden(at(110*time.Second), false)

	snap := tr.Snapshot(at(120 * time.Second))
	if snap.State != "active" {
		t.Errorf("visibility change must not force a transition, got %s", snap.State)
	}
	// 60s visible + 10s visible after unhide; the 50s hidden gap does
	// not accrue.
	if snap.ElapsedSeconds != 70 {
		t.Errorf("expected 70s elapsed, got %d", snap.ElapsedSeconds)
	}
}

func TestIdlePauseResumeScenario(t *testing.T) {
	// Spec-level walkthrough: warn at 120s, pause at 180s, resume via
	// activity at 200s, re-warn 120s later.
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	tr.Tick(ctx, at(120*time.Second))
	tr.Tick(ctx, at(180*time.Second))
	if snap := tr.Snapshot(at(180 * time.Second)); !snap.IsPaused {
		t.Fatal("expected paused at t=180s")
	}

	tr.RecordActivity(ctx, at(200*time.Second))
	snap := tr.Snapshot(at(200 * time.Second))
	if snap.IsPaused {
		t.Fatal("expected resume to clear pause")
	}
	if snap.State != "active" {
		t.Fatalf("expected active after resume, got %s", snap.State)
	}

	tr.Tick(ctx, at(319*time.Second))
	if snap := tr.Snapshot(at(319 * time.Second)); snap.State != "active" {
		t.Fatalf("expected active before restarted idle window expires, got %s", snap.State)
	}

	tr.Tick(ctx, at(320*time.Second))
	if snap := tr.Snapshot(at(320 * time.Second)); snap.State != "idle_warned" {
		t.Fatalf("expected idle window restarted from t=200s, got %s", snap.State)
	}
}

func TestTogglePauseSharesPausedFlag(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	if paused := tr.TogglePause(ctx, at(30*time.Second)); !paused {
		t.Fatal("expected first toggle to pause")
	}
	if snap := tr.Snapshot(at(40 * time.Second)); !snap.IsPaused {
		t.Fatal("expected IsPaused after manual pause")
	}

	// No accrual while manually paused.
	snap := tr.Snapshot(at(90 * time.Second))
	if snap.ElapsedSeconds != 30 {
		t.Errorf("expected accrual frozen at 30s, got %d", snap.ElapsedSeconds)
	}

	if paused := tr.TogglePause(ctx, at(90*time.Second)); paused {
		t.Fatal("expected second toggle to resume")
	}
	if snap := tr.Snapshot(at(90 * time.Second)); snap.IsPaused {
		t.Fatal("expected pause cleared after resume")
	}
}

func TestScheduleUpdateCountsAsActivity(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	tr := newTestTracker(store, nil)

	tr.Tick(ctx, at(120*time.Second))
	if snap := tr.Snapshot(at(120 * time.Second)); snap.State != "idle_warned" {
		t.Fatalf("expected idle_warned, got %s", snap.State)
	}

	tr.ScheduleUpdate(ctx, at(130*time.Second), map[string]interface{}{"cards_reviewed": 5})
	if snap := tr.Snapshot(at(130 * time.Second)); snap.State != "active" {
		t.Fatalf("expected metadata update to reset idle state, got %s", snap.State)
	}
}

func TestManagerEnforcesSingleActiveSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	clock := newFakeClock(testStart)

	cfg := DefaultConfig()
	cfg.FlushInterval = testFlushInterval

	m := NewManager(cfg, clock, store, nil, nil)
	m.runLoops = false

	userID := uuid.New()
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		if _, started, err := m.Start(ctx, userID, "/flashcards"); err != nil || !started {
			t.Fatalf("start %d failed: started=%v err=%v", i, started, err)
		}
		if got := store.openCount(); got > 1 {
			t.Fatalf("more than one active session after start %d: %d", i, got)
		}
	}

	if len(store.started) != 3 {
		t.Errorf("expected 3 created sessions, got %d", len(store.started))
	}
	if len(store.finishes) != 2 {
		t.Errorf("expected 2 prior sessions finalized, got %d", len(store.finishes))
	}
}

func TestManagerNoOpsWithoutUserOrStudyRoute(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	m := NewManager(DefaultConfig(), newFakeClock(testStart), store, nil, nil)
	m.runLoops = false

	if _, started, _ := m.Start(ctx, uuid.Nil, "/flashcards"); started {
		t.Error("expected no session without a signed-in user")
	}
	if _, started, _ := m.Start(ctx, uuid.New(), "/settings"); started {
		t.Error("expected no session on a non-study route")
	}
	if got := store.openCount(); got != 0 {
		t.Errorf("expected no persisted sessions, got %d", got)
	}
}

func TestManagerEndAndBeacon(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	clock := newFakeClock(testStart)

	cfg := DefaultConfig()
	cfg.FlushInterval = testFlushInterval

	m := NewManager(cfg, clock, store, nil, nil)
	m.runLoops = false

	userID := uuid.New()
	m.Start(ctx, userID, "/notes")
	clock.Advance(5 * time.Minute)

	snap, ok := m.End(ctx, userID)
	if !ok || snap.IsActive {
		t.Fatalf("expected ended snapshot, ok=%v active=%v", ok, snap.IsActive)
	}
	if snap.ElapsedSeconds != 300 {
		t.Errorf("expected 300s elapsed, got %d", snap.ElapsedSeconds)
	}
	if _, ok := m.Current(userID); ok {
		t.Error("expected no current session after end")
	}

	// Beacon is best-effort: tolerant of nothing being open.
	m.Beacon(ctx, userID)

	m.Start(ctx, userID, "/quiz/1")
	m.Beacon(ctx, userID)
	last := store.finishes[len(store.finishes)-1]
	if last.reason != "unload" {
		t.Errorf("expected unload reason from beacon, got %s", last.reason)
	}
}
