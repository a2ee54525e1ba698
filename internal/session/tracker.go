package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyhub-backend/internal/models"
)

// Timing defaults; all of them are overridable through Config.
const (
	DefaultMaxSessionDuration = 3 * time.Hour
	DefaultInactivityTimeout  = 15 * time.Minute
	DefaultIdleWarningTime    = 2 * time.Minute
	DefaultAutoPauseGrace     = 1 * time.Minute
	DefaultFlushInterval      = 5 * time.Second
	DefaultTickInterval       = time.Second
)

type Config struct {
	MaxSessionDuration time.Duration
	InactivityTimeout  time.Duration
	IdleWarningTime    time.Duration
	AutoPauseGrace     time.Duration
	FlushInterval      time.Duration
	TickInterval       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSessionDuration: DefaultMaxSessionDuration,
		InactivityTimeout:  DefaultInactivityTimeout,
		IdleWarningTime:    DefaultIdleWarningTime,
		AutoPauseGrace:     DefaultAutoPauseGrace,
		FlushInterval:      DefaultFlushInterval,
		TickInterval:       DefaultTickInterval,
	}
}

// Store is the persistence surface the tracker needs. The repository
// enforces the one-active-session-per-user invariant on Start and clamps
// elapsed seconds on Finish.
type Store interface {
	UpdateStore
	Start(ctx context.Context, s *models.StudySession) error
	Finish(ctx context.Context, sessionID, userID uuid.UUID, elapsedSeconds int, reason string) error
}

// Notifier pushes session notices to the user, typically via the
// websocket hub's pub/sub channel.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// Snapshot is a read-only view of a tracker's current state.
type Snapshot struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	IsActive       bool      `json:"is_active"`
	IsPaused       bool      `json:"is_paused"`
	State          string    `json:"state"`
	Category       Category  `json:"category"`
	StartTime      time.Time `json:"start_time"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
}

// Tracker owns the in-memory state of one study session: the idle state
// machine, elapsed-time accrual and the batched writer. Every transition
// runs under one mutex, so interleaved ticks and handler calls are
// strictly ordered, and all timing comes in through the caller so tests
// can drive a fake clock.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	store    Store
	writer   *Writer
	notifier Notifier
	onEnd    func(ctx context.Context, userID uuid.UUID)

	id       uuid.UUID
	userID   uuid.UUID
	category Category

	state        State
	startTime    time.Time
	lastActivity time.Time

	accrued     time.Duration
	accrualMark time.Time
	hidden      bool
	manualPause bool
	idlePause   bool

	stopLoop chan struct{}
}

func newTracker(cfg Config, store Store, notifier Notifier, onEnd func(context.Context, uuid.UUID), s *models.StudySession) *Tracker {
	return &Tracker{
		cfg:          cfg,
		store:        store,
		writer:       NewWriter(store, s.ID, s.UserID, cfg.FlushInterval),
		notifier:     notifier,
		onEnd:        onEnd,
		id:           s.ID,
		userID:       s.UserID,
		category:     Category(s.Category),
		state:        StateActive,
		startTime:    s.StartedAt,
		lastActivity: s.StartedAt,
		accrualMark:  s.StartedAt,
		stopLoop:     make(chan struct{}),
	}
}

func (t *Tracker) isPausedLocked() bool { return t.manualPause || t.idlePause }

func (t *Tracker) accruingLocked() bool {
	return !t.hidden && !t.isPausedLocked() && t.state != StateEnded
}

// advanceAccrualLocked credits wall-clock time since the last mark,
// capped at the maximum session duration. No accrual happens while the
// page is hidden or the session is paused.
func (t *Tracker) advanceAccrualLocked(now time.Time) {
	if t.accruingLocked() && now.After(t.accrualMark) {
		t.accrued += now.Sub(t.accrualMark)
		if t.accrued > t.cfg.MaxSessionDuration {
			t.accrued = t.cfg.MaxSessionDuration
		}
	}
	t.accrualMark = now
}

// Tick drives the idle state machine forward to now. Stages are applied
// in order, so even a large clock jump passes through IdleWarned before
// AutoPaused.
func (t *Tracker) Tick(ctx context.Context, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateEnded {
		return
	}

	t.advanceAccrualLocked(now)
	idle := now.Sub(t.lastActivity)

	if t.state == StateActive && idle >= t.cfg.IdleWarningTime {
		t.state = Transition(t.state, EventIdleWarning)
		t.notifyLocked(ctx, "idle_warning", "Still there? Your session will pause soon.")
	}

	if t.state == StateIdleWarned && idle >= t.cfg.IdleWarningTime+t.cfg.AutoPauseGrace {
		t.state = Transition(t.state, EventAutoPause)
		t.idlePause = true
		t.accrualMark = now
		t.notifyLocked(ctx, "auto_paused", "Session paused due to inactivity.")
		t.writer.ScheduleUpdate(map[string]interface{}{"is_paused": true})
	}

	if idle >= t.cfg.InactivityTimeout {
		t.finishLocked(ctx, now, "inactivity")
		return
	}

	if t.accrued >= t.cfg.MaxSessionDuration {
		t.finishLocked(ctx, now, "max_duration")
		return
	}

	t.writer.ScheduleUpdate(map[string]interface{}{
		"elapsed_seconds": int(t.accrued / time.Second),
	})
}

// RecordActivity registers a user interaction. Idempotent: it resets the
// idle window, clears any idle-driven pause and returns the session to
// Active.
func (t *Tracker) RecordActivity(ctx context.Context, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordActivityLocked(ctx, now)
}

func (t *Tracker) recordActivityLocked(ctx context.Context, now time.Time) {
	if t.state == StateEnded {
		return
	}

	t.advanceAccrualLocked(now)
	prev := t.state
	t.lastActivity = now
	t.state = Transition(t.state, EventActivity)

	if t.idlePause {
		t.idlePause = false
		t.accrualMark = now
		t.writer.ScheduleUpdate(map[string]interface{}{"is_paused": t.isPausedLocked()})
		t.notifyLocked(ctx, "resumed", "Welcome back, session resumed.")
	} else if prev == StateIdleWarned {
		t.notifyLocked(ctx, "warning_cleared", "")
	}

	t.writer.ScheduleUpdate(map[string]interface{}{"last_activity_at": now})
}

// TogglePause flips the explicit user-driven pause. It shares the
// persisted is_paused flag with idle auto-pause but is independent of the
// idle timers; toggling counts as an interaction either way.
func (t *Tracker) TogglePause(ctx context.Context, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateEnded {
		return false
	}

	t.advanceAccrualLocked(now)
	t.manualPause = !t.manualPause
	t.lastActivity = now

	if !t.manualPause {
		t.idlePause = false
		t.state = Transition(t.state, EventActivity)
		t.accrualMark = now
	}

	t.writer.ScheduleUpdate(map[string]interface{}{"is_paused": t.isPausedLocked()})
	return t.manualPause
}

// SetHidden suspends elapsed-time accrual while the page is hidden. It
// never forces a state transition; becoming visible again only re-arms
// accrual and activity recording.
func (t *Tracker) SetHidden(now time.Time, hidden bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateEnded || t.hidden == hidden {
		return
	}

	t.advanceAccrualLocked(now)
	t.hidden = hidden
	t.accrualMark = now
}

// ScheduleUpdate queues session metadata (review counters and the like)
// for the next batched flush. Counts as an activity signal.
func (t *Tracker) ScheduleUpdate(ctx context.Context, now time.Time, partial map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateEnded {
		return
	}

	t.recordActivityLocked(ctx, now)
	t.writer.ScheduleUpdate(partial)
}

// End finalizes the session on explicit user request.
func (t *Tracker) End(ctx context.Context, now time.Time) {
	t.EndWith(ctx, now, "user")
}

// EndWith finalizes the session with an explicit reason, e.g. "unload"
// for the best-effort page-teardown write.
func (t *Tracker) EndWith(ctx context.Context, now time.Time, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishLocked(ctx, now, reason)
}

func (t *Tracker) finishLocked(ctx context.Context, now time.Time, reason string) {
	if t.state == StateEnded {
		return
	}

	t.advanceAccrualLocked(now)
	t.state = StateEnded
	close(t.stopLoop)

	// Final elapsed time is clamped to [1s, MaxSessionDuration].
	elapsed := t.accrued
	if elapsed < time.Second {
		elapsed = time.Second
	}
	if elapsed > t.cfg.MaxSessionDuration {
		elapsed = t.cfg.MaxSessionDuration
	}
	t.accrued = elapsed

	t.writer.Stop(ctx)

	if err := t.store.Finish(ctx, t.id, t.userID, int(elapsed/time.Second), reason); err != nil {
		log.Printf("session %s: failed to finalize (%s): %v", t.id, reason, err)
	}

	if t.notifier != nil {
		t.notifier.Publish(ctx, t.userID, models.WSMessage{
			Type: "session_ended",
			Payload: models.SessionEnded{
				SessionID:      t.id,
				ElapsedSeconds: int(elapsed / time.Second),
				Reason:         reason,
			},
		})
	}

	if t.onEnd != nil {
		t.onEnd(ctx, t.userID)
	}
}

// Snapshot returns a read-only view of the session as of now.
func (t *Tracker) Snapshot(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.accrued
	if t.accruingLocked() && now.After(t.accrualMark) {
		elapsed += now.Sub(t.accrualMark)
		if elapsed > t.cfg.MaxSessionDuration {
			elapsed = t.cfg.MaxSessionDuration
		}
	}

	return Snapshot{
		ID:             t.id,
		UserID:         t.userID,
		IsActive:       t.state != StateEnded,
		IsPaused:       t.isPausedLocked(),
		State:          t.state.String(),
		Category:       t.category,
		StartTime:      t.startTime,
		ElapsedSeconds: int(elapsed / time.Second),
	}
}

func (t *Tracker) notifyLocked(ctx context.Context, noticeType, message string) {
	if t.notifier == nil {
		return
	}

	t.notifier.Publish(ctx, t.userID, models.WSMessage{
		Type: noticeType,
		Payload: models.SessionNotice{
			SessionID: t.id,
			State:     t.state.String(),
			Message:   message,
		},
	})
}
