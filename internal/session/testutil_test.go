package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyhub-backend/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type finishCall struct {
	sessionID uuid.UUID
	userID    uuid.UUID
	elapsed   int
	reason    string
}

// fakeStore mimics the repository semantics the tracker relies on:
// starting a session closes any still-open rows for the same user.
type fakeStore struct {
	mu       sync.Mutex
	open     map[uuid.UUID]uuid.UUID // sessionID -> userID, still active
	started  []*models.StudySession
	updates  []map[string]interface{}
	finishes []finishCall
	applyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{open: make(map[uuid.UUID]uuid.UUID)}
}

func (f *fakeStore) Start(ctx context.Context, s *models.StudySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, userID := range f.open {
		if userID == s.UserID {
			delete(f.open, id)
		}
	}

	s.ID = uuid.New()
	s.LastActivityAt = s.StartedAt
	f.open[s.ID] = s.UserID
	f.started = append(f.started, s)
	return nil
}

func (f *fakeStore) ApplyUpdates(ctx context.Context, sessionID, userID uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.applyErr != nil {
		return f.applyErr
	}

	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	f.updates = append(f.updates, copied)
	return nil
}

func (f *fakeStore) Finish(ctx context.Context, sessionID, userID uuid.UUID, elapsedSeconds int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.open, sessionID)
	f.finishes = append(f.finishes, finishCall{
		sessionID: sessionID,
		userID:    userID,
		elapsed:   elapsedSeconds,
		reason:    reason,
	})
	return nil
}

func (f *fakeStore) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

func (f *fakeStore) setApplyErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyErr = err
}

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeStore) lastUpdate() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []models.WSMessage
}

func (n *fakeNotifier) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, len(n.messages))
	for i, m := range n.messages {
		out[i] = m.Type
	}
	return out
}
