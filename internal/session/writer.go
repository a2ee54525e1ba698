package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UpdateStore persists coalesced session field updates.
type UpdateStore interface {
	ApplyUpdates(ctx context.Context, sessionID, userID uuid.UUID, fields map[string]interface{}) error
}

// Writer coalesces frequent in-memory session updates into periodic store
// writes. Updates are shallow-merged (last write wins per key) and flushed
// at a fixed interval; a failed flush re-queues the merged payload at the
// front of the buffer so it is retried on the next interval.
type Writer struct {
	mu        sync.Mutex
	store     UpdateStore
	sessionID uuid.UUID
	userID    uuid.UUID
	interval  time.Duration

	pending []map[string]interface{}
	timer   *time.Timer
	armed   bool
	stopped bool
}

func NewWriter(store UpdateStore, sessionID, userID uuid.UUID, interval time.Duration) *Writer {
	return &Writer{
		store:     store,
		sessionID: sessionID,
		userID:    userID,
		interval:  interval,
	}
}

// ScheduleUpdate queues a partial update and arms the flush timer if it is
// not already armed. No store write happens here.
func (w *Writer) ScheduleUpdate(partial map[string]interface{}) {
	if len(partial) == 0 {
		return
	}

	copied := make(map[string]interface{}, len(partial))
	for k, v := range partial {
		copied[k] = v
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	w.pending = append(w.pending, copied)

	if !w.armed {
		w.armed = true
		w.timer = time.AfterFunc(w.interval, func() {
			w.Flush(context.Background())
		})
	}
}

// Flush merges all buffered partials into a single payload and issues one
// store write. On failure the merged payload is put back at the front of
// the buffer and the flush timer is re-armed.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.armed = false
		w.mu.Unlock()
		return
	}

	merged := make(map[string]interface{})
	for _, partial := range w.pending {
		for k, v := range partial {
			merged[k] = v
		}
	}
	w.pending = w.pending[:0]
	w.armed = false
	w.mu.Unlock()

	if err := w.store.ApplyUpdates(ctx, w.sessionID, w.userID, merged); err != nil {
		log.Printf("session %s: flush failed, re-queueing %d fields: %v", w.sessionID, len(merged), err)

		w.mu.Lock()
		w.pending = append([]map[string]interface{}{merged}, w.pending...)
		if !w.stopped && !w.armed {
			w.armed = true
			w.timer = time.AfterFunc(w.interval, func() {
				w.Flush(context.Background())
			})
		}
		w.mu.Unlock()
	}
}

// Pending returns the number of buffered partial updates.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop cancels the flush timer and performs a final flush of anything
// still buffered. Safe to call more than once.
func (w *Writer) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.Flush(ctx)
}
