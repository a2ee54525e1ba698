package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// A long interval keeps the background flush timer from firing during
// tests; every flush here is driven explicitly.
const testFlushInterval = time.Hour

func TestWriterCoalescesUpdatesIntoOneWrite(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, uuid.New(), uuid.New(), testFlushInterval)

	w.ScheduleUpdate(map[string]interface{}{"cards_reviewed": 1})
	w.ScheduleUpdate(map[string]interface{}{"cards_reviewed": 2, "cards_correct": 1})
	w.ScheduleUpdate(map[string]interface{}{"elapsed_seconds": 42})

	w.Flush(context.Background())

	if got := store.updateCount(); got != 1 {
		t.Fatalf("expected exactly 1 write, got %d", got)
	}

	payload := store.lastUpdate()
	if payload["cards_reviewed"] != 2 {
		t.Errorf("expected later cards_reviewed=2 to win, got %v", payload["cards_reviewed"])
	}
	if payload["cards_correct"] != 1 {
		t.Errorf("expected cards_correct=1, got %v", payload["cards_correct"])
	}
	if payload["elapsed_seconds"] != 42 {
		t.Errorf("expected elapsed_seconds=42, got %v", payload["elapsed_seconds"])
	}
}

func TestWriterFlushWithEmptyBufferWritesNothing(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, uuid.New(), uuid.New(), testFlushInterval)

	w.Flush(context.Background())

	if got := store.updateCount(); got != 0 {
		t.Errorf("expected no writes for empty buffer, got %d", got)
	}
}

func TestWriterRequeuesOnFailure(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, uuid.New(), uuid.New(), testFlushInterval)

	store.setApplyErr(errors.New("connection reset"))
	w.ScheduleUpdate(map[string]interface{}{"cards_reviewed": 3})
	w.Flush(context.Background())

	if got := store.updateCount(); got != 0 {
		t.Fatalf("failed write should not be recorded, got %d writes", got)
	}
	if got := w.Pending(); got != 1 {
		t.Fatalf("expected failed payload re-queued, pending=%d", got)
	}

	// Next interval: previously failed fields merge with new ones.
	store.setApplyErr(nil)
	w.ScheduleUpdate(map[string]interface{}{"cards_correct": 2})
	w.Flush(context.Background())

	if got := store.updateCount(); got != 1 {
		t.Fatalf("expected 1 successful write after retry, got %d", got)
	}

	payload := store.lastUpdate()
	if payload["cards_reviewed"] != 3 {
		t.Errorf("retry lost the failed update: %v", payload)
	}
	if payload["cards_correct"] != 2 {
		t.Errorf("retry lost the new update: %v", payload)
	}
}

func TestWriterNewUpdatesOverrideRequeuedOnes(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, uuid.New(), uuid.New(), testFlushInterval)

	store.setApplyErr(errors.New("timeout"))
	w.ScheduleUpdate(map[string]interface{}{"elapsed_seconds": 10})
	w.Flush(context.Background())

	store.setApplyErr(nil)
	w.ScheduleUpdate(map[string]interface{}{"elapsed_seconds": 15})
	w.Flush(context.Background())

	if got := store.lastUpdate()["elapsed_seconds"]; got != 15 {
		t.Errorf("expected newer elapsed_seconds=15 to win over re-queued value, got %v", got)
	}
}

func TestWriterStopFlushesRemainder(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, uuid.New(), uuid.New(), testFlushInterval)

	w.ScheduleUpdate(map[string]interface{}{"is_paused": true})
	w.Stop(context.Background())

	if got := store.updateCount(); got != 1 {
		t.Fatalf("expected final flush on stop, got %d writes", got)
	}

	// After stop, further updates are dropped.
	w.ScheduleUpdate(map[string]interface{}{"is_paused": false})
	w.Flush(context.Background())

	if got := store.updateCount(); got != 1 {
		t.Errorf("expected no writes after stop, got %d", got)
	}
}
