package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/session"
)

func TestSessionHandler_BeaconAlwaysNoContent(t *testing.T) {
	manager := session.NewManager(session.DefaultConfig(), nil, nil, nil, nil)
	h := NewSessionHandler(manager, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/beacon", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))

	rr := httptest.NewRecorder()
	h.Beacon(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("beacon response must have no body, got %q", rr.Body.String())
	}
}

func TestSessionHandler_CurrentWithoutSession(t *testing.T) {
	manager := session.NewManager(session.DefaultConfig(), nil, nil, nil, nil)
	h := NewSessionHandler(manager, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/current", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))

	rr := httptest.NewRecorder()
	h.Current(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["active"] != false {
		t.Fatalf("expected active=false, got %v", payload["active"])
	}
}

func TestSessionHandler_StartNonStudyRouteDoesNotTrack(t *testing.T) {
	manager := session.NewManager(session.DefaultConfig(), nil, nil, nil, nil)
	h := NewSessionHandler(manager, nil)

	body := `{"path":"/settings"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/start", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.Start(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["tracking"] != false {
		t.Fatalf("expected tracking=false for a non-study route, got %v", payload["tracking"])
	}
}

func TestSessionHandler_ProgressWithoutSession(t *testing.T) {
	manager := session.NewManager(session.DefaultConfig(), nil, nil, nil, nil)
	h := NewSessionHandler(manager, nil)

	body := `{"cards_reviewed":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/progress", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.Progress(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestPeriodStart(t *testing.T) {
	// Wednesday 2026-03-11 15:30 UTC
	now := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC)

	daily := periodStart("daily", now)
	if !daily.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected daily period start: %v", daily)
	}

	weekly := periodStart("weekly", now)
	if !weekly.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected weekly period start: %v", weekly)
	}

	// Sunday rolls back to the Monday that opened the week.
	sunday := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	weekly = periodStart("weekly", sunday)
	if !weekly.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected weekly period start from Sunday: %v", weekly)
	}
}

func TestGoalHandler_CreateValidation(t *testing.T) {
	h := &GoalHandler{}

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"period":"daily","target_minutes":30}`},
		{"bad period", `{"title":"Study","period":"monthly","target_minutes":30}`},
		{"zero target", `{"title":"Study","period":"daily","target_minutes":0}`},
		{"target too large", `{"title":"Study","period":"daily","target_minutes":2000}`},
		{"bad category", `{"title":"Study","period":"daily","target_minutes":30,"category":"cooking"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/goals", strings.NewReader(tc.body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))
			req.Header.Set("Content-Type", "application/json")

			rr := httptest.NewRecorder()
			h.Create(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
		})
	}
}

func TestTodoHandler_CreateValidation(t *testing.T) {
	h := &TodoHandler{}

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"priority":2}`},
		{"priority too high", `{"title":"Read chapter 4","priority":5}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/todos", strings.NewReader(tc.body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uuid.New()))
			req.Header.Set("Content-Type", "application/json")

			rr := httptest.NewRecorder()
			h.Create(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
		})
	}
}
