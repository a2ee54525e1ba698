package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/repository"
	"studyhub-backend/internal/session"
)

type SessionHandler struct {
	manager     *session.Manager
	sessionRepo *repository.SessionRepo
}

func NewSessionHandler(manager *session.Manager, sessionRepo *repository.SessionRepo) *SessionHandler {
	return &SessionHandler{manager: manager, sessionRepo: sessionRepo}
}

// Start opens a session for the route the client navigated to. Requests
// for routes that are not study surfaces succeed with tracking=false so
// the frontend can call this unconditionally on navigation.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "path is required", r))
		return
	}

	snap, started, err := h.manager.Start(r.Context(), userID, req.Path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start study session", r))
		return
	}

	if !started {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tracking": false})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tracking": true,
		"session":  snap,
	})
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	snap, ok := h.manager.Current(userID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":  true,
		"session": snap,
	})
}

// Activity registers a user interaction. Idempotent, so the frontend may
// send these on a throttle without checking state first.
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.manager.RecordActivity(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Activity recorded"})
}

func (h *SessionHandler) TogglePause(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	snap, ok := h.manager.TogglePause(r.Context(), userID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No active study session", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": snap})
}

// Visibility reports page hide/show. Hiding suspends time accrual without
// pausing the session.
func (h *SessionHandler) Visibility(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Hidden bool `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	h.manager.SetHidden(userID, req.Hidden)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Visibility updated"})
}

// Progress queues review counters against the active session. Values are
// absolute totals for the session, not increments; they reach the
// database on the next batched flush.
func (h *SessionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		CardsReviewed     *int `json:"cards_reviewed"`
		CardsCorrect      *int `json:"cards_correct"`
		NotesReviewed     *int `json:"notes_reviewed"`
		QuestionsAnswered *int `json:"questions_answered"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	partial := map[string]interface{}{}
	if req.CardsReviewed != nil {
		partial["cards_reviewed"] = *req.CardsReviewed
	}
	if req.CardsCorrect != nil {
		partial["cards_correct"] = *req.CardsCorrect
	}
	if req.NotesReviewed != nil {
		partial["notes_reviewed"] = *req.NotesReviewed
	}
	if req.QuestionsAnswered != nil {
		partial["questions_answered"] = *req.QuestionsAnswered
	}

	if len(partial) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No progress fields provided", r))
		return
	}

	if !h.manager.ScheduleUpdate(r.Context(), userID, partial) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No active study session", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Progress queued"})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	snap, ok := h.manager.End(r.Context(), userID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ended": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ended":   true,
		"session": snap,
	})
}

// Beacon handles the page-unload write sent via navigator.sendBeacon.
// Always 204: the client is tearing down and cannot act on a response,
// and failures here are deliberately swallowed.
func (h *SessionHandler) Beacon(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.manager.Beacon(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sessions, err := h.sessionRepo.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch sessions", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}
