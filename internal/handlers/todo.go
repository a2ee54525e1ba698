package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

type TodoHandler struct {
	todoRepo *repository.TodoRepo
}

func NewTodoHandler(todoRepo *repository.TodoRepo) *TodoHandler {
	return &TodoHandler{todoRepo: todoRepo}
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "title is required", r))
		return
	}

	if req.Priority == 0 {
		req.Priority = 2
	}
	if req.Priority < 1 || req.Priority > 3 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "priority must be 1-3", r))
		return
	}

	todo := &models.Todo{
		UserID:   middleware.GetUserID(r.Context()),
		Title:    req.Title,
		Notes:    req.Notes,
		Priority: req.Priority,
		DueAt:    req.DueAt,
		RemindAt: req.RemindAt,
	}

	if err := h.todoRepo.Create(r.Context(), todo); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create todo", r))
		return
	}

	writeJSON(w, http.StatusCreated, todo)
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	includeDone := r.URL.Query().Get("include_done") == "true"

	todos, err := h.todoRepo.ListByUser(r.Context(), userID, includeDone)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch todos", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"todos": todos})
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.loadOwnedTodo(w, r)
	if !ok {
		return
	}

	var update models.UpdateTodoRequest
	json.NewDecoder(r.Body).Decode(&update)

	if update.Title != nil && *update.Title != "" {
		todo.Title = *update.Title
	}
	if update.Notes != nil {
		todo.Notes = update.Notes
	}
	if update.Priority != nil {
		if *update.Priority < 1 || *update.Priority > 3 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "priority must be 1-3", r))
			return
		}
		todo.Priority = *update.Priority
	}
	if update.DueAt != nil {
		todo.DueAt = update.DueAt
	}
	if update.RemindAt != nil {
		todo.RemindAt = update.RemindAt
	}
	if update.IsDone != nil && *update.IsDone != todo.IsDone {
		todo.IsDone = *update.IsDone
		if todo.IsDone {
			now := time.Now().UTC()
			todo.CompletedAt = &now
		} else {
			todo.CompletedAt = nil
		}
	}

	if err := h.todoRepo.Update(r.Context(), todo); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update todo", r))
		return
	}

	writeJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.loadOwnedTodo(w, r)
	if !ok {
		return
	}

	if err := h.todoRepo.Delete(r.Context(), todo.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete todo", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted"})
}

func (h *TodoHandler) loadOwnedTodo(w http.ResponseWriter, r *http.Request) (*models.Todo, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid todo ID", r))
		return nil, false
	}

	todo, err := h.todoRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Todo not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if todo.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return todo, true
}
