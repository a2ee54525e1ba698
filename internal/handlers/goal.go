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

type GoalHandler struct {
	goalRepo *repository.GoalRepo
}

func NewGoalHandler(goalRepo *repository.GoalRepo) *GoalHandler {
	return &GoalHandler{goalRepo: goalRepo}
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "title is required", r))
		return
	}
	if req.Period != "daily" && req.Period != "weekly" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "period must be daily or weekly", r))
		return
	}
	if req.TargetMinutes < 1 || req.TargetMinutes > 24*60 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "target_minutes must be between 1 and 1440", r))
		return
	}
	if req.Category != nil {
		switch *req.Category {
		case "flashcards", "notes", "quiz", "general":
		default:
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "category must be flashcards, notes, quiz, or general", r))
			return
		}
	}

	goal := &models.Goal{
		UserID:        middleware.GetUserID(r.Context()),
		Title:         req.Title,
		Period:        req.Period,
		TargetMinutes: req.TargetMinutes,
		Category:      req.Category,
	}

	if err := h.goalRepo.Create(r.Context(), goal); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create goal", r))
		return
	}

	writeJSON(w, http.StatusCreated, goal)
}

// List returns the user's goals with progress computed against finished
// study sessions in the current period window.
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	goals, err := h.goalRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch goals", r))
		return
	}

	now := time.Now().UTC()
	progress := make([]models.GoalProgress, 0, len(goals))
	for _, goal := range goals {
		minutes, err := h.goalRepo.MinutesStudied(r.Context(), userID, goal.Category, periodStart(goal.Period, now))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute goal progress", r))
			return
		}

		percent := float64(minutes) / float64(goal.TargetMinutes) * 100
		if percent > 100 {
			percent = 100
		}

		progress = append(progress, models.GoalProgress{
			Goal:           *goal,
			MinutesStudied: minutes,
			Percent:        percent,
			Achieved:       minutes >= goal.TargetMinutes,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"goals": progress})
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.loadOwnedGoal(w, r)
	if !ok {
		return
	}

	var update models.UpdateGoalRequest
	json.NewDecoder(r.Body).Decode(&update)

	if update.Title != nil && *update.Title != "" {
		goal.Title = *update.Title
	}
	if update.TargetMinutes != nil {
		if *update.TargetMinutes < 1 || *update.TargetMinutes > 24*60 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "target_minutes must be between 1 and 1440", r))
			return
		}
		goal.TargetMinutes = *update.TargetMinutes
	}
	if update.IsArchived != nil {
		goal.IsArchived = *update.IsArchived
	}

	if err := h.goalRepo.Update(r.Context(), goal); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update goal", r))
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.loadOwnedGoal(w, r)
	if !ok {
		return
	}

	if err := h.goalRepo.Delete(r.Context(), goal.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete goal", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Goal deleted"})
}

func (h *GoalHandler) loadOwnedGoal(w http.ResponseWriter, r *http.Request) (*models.Goal, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid goal ID", r))
		return nil, false
	}

	goal, err := h.goalRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Goal not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if goal.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return goal, true
}

// periodStart returns the UTC start of the goal's current window: today
// at midnight for daily goals, Monday at midnight for weekly ones.
func periodStart(period string, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if period == "daily" {
		return day
	}

	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
