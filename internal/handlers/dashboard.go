package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

const dashboardStatsTTL = 60 * time.Second

type DashboardHandler struct {
	pool        *pgxpool.Pool
	sessionRepo *repository.SessionRepo
	redis       *redis.Client
}

func NewDashboardHandler(pool *pgxpool.Pool, sessionRepo *repository.SessionRepo, redisClient *redis.Client) *DashboardHandler {
	return &DashboardHandler{pool: pool, sessionRepo: sessionRepo, redis: redisClient}
}

func dashboardStatsKey(userID uuid.UUID) string {
	return fmt.Sprintf("dashboard:stats:%s", userID)
}

// InvalidateStats drops the cached stats payload. Wired as the session
// manager's end hook so finished sessions show up immediately.
func (h *DashboardHandler) InvalidateStats(ctx context.Context, userID uuid.UUID) {
	if h.redis != nil {
		h.redis.Del(ctx, dashboardStatsKey(userID))
	}
}

// Stats aggregates content counts and studied time. The payload is
// cached in Redis briefly since the dashboard polls it.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	ctx := r.Context()

	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, dashboardStatsKey(userID)).Result(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(cached))
			return
		}
	}

	var noteCount, quizCount, deckCount int
	h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notes WHERE user_id = $1 AND is_archived = FALSE", userID).Scan(&noteCount)
	h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quizzes WHERE user_id = $1", userID).Scan(&quizCount)
	h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM flashcard_decks WHERE user_id = $1", userID).Scan(&deckCount)

	now := time.Now().UTC()
	weekSeconds, weekSessions, err := h.sessionRepo.TotalsSince(ctx, userID, now.AddDate(0, 0, -7))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute study totals", r))
		return
	}

	totalSeconds, totalSessions, err := h.sessionRepo.TotalsSince(ctx, userID, time.Time{})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute study totals", r))
		return
	}

	streak, err := h.sessionRepo.Streak(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute streak", r))
		return
	}

	payload := map[string]interface{}{
		"notes":               noteCount,
		"quizzes":             quizCount,
		"flashcard_decks":     deckCount,
		"study_seconds_week":  weekSeconds,
		"sessions_week":       weekSessions,
		"study_seconds_total": totalSeconds,
		"sessions_total":      totalSessions,
		"streak_days":         streak,
	}

	if h.redis != nil {
		if body, err := json.Marshal(payload); err == nil {
			h.redis.Set(ctx, dashboardStatsKey(userID), body, dashboardStatsTTL)
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

// Categories breaks studied time down by activity category.
func (h *DashboardHandler) Categories(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 || days > 365 {
		days = 7
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	totals, err := h.sessionRepo.CategoryTotals(r.Context(), userID, since)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute category totals", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":       days,
		"categories": totals,
	})
}

// Activity returns per-day studied seconds for the activity chart,
// including empty days.
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 || days > 90 {
		days = 7
	}

	totals, err := h.sessionRepo.DailyTotals(r.Context(), userID, days)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute daily totals", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": totals})
}

func (h *DashboardHandler) Streak(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	streak, err := h.sessionRepo.Streak(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute streak", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"streak": streak})
}

func (h *DashboardHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	ctx := r.Context()

	type RecentItem struct {
		ID        uuid.UUID `json:"id"`
		Type      string    `json:"type"`
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"created_at"`
	}

	var items []RecentItem

	rows, _ := h.pool.Query(ctx,
		"SELECT id, title, created_at FROM notes WHERE user_id = $1 AND is_archived = FALSE ORDER BY COALESCE(last_reviewed_at, created_at) DESC LIMIT 3", userID)
	for rows.Next() {
		var item RecentItem
		rows.Scan(&item.ID, &item.Title, &item.CreatedAt)
		item.Type = "note"
		items = append(items, item)
	}
	rows.Close()

	rows, _ = h.pool.Query(ctx,
		"SELECT id, title, created_at FROM quizzes WHERE user_id = $1 ORDER BY created_at DESC LIMIT 3", userID)
	for rows.Next() {
		var item RecentItem
		rows.Scan(&item.ID, &item.Title, &item.CreatedAt)
		item.Type = "quiz"
		items = append(items, item)
	}
	rows.Close()

	rows, _ = h.pool.Query(ctx,
		"SELECT id, title, created_at FROM flashcard_decks WHERE user_id = $1 ORDER BY created_at DESC LIMIT 3", userID)
	for rows.Next() {
		var item RecentItem
		rows.Scan(&item.ID, &item.Title, &item.CreatedAt)
		item.Type = "flashcard"
		items = append(items, item)
	}
	rows.Close()

	// Global sort across all item types so the truly latest activity is first
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if len(items) > 12 {
		items = items[:12]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"recent": items})
}

// Library handler

type LibraryHandler struct {
	pool *pgxpool.Pool
}

func NewLibraryHandler(pool *pgxpool.Pool) *LibraryHandler {
	return &LibraryHandler{pool: pool}
}

func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	ctx := r.Context()
	typeFilter := r.URL.Query().Get("type")
	searchQuery := strings.TrimSpace(r.URL.Query().Get("search"))
	searchLike := "%" + strings.ToLower(searchQuery) + "%"

	type LibraryItem struct {
		ID        uuid.UUID `json:"id"`
		Type      string    `json:"type"`
		Title     string    `json:"title"`
		Tags      []string  `json:"tags,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	var items []LibraryItem

	if typeFilter == "" || typeFilter == "note" {
		query := "SELECT id, title, tags, created_at FROM notes WHERE user_id = $1 AND is_archived = FALSE"
		args := []interface{}{userID}
		if searchQuery != "" {
			query += " AND LOWER(title) LIKE $2"
			args = append(args, searchLike)
		}
		query += " ORDER BY created_at DESC"

		rows, _ := h.pool.Query(ctx, query, args...)
		for rows.Next() {
			item := LibraryItem{Type: "note"}
			rows.Scan(&item.ID, &item.Title, &item.Tags, &item.CreatedAt)
			items = append(items, item)
		}
		rows.Close()
	}

	if typeFilter == "" || typeFilter == "quiz" {
		query := "SELECT id, title, created_at FROM quizzes WHERE user_id = $1"
		args := []interface{}{userID}
		if searchQuery != "" {
			query += " AND LOWER(title) LIKE $2"
			args = append(args, searchLike)
		}
		query += " ORDER BY created_at DESC"

		rows, _ := h.pool.Query(ctx, query, args...)
		for rows.Next() {
			item := LibraryItem{Type: "quiz"}
			rows.Scan(&item.ID, &item.Title, &item.CreatedAt)
			items = append(items, item)
		}
		rows.Close()
	}

	if typeFilter == "" || typeFilter == "flashcard" || typeFilter == "flashcards" {
		query := "SELECT id, title, created_at FROM flashcard_decks WHERE user_id = $1"
		args := []interface{}{userID}
		if searchQuery != "" {
			query += " AND LOWER(title) LIKE $2"
			args = append(args, searchLike)
		}
		query += " ORDER BY created_at DESC"

		rows, _ := h.pool.Query(ctx, query, args...)
		for rows.Next() {
			item := LibraryItem{Type: "flashcard"}
			rows.Scan(&item.ID, &item.Title, &item.CreatedAt)
			items = append(items, item)
		}
		rows.Close()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// User & Settings handler

type UserHandler struct {
	userRepo userRepository
}

type userRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, s *models.UserSettings) error
	SetNotificationSetting(ctx context.Context, userID uuid.UUID, key string, enabled bool) error
}

func NewUserHandler(userRepo userRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

func defaultNotificationPreferences() map[string]bool {
	return map[string]bool{
		"processing_complete": true,
		"weekly_digest":       false,
		"study_reminders":     false,
	}
}

// mergeNotificationPreferences overlays stored preferences onto the
// defaults, keeping only known keys with boolean values.
func mergeNotificationPreferences(raw json.RawMessage) map[string]bool {
	prefs := defaultNotificationPreferences()
	if len(raw) == 0 {
		return prefs
	}

	var stored map[string]interface{}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return prefs
	}

	for key := range prefs {
		if v, ok := stored[key].(bool); ok {
			prefs[key] = v
		}
	}
	return prefs
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}

	var update struct {
		FullName string  `json:"full_name"`
		Email    string  `json:"email"`
		Timezone string  `json:"timezone"`
		Avatar   *string `json:"avatar_url"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if update.FullName != "" {
		user.FullName = update.FullName
	}
	if update.Email != "" {
		user.Email = update.Email
	}
	if update.Timezone != "" {
		if _, err := time.LoadLocation(update.Timezone); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid timezone", r))
			return
		}
		user.Timezone = update.Timezone
	}
	if update.Avatar != nil {
		user.AvatarURL = update.Avatar
	}

	if err := h.userRepo.Update(r.Context(), user); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update profile", r))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}

	if !isStrongPassword(req.NewPassword) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Password must be at least 8 characters with letters and digits", r))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Current password is incorrect", r))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), 12)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to hash password", r))
		return
	}

	h.userRepo.UpdatePassword(r.Context(), userID, string(hash))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.userRepo.Delete(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete account", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

func (h *UserHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	settings, err := h.userRepo.GetSettings(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Settings not found", r))
		return
	}

	// Clients always see the full preference set, with defaults filled in.
	prefs := mergeNotificationPreferences(settings.NotificationsJSON)
	if body, err := json.Marshal(prefs); err == nil {
		settings.NotificationsJSON = body
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var s models.UserSettings
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	s.UserID = userID

	prefs := mergeNotificationPreferences(s.NotificationsJSON)
	if body, err := json.Marshal(prefs); err == nil {
		s.NotificationsJSON = body
	}

	if err := h.userRepo.UpdateSettings(r.Context(), &s); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update settings", r))
		return
	}

	writeJSON(w, http.StatusOK, s)
}

// isStrongPassword mirrors the registration rule: at least 8 characters
// containing both letters and digits.
func isStrongPassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			hasLetter = true
		}
	}
	return hasLetter && hasDigit
}

// Job handler

type JobHandler struct {
	jobRepo *repository.JobRepo
}

func NewJobHandler(jobRepo *repository.JobRepo) *JobHandler {
	return &JobHandler{jobRepo: jobRepo}
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		idStr = chi.URLParam(r, "id")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if job.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if job.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	h.jobRepo.UpdateStatus(r.Context(), id, "failed")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}
