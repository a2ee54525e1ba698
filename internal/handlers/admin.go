package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/repository"
)

// AdminHandler serves operator-only stats. Access requires the caller's
// plan to be "admin"; there is no separate role system.
type AdminHandler struct {
	pool     *pgxpool.Pool
	userRepo userRepository
}

func NewAdminHandler(pool *pgxpool.Pool, userRepo *repository.UserRepo) *AdminHandler {
	return &AdminHandler{pool: pool, userRepo: userRepo}
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "User not found", r))
		return false
	}

	if user.Plan != "admin" {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Admin access required", r))
		return false
	}

	return true
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var totalUsers, verifiedUsers, activeToday, totalSessions, openSessions int
	err := h.pool.QueryRow(r.Context(), `
		SELECT
			(SELECT COUNT(*) FROM users WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM users WHERE is_verified = TRUE),
			(SELECT COUNT(DISTINCT user_id) FROM study_sessions WHERE started_at >= CURRENT_DATE),
			(SELECT COUNT(*) FROM study_sessions),
			(SELECT COUNT(*) FROM study_sessions WHERE ended_at IS NULL)
	`).Scan(&totalUsers, &verifiedUsers, &activeToday, &totalSessions, &openSessions)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load admin stats", r))
		return
	}

	rows, err := h.pool.Query(r.Context(), `
		SELECT plan, COUNT(*) FROM users WHERE is_active = TRUE GROUP BY plan
	`)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load plan breakdown", r))
		return
	}
	defer rows.Close()

	plans := make(map[string]int)
	for rows.Next() {
		var plan string
		var count int
		if err := rows.Scan(&plan, &count); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load plan breakdown", r))
			return
		}
		plans[plan] = count
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":          totalUsers,
		"verified_users": verifiedUsers,
		"active_today":   activeToday,
		"sessions_total": totalSessions,
		"sessions_open":  openSessions,
		"plans":          plans,
	})
}

// ActiveSessions lists currently open study sessions across all users.
func (h *AdminHandler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	rows, err := h.pool.Query(r.Context(), `
		SELECT s.id, s.user_id, u.email, s.category, s.started_at, s.last_activity_at, s.is_paused
		FROM study_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.ended_at IS NULL
		ORDER BY s.started_at DESC
		LIMIT 200
	`)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load active sessions", r))
		return
	}
	defer rows.Close()

	type activeSession struct {
		ID             uuid.UUID `json:"id"`
		UserID         uuid.UUID `json:"user_id"`
		Email          string    `json:"email"`
		Category       string    `json:"category"`
		StartedAt      time.Time `json:"started_at"`
		LastActivityAt time.Time `json:"last_activity_at"`
		IsPaused       bool      `json:"is_paused"`
	}

	sessions := make([]activeSession, 0)
	for rows.Next() {
		var s activeSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Email, &s.Category, &s.StartedAt, &s.LastActivityAt, &s.IsPaused); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load active sessions", r))
			return
		}
		sessions = append(sessions, s)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
