package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

// Columns the batched writer is allowed to touch. Anything else in an
// update payload is dropped before it reaches SQL.
var sessionUpdateColumns = map[string]bool{
	"elapsed_seconds":    true,
	"is_paused":          true,
	"last_activity_at":   true,
	"cards_reviewed":     true,
	"cards_correct":      true,
	"notes_reviewed":     true,
	"questions_answered": true,
}

const maxSessionSeconds = 10800 // 3 hours

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Start creates a new session row. Any still-open session for the user is
// closed inside the same transaction; together with the partial unique
// index on (user_id) WHERE ended_at IS NULL this keeps at most one active
// session per user even across racing requests.
func (r *SessionRepo) Start(ctx context.Context, s *models.StudySession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = NOW(),
			end_reason = 'superseded',
			elapsed_seconds = GREATEST(1, LEAST($2, EXTRACT(EPOCH FROM (NOW() - started_at))::INT))
		WHERE user_id = $1
		  AND ended_at IS NULL
	`, s.UserID, maxSessionSeconds)
	if err != nil {
		return fmt.Errorf("failed to close previous sessions: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO study_sessions (user_id, category, started_at, last_activity_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created_at
	`, s.UserID, s.Category, s.StartedAt).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.LastActivityAt = s.StartedAt

	return tx.Commit(ctx)
}

// ApplyUpdates writes one merged batch of field updates against the
// session row. Only whitelisted columns are applied, and only while the
// session is still open.
func (r *SessionRepo) ApplyUpdates(ctx context.Context, sessionID, userID uuid.UUID, fields map[string]interface{}) error {
	setClauses := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+2)
	args = append(args, sessionID, userID)
	argIdx := 3

	// Deterministic column order keeps the generated SQL stable.
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if sessionUpdateColumns[col] {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)

	for _, col := range cols {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, fields[col])
		argIdx++
	}

	if len(setClauses) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE study_sessions
		SET %s
		WHERE id = $1
		  AND user_id = $2
		  AND ended_at IS NULL
	`, strings.Join(setClauses, ", "))

	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

// Finish closes the session. Elapsed seconds are clamped at the database
// as well, so no write path can record more than the session cap.
func (r *SessionRepo) Finish(ctx context.Context, sessionID, userID uuid.UUID, elapsedSeconds int, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = NOW(),
			end_reason = $3,
			is_paused = FALSE,
			elapsed_seconds = GREATEST(1, LEAST($5, $4))
		WHERE id = $1
		  AND user_id = $2
		  AND ended_at IS NULL
	`, sessionID, userID, reason, elapsedSeconds, maxSessionSeconds)
	return err
}

// GetActive returns the user's open session, or nil when none exists.
func (r *SessionRepo) GetActive(ctx context.Context, userID uuid.UUID) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, category, started_at, last_activity_at, ended_at,
			elapsed_seconds, is_paused, cards_reviewed, cards_correct,
			notes_reviewed, questions_answered, end_reason, created_at
		FROM study_sessions
		WHERE user_id = $1
		  AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, userID).Scan(
		&s.ID, &s.UserID, &s.Category, &s.StartedAt, &s.LastActivityAt, &s.EndedAt,
		&s.ElapsedSeconds, &s.IsPaused, &s.CardsReviewed, &s.CardsCorrect,
		&s.NotesReviewed, &s.QuestionsAnswered, &s.EndReason, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns the user's most recent sessions, newest first.
func (r *SessionRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, category, started_at, last_activity_at, ended_at,
			elapsed_seconds, is_paused, cards_reviewed, cards_correct,
			notes_reviewed, questions_answered, end_reason, created_at
		FROM study_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.StudySession
	for rows.Next() {
		s := &models.StudySession{}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Category, &s.StartedAt, &s.LastActivityAt, &s.EndedAt,
			&s.ElapsedSeconds, &s.IsPaused, &s.CardsReviewed, &s.CardsCorrect,
			&s.NotesReviewed, &s.QuestionsAnswered, &s.EndReason, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CategoryTotals aggregates studied seconds per category since the given
// cutoff. Feeds the dashboard time-by-activity chart.
func (r *SessionRepo) CategoryTotals(ctx context.Context, userID uuid.UUID, since time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, COALESCE(SUM(elapsed_seconds), 0)
		FROM study_sessions
		WHERE user_id = $1
		  AND started_at >= $2
		  AND ended_at IS NOT NULL
		GROUP BY category
	`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var category string
		var seconds int
		if err := rows.Scan(&category, &seconds); err != nil {
			return nil, err
		}
		totals[category] = seconds
	}
	return totals, rows.Err()
}

// DailyTotals returns per-day studied seconds for the last n days,
// including days with no sessions.
func (r *SessionRepo) DailyTotals(ctx context.Context, userID uuid.UUID, days int) ([]models.DailyStudyTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.day::DATE,
			COALESCE(SUM(s.elapsed_seconds), 0),
			COALESCE(SUM(s.cards_reviewed), 0),
			COALESCE(SUM(s.questions_answered), 0)
		FROM generate_series(
			CURRENT_DATE - ($2 - 1) * INTERVAL '1 day',
			CURRENT_DATE,
			INTERVAL '1 day'
		) AS d(day)
		LEFT JOIN study_sessions s
			ON s.user_id = $1
			AND s.ended_at IS NOT NULL
			AND s.started_at::DATE = d.day::DATE
		GROUP BY d.day
		ORDER BY d.day
	`, userID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []models.DailyStudyTotal
	for rows.Next() {
		var t models.DailyStudyTotal
		if err := rows.Scan(&t.Day, &t.Seconds, &t.CardsReviewed, &t.QuestionsAnswered); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Streak counts consecutive days ending today (or yesterday, if today has
// no study yet) with at least one finished session.
func (r *SessionRepo) Streak(ctx context.Context, userID uuid.UUID) (int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT started_at::DATE AS day
		FROM study_sessions
		WHERE user_id = $1
		  AND ended_at IS NOT NULL
		ORDER BY day DESC
		LIMIT 366
	`, userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return 0, err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	expect := today
	if !days[0].Equal(today) {
		expect = today.AddDate(0, 0, -1)
	}

	streak := 0
	for _, d := range days {
		if !d.Equal(expect) {
			break
		}
		streak++
		expect = expect.AddDate(0, 0, -1)
	}
	return streak, nil
}

// TotalsSince returns overall studied seconds and session count since the
// cutoff; used by the weekly digest email.
func (r *SessionRepo) TotalsSince(ctx context.Context, userID uuid.UUID, since time.Time) (seconds int, sessions int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(elapsed_seconds), 0), COUNT(*)
		FROM study_sessions
		WHERE user_id = $1
		  AND started_at >= $2
		  AND ended_at IS NOT NULL
	`, userID, since).Scan(&seconds, &sessions)
	return seconds, sessions, err
}
