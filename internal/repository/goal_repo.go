package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type GoalRepo struct {
	pool *pgxpool.Pool
}

func NewGoalRepo(pool *pgxpool.Pool) *GoalRepo {
	return &GoalRepo{pool: pool}
}

func (r *GoalRepo) Create(ctx context.Context, g *models.Goal) error {
	g.ID = uuid.New()

	query := `INSERT INTO goals (id, user_id, title, period, target_minutes, category)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		g.ID, g.UserID, g.Title, g.Period, g.TargetMinutes, g.Category,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
}

func (r *GoalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Goal, error) {
	g := &models.Goal{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, period, target_minutes, category, is_archived, created_at, updated_at
		FROM goals WHERE id = $1
	`, id).Scan(
		&g.ID, &g.UserID, &g.Title, &g.Period, &g.TargetMinutes, &g.Category,
		&g.IsArchived, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GoalRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Goal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, period, target_minutes, category, is_archived, created_at, updated_at
		FROM goals
		WHERE user_id = $1 AND is_archived = FALSE
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		g := &models.Goal{}
		err := rows.Scan(
			&g.ID, &g.UserID, &g.Title, &g.Period, &g.TargetMinutes, &g.Category,
			&g.IsArchived, &g.CreatedAt, &g.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

func (r *GoalRepo) Update(ctx context.Context, g *models.Goal) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE goals SET title = $1, target_minutes = $2, is_archived = $3, updated_at = NOW() WHERE id = $4",
		g.Title, g.TargetMinutes, g.IsArchived, g.ID,
	)
	return err
}

func (r *GoalRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM goals WHERE id = $1", id)
	return err
}

// MinutesStudied sums finished-session minutes for a goal's window,
// optionally restricted to one activity category.
func (r *GoalRepo) MinutesStudied(ctx context.Context, userID uuid.UUID, category *string, since time.Time) (int, error) {
	var minutes int
	var err error

	if category != nil {
		err = r.pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(elapsed_seconds), 0) / 60
			FROM study_sessions
			WHERE user_id = $1 AND category = $2 AND started_at >= $3 AND ended_at IS NOT NULL
		`, userID, *category, since).Scan(&minutes)
	} else {
		err = r.pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(elapsed_seconds), 0) / 60
			FROM study_sessions
			WHERE user_id = $1 AND started_at >= $2 AND ended_at IS NOT NULL
		`, userID, since).Scan(&minutes)
	}
	return minutes, err
}
