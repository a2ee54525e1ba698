package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type TodoRepo struct {
	pool *pgxpool.Pool
}

func NewTodoRepo(pool *pgxpool.Pool) *TodoRepo {
	return &TodoRepo{pool: pool}
}

func (r *TodoRepo) Create(ctx context.Context, t *models.Todo) error {
	t.ID = uuid.New()

	query := `INSERT INTO todos (id, user_id, title, notes, priority, due_at, remind_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		t.ID, t.UserID, t.Title, t.Notes, t.Priority, t.DueAt, t.RemindAt,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TodoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Todo, error) {
	t := &models.Todo{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, notes, priority, due_at, remind_at, reminder_sent,
			is_done, completed_at, created_at, updated_at
		FROM todos WHERE id = $1
	`, id).Scan(
		&t.ID, &t.UserID, &t.Title, &t.Notes, &t.Priority, &t.DueAt, &t.RemindAt, &t.ReminderSent,
		&t.IsDone, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TodoRepo) ListByUser(ctx context.Context, userID uuid.UUID, includeDone bool) ([]*models.Todo, error) {
	query := `
		SELECT id, user_id, title, notes, priority, due_at, remind_at, reminder_sent,
			is_done, completed_at, created_at, updated_at
		FROM todos
		WHERE user_id = $1`
	if !includeDone {
		query += " AND is_done = FALSE"
	}
	query += " ORDER BY is_done ASC, due_at ASC NULLS LAST, priority DESC, created_at DESC"

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var todos []*models.Todo
	for rows.Next() {
		t := &models.Todo{}
		err := rows.Scan(
			&t.ID, &t.UserID, &t.Title, &t.Notes, &t.Priority, &t.DueAt, &t.RemindAt, &t.ReminderSent,
			&t.IsDone, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, nil
}

func (r *TodoRepo) Update(ctx context.Context, t *models.Todo) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE todos
		SET title = $1, notes = $2, priority = $3, due_at = $4, remind_at = $5,
			is_done = $6, completed_at = $7,
			reminder_sent = CASE WHEN remind_at IS DISTINCT FROM $5 THEN FALSE ELSE reminder_sent END,
			updated_at = NOW()
		WHERE id = $8
	`, t.Title, t.Notes, t.Priority, t.DueAt, t.RemindAt, t.IsDone, t.CompletedAt, t.ID)
	return err
}

func (r *TodoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM todos WHERE id = $1", id)
	return err
}

// DueReminders returns pending todos whose reminder time has passed and
// has not been sent yet.
func (r *TodoRepo) DueReminders(ctx context.Context, now time.Time, limit int) ([]*models.Todo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, notes, priority, due_at, remind_at, reminder_sent,
			is_done, completed_at, created_at, updated_at
		FROM todos
		WHERE is_done = FALSE
		  AND reminder_sent = FALSE
		  AND remind_at IS NOT NULL
		  AND remind_at <= $1
		ORDER BY remind_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var todos []*models.Todo
	for rows.Next() {
		t := &models.Todo{}
		err := rows.Scan(
			&t.ID, &t.UserID, &t.Title, &t.Notes, &t.Priority, &t.DueAt, &t.RemindAt, &t.ReminderSent,
			&t.IsDone, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *TodoRepo) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE todos SET reminder_sent = TRUE WHERE id = $1", id)
	return err
}
