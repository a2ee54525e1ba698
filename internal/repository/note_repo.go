package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyhub-backend/internal/models"
)

type NoteRepo struct {
	pool *pgxpool.Pool
}

func NewNoteRepo(pool *pgxpool.Pool) *NoteRepo {
	return &NoteRepo{pool: pool}
}

func (r *NoteRepo) Create(ctx context.Context, n *models.Note) error {
	n.ID = uuid.New()
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if len(n.KeyPointsJSON) == 0 {
		n.KeyPointsJSON = []byte("[]")
	}

	query := `INSERT INTO notes (id, user_id, title, content, source, source_url, key_points_json, tags, word_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		n.ID, n.UserID, n.Title, n.Content, n.Source, n.SourceURL, n.KeyPointsJSON, n.Tags, n.WordCount,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *NoteRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	n := &models.Note{}
	query := `SELECT id, user_id, title, content, source, source_url, ai_summary, key_points_json,
		tags, word_count, is_favorite, is_archived, created_at, updated_at, last_reviewed_at
		FROM notes WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Content, &n.Source, &n.SourceURL, &n.AISummary, &n.KeyPointsJSON,
		&n.Tags, &n.WordCount, &n.IsFavorite, &n.IsArchived, &n.CreatedAt, &n.UpdatedAt, &n.LastReviewedAt,
	)
	if err != nil {
		return nil, err
	}

	// Update last_reviewed_at
	r.pool.Exec(ctx, "UPDATE notes SET last_reviewed_at = NOW() WHERE id = $1", id)
	return n, nil
}

func (r *NoteRepo) ListByUser(ctx context.Context, userID uuid.UUID, search, sortBy string, limit, offset int) ([]*models.Note, int, error) {
	var args []interface{}
	argIdx := 1

	where := fmt.Sprintf("WHERE user_id = $%d AND is_archived = FALSE", argIdx)
	args = append(args, userID)
	argIdx++

	if search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR content ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+search+"%")
		argIdx++
	}

	// Count total
	var total int
	countQuery := "SELECT COUNT(*) FROM notes " + where
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	// Order
	orderBy := "created_at DESC"
	switch sortBy {
	case "title":
		orderBy = "title ASC"
	case "oldest":
		orderBy = "created_at ASC"
	case "recent":
		orderBy = "last_reviewed_at DESC NULLS LAST"
	}

	query := fmt.Sprintf(`SELECT id, user_id, title, content, source, source_url, ai_summary, key_points_json,
		tags, word_count, is_favorite, is_archived, created_at, updated_at, last_reviewed_at
		FROM notes %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		where, orderBy, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		n := &models.Note{}
		err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Content, &n.Source, &n.SourceURL, &n.AISummary, &n.KeyPointsJSON,
			&n.Tags, &n.WordCount, &n.IsFavorite, &n.IsArchived, &n.CreatedAt, &n.UpdatedAt, &n.LastReviewedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}

	return notes, total, nil
}

func (r *NoteRepo) Update(ctx context.Context, n *models.Note) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notes SET title = $1, content = $2, tags = $3, is_favorite = $4, is_archived = $5,
		 word_count = $6, updated_at = NOW() WHERE id = $7`,
		n.Title, n.Content, n.Tags, n.IsFavorite, n.IsArchived, n.WordCount, n.ID,
	)
	return err
}

// SetEnrichment stores the AI-generated summary and key points produced
// by the enrichment worker.
func (r *NoteRepo) SetEnrichment(ctx context.Context, id uuid.UUID, summary string, keyPointsJSON []byte) error {
	if len(keyPointsJSON) == 0 {
		keyPointsJSON = []byte("[]")
	}
	_, err := r.pool.Exec(ctx,
		"UPDATE notes SET ai_summary = $1, key_points_json = $2, updated_at = NOW() WHERE id = $3",
		summary, keyPointsJSON, id,
	)
	return err
}

func (r *NoteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM notes WHERE id = $1", id)
	return err
}

func (r *NoteRepo) ToggleFavorite(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE notes SET is_favorite = NOT is_favorite WHERE id = $1", id)
	return err
}

func (r *NoteRepo) BulkDelete(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) error {
	placeholders := make([]string, len(ids))
	args := []interface{}{userID}
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM notes WHERE user_id = $1 AND id IN (%s)", strings.Join(placeholders, ","))
	_, err := r.pool.Exec(ctx, query, args...)
	return err
}
