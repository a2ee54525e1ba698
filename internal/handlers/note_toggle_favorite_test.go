package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
)

type stubNoteRepo struct {
	note    *models.Note
	toggled bool
	lastID  uuid.UUID
}

func (s *stubNoteRepo) Create(ctx context.Context, n *models.Note) error {
	return nil
}

func (s *stubNoteRepo) ListByUser(ctx context.Context, userID uuid.UUID, search, sortBy string, limit, offset int) ([]*models.Note, int, error) {
	return nil, 0, nil
}

func (s *stubNoteRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	if s.note == nil {
		return nil, context.Canceled
	}
	return s.note, nil
}

func (s *stubNoteRepo) Update(ctx context.Context, n *models.Note) error {
	return nil
}

func (s *stubNoteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubNoteRepo) ToggleFavorite(ctx context.Context, id uuid.UUID) error {
	s.toggled = true
	s.lastID = id
	return nil
}

func (s *stubNoteRepo) BulkDelete(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) error {
	return nil
}

func TestNoteHandler_ToggleFavorite_Authorization(t *testing.T) {
	noteID := uuid.New()
	ownerID := uuid.New()
	otherUserID := uuid.New()

	repo := &stubNoteRepo{
		note: &models.Note{ID: noteID, UserID: ownerID},
	}

	h := &NoteHandler{noteRepo: repo}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", noteID.String())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/notes/"+noteID.String()+"/favorite", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, otherUserID))

	rr := httptest.NewRecorder()
	h.ToggleFavorite(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
	if repo.toggled {
		t.Fatalf("toggle should not be executed for non-owner")
	}
}

func TestNoteHandler_ToggleFavorite_OwnerCanToggle(t *testing.T) {
	noteID := uuid.New()
	ownerID := uuid.New()

	repo := &stubNoteRepo{
		note: &models.Note{ID: noteID, UserID: ownerID},
	}

	h := &NoteHandler{noteRepo: repo}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", noteID.String())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/notes/"+noteID.String()+"/favorite", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, ownerID))

	rr := httptest.NewRecorder()
	h.ToggleFavorite(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !repo.toggled {
		t.Fatalf("expected toggle to be executed for owner")
	}
	if repo.lastID != noteID {
		t.Fatalf("unexpected toggle id: %s", repo.lastID)
	}

	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["message"] != "Favorite toggled" {
		t.Fatalf("unexpected response message: %q", payload["message"])
	}
}
