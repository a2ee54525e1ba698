package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

type FlashcardHandler struct {
	flashRepo *repository.FlashcardRepo
	noteRepo  noteRepository
	jobRepo   *repository.JobRepo
	redis     *redis.Client
}

func NewFlashcardHandler(flashRepo *repository.FlashcardRepo, noteRepo noteRepository, jobRepo *repository.JobRepo, redisClient *redis.Client) *FlashcardHandler {
	return &FlashcardHandler{
		flashRepo: flashRepo,
		noteRepo:  noteRepo,
		jobRepo:   jobRepo,
		redis:     redisClient,
	}
}

// Generate queues AI card generation from one of the user's notes.
func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.NoteID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "note_id is required", r))
		return
	}

	if req.NumCards <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "num_cards must be greater than 0", r))
		return
	}

	if req.Strategy == "" {
		req.Strategy = "term_definition"
	}
	if req.Strategy == "definitions" {
		req.Strategy = "term_definition"
	}
	if req.Strategy == "qa" {
		req.Strategy = "question_answer"
	}
	if req.Strategy != "term_definition" && req.Strategy != "question_answer" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "strategy must be term_definition or question_answer", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	note, err := h.noteRepo.GetByID(r.Context(), req.NoteID)
	if err != nil || note.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Note not found", r))
		return
	}

	title := req.Title
	if title == "" {
		title = note.Title
	}

	deck := &models.FlashcardDeck{
		UserID:    userID,
		NoteID:    &req.NoteID,
		Title:     title,
		CardCount: req.NumCards,
	}
	configBytes, _ := json.Marshal(req)
	deck.ConfigJSON = configBytes

	if err := h.flashRepo.CreateDeck(r.Context(), deck); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create deck", r))
		return
	}

	job := &models.Job{
		UserID:      userID,
		Type:        "flashcard-generation",
		ReferenceID: deck.ID,
		ConfigJSON:  configBytes,
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	if err := h.redis.LPush(r.Context(), "queue:flashcard-generation", string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue flashcard-generation job %s: %v", job.ID, err)
		_ = h.jobRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.ID,
		"deck_id": deck.ID,
	})
}

// CreateDeck makes an empty deck for manually authored cards.
func (h *FlashcardHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "title is required", r))
		return
	}

	deck := &models.FlashcardDeck{
		UserID:     middleware.GetUserID(r.Context()),
		Title:      req.Title,
		ConfigJSON: json.RawMessage("{}"),
	}

	if err := h.flashRepo.CreateDeck(r.Context(), deck); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create deck", r))
		return
	}

	writeJSON(w, http.StatusCreated, deck)
}

func (h *FlashcardHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.loadOwnedDeck(w, r)
	if !ok {
		return
	}

	var req models.CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Front) == "" || strings.TrimSpace(req.Back) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "front and back are required", r))
		return
	}

	card := models.FlashcardCard{
		Front:    req.Front,
		Back:     req.Back,
		Mnemonic: req.Mnemonic,
		Example:  req.Example,
		Topic:    req.Topic,
	}

	if err := h.flashRepo.CreateCards(r.Context(), deck.ID, []models.FlashcardCard{card}); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create card", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Card created"})
}

func (h *FlashcardHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	decks, err := h.flashRepo.ListDecksByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch decks", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"decks": decks})
}

func (h *FlashcardHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.loadOwnedDeck(w, r)
	if !ok {
		return
	}

	cards, _ := h.flashRepo.GetCardsByDeck(r.Context(), deck.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deck":  deck,
		"cards": cards,
	})
}

func (h *FlashcardHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.loadOwnedDeck(w, r)
	if !ok {
		return
	}

	if err := h.flashRepo.ToggleDeckFavorite(r.Context(), deck.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update favorite", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Favorite toggled"})
}

func (h *FlashcardHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.loadOwnedDeck(w, r)
	if !ok {
		return
	}

	if err := h.flashRepo.DeleteDeck(r.Context(), deck.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete deck", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deck deleted"})
}

// RateCard applies an SM-2 review rating to the card.
func (h *FlashcardHandler) RateCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	var req models.CardRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Rating < 0 || req.Rating > 3 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Rating must be 0-3", r))
		return
	}

	if err := h.flashRepo.RateCard(r.Context(), cardID, req.Rating); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to rate card", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Card rated"})
}

// DueCards returns cards across all of the user's decks whose spaced
// repetition review time has arrived.
func (h *FlashcardHandler) DueCards(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	cards, err := h.flashRepo.GetDueCards(r.Context(), userID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch due cards", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
		"count": len(cards),
	})
}

func (h *FlashcardHandler) GetDeckStats(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.loadOwnedDeck(w, r)
	if !ok {
		return
	}

	stats, err := h.flashRepo.GetDeckStats(r.Context(), deck.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch stats", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *FlashcardHandler) loadOwnedDeck(w http.ResponseWriter, r *http.Request) (*models.FlashcardDeck, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid deck ID", r))
		return nil, false
	}

	deck, err := h.flashRepo.GetDeckByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if deck.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return deck, true
}
