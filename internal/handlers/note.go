package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
	"studyhub-backend/internal/services"
)

type NoteHandler struct {
	noteRepo    noteRepository
	jobRepo     *repository.JobRepo
	aiService   *services.AIService
	extract     *services.FileExtractService
	redis       *redis.Client
	storagePath string
}

type noteRepository interface {
	Create(ctx context.Context, n *models.Note) error
	ListByUser(ctx context.Context, userID uuid.UUID, search, sortBy string, limit, offset int) ([]*models.Note, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Note, error)
	Update(ctx context.Context, n *models.Note) error
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleFavorite(ctx context.Context, id uuid.UUID) error
	BulkDelete(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) error
}

func NewNoteHandler(noteRepo noteRepository, jobRepo *repository.JobRepo, aiService *services.AIService, extract *services.FileExtractService, redisClient *redis.Client, storagePath string) *NoteHandler {
	return &NoteHandler{
		noteRepo:    noteRepo,
		jobRepo:     jobRepo,
		aiService:   aiService,
		extract:     extract,
		redis:       redisClient,
		storagePath: storagePath,
	}
}

var youtubeRegex = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)([\w-]{11})`)

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "title is required", r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	note := &models.Note{
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		Source:    "manual",
		Tags:      req.Tags,
		WordCount: wordCount(req.Content),
	}

	if err := h.noteRepo.Create(r.Context(), note); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create note", r))
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	search := r.URL.Query().Get("search")
	sortBy := r.URL.Query().Get("sort")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > 50 {
		limit = 20
	}

	notes, total, err := h.noteRepo.ListByUser(r.Context(), userID, search, sortBy, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch notes", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notes":  notes,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnedNote(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnedNote(w, r)
	if !ok {
		return
	}

	var update models.UpdateNoteRequest
	json.NewDecoder(r.Body).Decode(&update)

	if update.Title != nil && *update.Title != "" {
		note.Title = *update.Title
	}
	if update.Content != nil {
		note.Content = *update.Content
		note.WordCount = wordCount(note.Content)
	}
	if update.Tags != nil {
		note.Tags = update.Tags
	}
	if update.IsFavorite != nil {
		note.IsFavorite = *update.IsFavorite
	}
	if update.IsArchived != nil {
		note.IsArchived = *update.IsArchived
	}

	if err := h.noteRepo.Update(r.Context(), note); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update note", r))
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnedNote(w, r)
	if !ok {
		return
	}

	if err := h.noteRepo.Delete(r.Context(), note.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete note", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted"})
}

func (h *NoteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnedNote(w, r)
	if !ok {
		return
	}

	if err := h.noteRepo.ToggleFavorite(r.Context(), note.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update favorite", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Favorite toggled"})
}

func (h *NoteHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "ids is required", r))
		return
	}

	if err := h.noteRepo.BulkDelete(r.Context(), req.IDs, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete notes", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Notes deleted"})
}

// Enrich queues AI enrichment for the note: summary, key points and tag
// suggestions land on the row when the worker finishes.
func (h *NoteHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnedNote(w, r)
	if !ok {
		return
	}

	if strings.TrimSpace(note.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Note has no content to enrich", r))
		return
	}

	job := &models.Job{
		UserID:      note.UserID,
		Type:        "note-enrichment",
		ReferenceID: note.ID,
		ConfigJSON:  json.RawMessage("{}"),
	}

	if !h.enqueueJob(w, r, job) {
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.ID,
		"note_id": note.ID,
	})
}

// TranscribeVideo creates a placeholder note for a lecture video and
// queues transcription. Metadata comes from YouTube's oEmbed endpoint so
// the client can render a card before the worker finishes.
func (h *NoteHandler) TranscribeVideo(w http.ResponseWriter, r *http.Request) {
	var req models.TranscribeVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	matches := youtubeRegex.FindStringSubmatch(req.URL)
	if len(matches) < 2 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid YouTube URL", r))
		return
	}

	videoID := matches[1]
	userID := middleware.GetUserID(r.Context())

	oembedURL := "https://www.youtube.com/oembed?url=https://www.youtube.com/watch?v=" + videoID + "&format=json"
	resp, err := http.Get(oembedURL)
	var oembed struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err == nil && resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()
		json.NewDecoder(resp.Body).Decode(&oembed)
	}

	title := req.Title
	if title == "" {
		title = oembed.Title
	}
	if title == "" {
		title = "YouTube Video: " + videoID
	}
	if oembed.ThumbnailURL == "" {
		oembed.ThumbnailURL = "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"
	}

	note := &models.Note{
		UserID:    userID,
		Title:     title,
		Source:    "video",
		SourceURL: &req.URL,
	}

	if err := h.noteRepo.Create(r.Context(), note); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create note record", r))
		return
	}

	configBytes, _ := json.Marshal(req)
	job := &models.Job{
		UserID:      userID,
		Type:        "video-transcription",
		ReferenceID: note.ID,
		ConfigJSON:  configBytes,
	}

	if !h.enqueueJob(w, r, job) {
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.ID,
		"note_id":  note.ID,
		"video_id": videoID,
		"metadata": models.VideoMetadata{
			VideoID:      videoID,
			Title:        title,
			ChannelName:  oembed.AuthorName,
			ThumbnailURL: oembed.ThumbnailURL,
		},
	})
}

// Upload turns a document into a note. Text extraction runs inline since
// pdf/docx/txt parsing is fast; enrichment still goes through the worker.
func (h *NoteHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 25*1024*1024 {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 25MB limit", r))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 25*1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	buf = buf[:n]

	mimeType := http.DetectContentType(buf)
	if !isAllowedMimeType(mimeType, header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "File type not supported", r))
		return
	}

	file.Seek(0, io.SeekStart)

	userID := middleware.GetUserID(r.Context())
	fileID := uuid.New().String()
	dir := filepath.Join(h.storagePath, "users", userID.String(), "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	path := filepath.Join(dir, fileID+getExtension(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	dst.Close()
	defer os.Remove(path)

	text, err := h.extract.ExtractTextFromPath(path)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("failed to extract text from %s: %v", header.Filename, err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EXTRACTION_FAILED", "Could not extract text from the file", r))
		return
	}

	note := &models.Note{
		UserID:    userID,
		Title:     strings.TrimSuffix(header.Filename, getExtension(header.Filename)),
		Content:   text,
		Source:    "file",
		WordCount: wordCount(text),
	}

	if err := h.noteRepo.Create(r.Context(), note); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create note record", r))
		return
	}

	job := &models.Job{
		UserID:      userID,
		Type:        "note-enrichment",
		ReferenceID: note.ID,
		ConfigJSON:  json.RawMessage("{}"),
	}

	if !h.enqueueJob(w, r, job) {
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.ID,
		"note_id":  note.ID,
		"filename": header.Filename,
	})
}

func (h *NoteHandler) SupportedFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formats": []map[string]string{
			{"extension": ".pdf", "mime_type": "application/pdf", "description": "PDF Document"},
			{"extension": ".docx", "mime_type": "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "description": "Word Document"},
			{"extension": ".txt", "mime_type": "text/plain", "description": "Plain Text"},
		},
	})
}

// Chat answers a question grounded in the note's content.
func (h *NoteHandler) Chat(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnedNote(w, r)
	if !ok {
		return
	}

	var req models.NoteChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	if strings.TrimSpace(note.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Note has no content to chat about", r))
		return
	}

	reply, err := h.aiService.ChatAboutNote(r.Context(), note, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "Failed to get AI response", r))
		return
	}

	writeJSON(w, http.StatusOK, models.NoteChatResponse{Reply: reply})
}

func (h *NoteHandler) loadOwnedNote(w http.ResponseWriter, r *http.Request) (*models.Note, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid note ID", r))
		return nil, false
	}

	note, err := h.noteRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Note not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if note.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return note, true
}

func (h *NoteHandler) enqueueJob(w http.ResponseWriter, r *http.Request, job *models.Job) bool {
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return false
	}

	if h.redis == nil {
		_ = h.jobRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Job queue is unavailable", r))
		return false
	}

	jobBytes, _ := json.Marshal(job)
	if err := h.redis.LPush(r.Context(), "queue:"+job.Type, string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue %s job %s: %v", job.Type, job.ID, err)
		_ = h.jobRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue job", r))
		return false
	}

	return true
}

func isAllowedMimeType(mime, filename string) bool {
	allowed := map[string]bool{
		"application/pdf":          true,
		"text/plain":               true,
		"application/zip":          true, // docx is a zip container
		"application/octet-stream": true,
	}
	if allowed[mime] || strings.HasPrefix(mime, "text/plain;") {
		return true
	}
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".docx") ||
		strings.HasSuffix(lower, ".txt")
}

func getExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}
