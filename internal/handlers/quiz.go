package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

type QuizHandler struct {
	quizRepo *repository.QuizRepo
	noteRepo noteRepository
	jobRepo  *repository.JobRepo
	redis    *redis.Client
}

func NewQuizHandler(quizRepo *repository.QuizRepo, noteRepo noteRepository, jobRepo *repository.JobRepo, redisClient *redis.Client) *QuizHandler {
	return &QuizHandler{
		quizRepo: quizRepo,
		noteRepo: noteRepo,
		jobRepo:  jobRepo,
		redis:    redisClient,
	}
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
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

	quiz := &models.Quiz{
		UserID:        userID,
		NoteID:        &req.NoteID,
		Title:         title,
		QuestionCount: req.NumQuestions,
	}
	configBytes, _ := json.Marshal(req)
	quiz.ConfigJSON = configBytes
	quiz.QuestionsJSON = json.RawMessage("[]")

	if err := h.quizRepo.Create(r.Context(), quiz); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create quiz", r))
		return
	}

	job := &models.Job{
		UserID:      userID,
		Type:        "quiz-generation",
		ReferenceID: quiz.ID,
		ConfigJSON:  configBytes,
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	if err := h.redis.LPush(r.Context(), "queue:quiz-generation", string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue quiz-generation job %s: %v", job.ID, err)
		_ = h.jobRepo.UpdateStatus(r.Context(), job.ID, "failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.ID,
		"quiz_id": quiz.ID,
	})
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	quizzes, err := h.quizRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch quizzes", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.loadOwnedQuiz(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.loadOwnedQuiz(w, r)
	if !ok {
		return
	}

	if err := h.quizRepo.Delete(r.Context(), quiz.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete quiz", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Quiz deleted"})
}

func (h *QuizHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.loadOwnedQuiz(w, r)
	if !ok {
		return
	}

	attempt := &models.QuizAttempt{
		QuizID: quiz.ID,
		UserID: quiz.UserID,
	}

	if err := h.quizRepo.CreateAttempt(r.Context(), attempt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start quiz", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"attempt_id": attempt.ID,
		"started_at": attempt.StartedAt,
	})
}

// ListAttempts returns the user's history for one quiz, newest first.
func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.loadOwnedQuiz(w, r)
	if !ok {
		return
	}

	attempts, err := h.quizRepo.ListAttemptsByQuiz(r.Context(), quiz.ID, quiz.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch attempts", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}

func (h *QuizHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.loadOwnedAttempt(w, r)
	if !ok {
		return
	}

	var progress models.SaveProgressRequest
	json.NewDecoder(r.Body).Decode(&progress)

	// Merge with existing answers
	var answers []map[string]int
	if attempt.AnswersJSON != nil {
		json.Unmarshal(attempt.AnswersJSON, &answers)
	}

	found := false
	for i, a := range answers {
		if a["question_index"] == progress.QuestionIndex {
			answers[i]["answer_index"] = progress.AnswerIndex
			found = true
			break
		}
	}
	if !found {
		answers = append(answers, map[string]int{
			"question_index": progress.QuestionIndex,
			"answer_index":   progress.AnswerIndex,
		})
	}

	answersJSON, _ := json.Marshal(answers)
	h.quizRepo.SaveProgress(r.Context(), attempt.ID, answersJSON)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Progress saved"})
}

func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.loadOwnedAttempt(w, r)
	if !ok {
		return
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), attempt.QuizID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch quiz", r))
		return
	}

	var questions []models.QuizQuestion
	json.Unmarshal(quiz.QuestionsJSON, &questions)

	var answers []map[string]int
	json.Unmarshal(attempt.AnswersJSON, &answers)

	correct := 0
	for _, a := range answers {
		qi := a["question_index"]
		ai := a["answer_index"]
		if qi < len(questions) && questions[qi].CorrectIndex == ai {
			correct++
		}
	}

	total := len(questions)
	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}

	answersJSON, _ := json.Marshal(answers)
	h.quizRepo.SubmitAttempt(r.Context(), attempt.ID, score, correct, answersJSON)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score_percent": score,
		"correct_count": correct,
		"total":         total,
		"attempt_id":    attempt.ID,
	})
}

func (h *QuizHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.loadOwnedAttempt(w, r)
	if !ok {
		return
	}

	// Include quiz questions for the results page
	quiz, _ := h.quizRepo.GetByID(r.Context(), attempt.QuizID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempt":   attempt,
		"questions": quiz.QuestionsJSON,
		"quiz":      quiz,
	})
}

func (h *QuizHandler) loadOwnedQuiz(w http.ResponseWriter, r *http.Request) (*models.Quiz, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
		return nil, false
	}

	quiz, err := h.quizRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Quiz not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if quiz.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return quiz, true
}

func (h *QuizHandler) loadOwnedAttempt(w http.ResponseWriter, r *http.Request) (*models.QuizAttempt, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid attempt ID", r))
		return nil, false
	}

	attempt, err := h.quizRepo.GetAttemptByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Attempt not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if attempt.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return attempt, true
}
