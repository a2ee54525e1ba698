package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"google.golang.org/api/option"

	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

type AIService struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	noteRepo  *repository.NoteRepo
	quizRepo  *repository.QuizRepo
	flashRepo *repository.FlashcardRepo
	jobRepo   *repository.JobRepo
	redis     *redis.Client
	rateChan  chan struct{} // Token bucket
}

func NewAIService(
	apiKey string,
	concurrentReqs int,
	noteRepo *repository.NoteRepo,
	quizRepo *repository.QuizRepo,
	flashRepo *repository.FlashcardRepo,
	jobRepo *repository.JobRepo,
	redisClient *redis.Client,
) (*AIService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &AIService{
		client:    client,
		model:     model,
		noteRepo:  noteRepo,
		quizRepo:  quizRepo,
		flashRepo: flashRepo,
		jobRepo:   jobRepo,
		redis:     redisClient,
		rateChan:  rateChan,
	}, nil
}

func (s *AIService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *AIService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *AIService) releaseRate() {
	s.rateChan <- struct{}{}
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (s *AIService) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	s.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}

// EnrichNote generates an AI summary, key points and tags for a note.
func (s *AIService) EnrichNote(ctx context.Context, job *models.Job, note *models.Note) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	var config struct {
		Language string `json:"language"`
	}
	json.Unmarshal(job.ConfigJSON, &config)

	prompt := buildEnrichmentPrompt(config.Language, note.Content)

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 1, StepName: "Analyzing Note",
			EstimatedSecondsRemaining: 20,
		},
	})

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		log.Printf("Gemini Candidate %d: FinishReason=%s, TokenCount=%d", i, cand.FinishReason, cand.TokenCount)
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini stopped due to %s", cand.FinishReason)
		}
	}

	rawText := stripCodeFence(extractText(resp))
	if rawText == "" {
		return fmt.Errorf("Gemini returned empty enrichment")
	}

	var enrichment struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
		Tags      []string `json:"tags"`
		Title     string   `json:"suggested_title"`
	}
	if err := json.Unmarshal([]byte(rawText), &enrichment); err != nil {
		// Try to extract the JSON object
		start := strings.Index(rawText, "{")
		end := strings.LastIndex(rawText, "}")
		if start >= 0 && end > start {
			if err := json.Unmarshal([]byte(rawText[start:end+1]), &enrichment); err != nil {
				return fmt.Errorf("failed to parse enrichment response: %w", err)
			}
		} else {
			return fmt.Errorf("failed to parse enrichment response: %w", err)
		}
	}

	keyPointsJSON, _ := json.Marshal(enrichment.KeyPoints)
	if err := s.noteRepo.SetEnrichment(ctx, note.ID, enrichment.Summary, keyPointsJSON); err != nil {
		return err
	}

	// Fill in title and tags only where the user left them empty
	if note.Title == "" || len(note.Tags) == 0 {
		if note.Title == "" && enrichment.Title != "" {
			note.Title = enrichment.Title
		}
		if len(note.Tags) == 0 && len(enrichment.Tags) > 0 {
			note.Tags = enrichment.Tags
		}
		s.noteRepo.Update(ctx, note)
	}

	return nil
}

// TranscribeAudio uses the Gemini File API to transcribe lecture audio.
func (s *AIService) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	file, err := s.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{
		DisplayName: "lecture-audio",
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio to Gemini: %w", err)
	}

	// Ensure remote file is cleaned up
	defer s.client.DeleteFile(context.Background(), file.Name)

	// Wait until file is active
	for i := 0; i < 20; i++ {
		current, getErr := s.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}

		if current.State == genai.FileStateActive {
			file = current
			break
		}
		if current.State == genai.FileStateFailed {
			return "", fmt.Errorf("Gemini failed to process uploaded audio file")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if file.State != genai.FileStateActive {
		return "", fmt.Errorf("audio file did not become active in time")
	}

	prompt := "Transcribe the provided audio verbatim. Return plain text only, without markdown, headers, or explanations."

	resp, err := s.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini transcription error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty transcription")
	}

	return text, nil
}

// GenerateQuiz handles quiz generation from a note's content
func (s *AIService) GenerateQuiz(ctx context.Context, job *models.Job, noteContent string) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	var config models.GenerateQuizRequest
	json.Unmarshal(job.ConfigJSON, &config)

	prompt := buildQuizPrompt(config, noteContent)

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 2, StepName: "Generating Questions",
			EstimatedSecondsRemaining: 20,
		},
	})

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	rawText := stripCodeFence(extractText(resp))

	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(rawText), &questions); err != nil {
		// Try to extract JSON array
		start := strings.Index(rawText, "[")
		end := strings.LastIndex(rawText, "]")
		if start >= 0 && end > start {
			json.Unmarshal([]byte(rawText[start:end+1]), &questions)
		}
	}

	// Validate
	validQuestions := validateQuizQuestions(questions)
	questionsJSON, _ := json.Marshal(validQuestions)

	return s.quizRepo.UpdateQuestions(ctx, job.ReferenceID, questionsJSON, len(validQuestions))
}

// GenerateFlashcards handles flashcard generation from a note's content
func (s *AIService) GenerateFlashcards(ctx context.Context, job *models.Job, noteContent string) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	var config models.GenerateFlashcardsRequest
	json.Unmarshal(job.ConfigJSON, &config)

	prompt := buildFlashcardPrompt(config, noteContent)

	s.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID: job.ID, Step: 2, StepName: "Creating Flashcards",
			EstimatedSecondsRemaining: 15,
		},
	})

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	rawText := stripCodeFence(extractText(resp))

	type cardJSON struct {
		Front      string  `json:"front"`
		Back       string  `json:"back"`
		Difficulty int     `json:"difficulty"`
		Mnemonic   *string `json:"mnemonic"`
		Example    *string `json:"example"`
		Topic      string  `json:"topic"`
	}

	var cards []cardJSON
	if err := json.Unmarshal([]byte(rawText), &cards); err != nil {
		start := strings.Index(rawText, "[")
		end := strings.LastIndex(rawText, "]")
		if start >= 0 && end > start {
			json.Unmarshal([]byte(rawText[start:end+1]), &cards)
		}
	}

	// Convert to model cards
	modelCards := make([]models.FlashcardCard, len(cards))
	for i, c := range cards {
		modelCards[i] = models.FlashcardCard{
			Front:      c.Front,
			Back:       c.Back,
			Mnemonic:   c.Mnemonic,
			Example:    c.Example,
			Topic:      c.Topic,
			Difficulty: c.Difficulty,
		}
	}

	return s.flashRepo.CreateCards(ctx, job.ReferenceID, validateFlashcardCards(modelCards, config))
}

// ChatAboutNote answers a question grounded in a single note's content.
func (s *AIService) ChatAboutNote(ctx context.Context, note *models.Note, req models.NoteChatRequest) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	var b strings.Builder
	b.WriteString("You are a study tutor. Answer the student's question using ONLY the note content below. ")
	b.WriteString("If the answer is not in the note, say so briefly.\n\n")
	b.WriteString("---NOTE---\n")
	b.WriteString(note.Content)
	b.WriteString("\n---END NOTE---\n\n")

	for _, msg := range req.History {
		role := "Student"
		if msg.Role == "assistant" {
			role = "Tutor"
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", role, msg.Content))
	}
	b.WriteString(fmt.Sprintf("Student: %s\nTutor:", req.Message))

	resp, err := s.model.GenerateContent(ctx, genai.Text(b.String()))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	reply := strings.TrimSpace(extractText(resp))
	if reply == "" {
		return "", fmt.Errorf("Gemini returned an empty reply")
	}
	return reply, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func stripCodeFence(text string) string {
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func buildEnrichmentPrompt(language, content string) string {
	var b strings.Builder

	b.WriteString("You are an expert study assistant. Analyze the student note below.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(`JSON schema:
{"summary": "3-5 sentence summary of the note", "key_points": ["string", "..."], "tags": ["tag1","tag2","tag3"], "suggested_title": "title under 60 chars"}

Rules:
- 3 to 8 key points, each a single self-contained sentence
- Tags are lowercase single words or short phrases
`)

	if language != "" && language != "en" {
		b.WriteString(fmt.Sprintf("\nLanguage: Respond entirely in %s.\n", language))
	}

	b.WriteString("\n---NOTE---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}

func buildQuizPrompt(config models.GenerateQuizRequest, content string) string {
	var b strings.Builder

	b.WriteString("You are an expert educational assessor. Generate quiz questions based on the following content.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")

	b.WriteString(fmt.Sprintf("Generate exactly %d questions.\n", config.NumQuestions))

	if len(config.QuestionTypes) > 0 {
		mcCount := config.NumQuestions * 7 / 10
		tfCount := config.NumQuestions - mcCount
		for _, qt := range config.QuestionTypes {
			if qt == "true_false" {
				b.WriteString(fmt.Sprintf("Include %d true/false questions and %d multiple choice questions.\n", tfCount, mcCount))
				break
			}
		}
	}

	b.WriteString(fmt.Sprintf("Difficulty: %s\n", config.Difficulty))

	switch config.Difficulty {
	case "easy":
		b.WriteString("Easy = direct recall from text.\n")
	case "medium":
		b.WriteString("Medium = application of concepts.\n")
	case "hard":
		b.WriteString("Hard = analysis, synthesis, or inference beyond what is explicitly stated.\n")
	}

	b.WriteString(`
JSON schema per question:
{"question": "string", "type": "multiple_choice"|"true_false", "options": ["string"], "correct_index": int, "explanation": "string", "hint": "string", "difficulty": "easy"|"medium"|"hard", "topic": "string"}

For multiple_choice: exactly 4 options. For true_false: exactly 2 options ["True", "False"].
`)

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}

func buildFlashcardPrompt(config models.GenerateFlashcardsRequest, content string) string {
	var b strings.Builder

	b.WriteString("You are an expert flashcard creator. Generate high-quality flashcards from the content below.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("Generate exactly %d flashcards.\n\n", config.NumCards))

	switch config.Strategy {
	case "term_definition":
		b.WriteString("Strategy: Front = term or concept. Back = clear definition.\n")
	case "question_answer":
		b.WriteString("Strategy: Front = question. Back = concise answer.\n")
	}

	b.WriteString(`
Rules:
- Front must be under 15 words (question or term, never a statement)
- Back must be under 60 words and self-contained
- No two cards may test the same concept
- Vary card types

JSON schema per card:
{"front": "string", "back": "string", "difficulty": 1|2|3, "mnemonic": "string|null", "example": "string|null", "topic": "string"}
`)

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(content)
	b.WriteString("\n---END---\n")

	return b.String()
}

// validateFlashcardCards normalizes generated cards against the request
// options: difficulty clamped to 1..3, mnemonics and examples present
// only when asked for.
func validateFlashcardCards(cards []models.FlashcardCard, cfg models.GenerateFlashcardsRequest) []models.FlashcardCard {
	valid := make([]models.FlashcardCard, 0, len(cards))
	for _, c := range cards {
		if c.Front == "" || c.Back == "" {
			continue
		}
		if c.Difficulty < 1 || c.Difficulty > 3 {
			c.Difficulty = 2
		}

		if cfg.IncludeMnemonics {
			if c.Mnemonic == nil || *c.Mnemonic == "" {
				m := "Link \"" + c.Front + "\" to a vivid image or phrase you already know."
				c.Mnemonic = &m
			}
		} else {
			c.Mnemonic = nil
		}

		if cfg.IncludeExamples {
			if c.Example == nil || *c.Example == "" {
				e := c.Back
				c.Example = &e
			}
		} else {
			c.Example = nil
		}

		valid = append(valid, c)
	}
	return valid
}

func validateQuizQuestions(questions []models.QuizQuestion) []models.QuizQuestion {
	var valid []models.QuizQuestion
	for _, q := range questions {
		if q.Question == "" || len(q.Options) == 0 {
			continue
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			q.CorrectIndex = 0
		}
		if q.Type == "true_false" && len(q.Options) != 2 {
			q.Options = []string{"True", "False"}
		}
		valid = append(valid, q)
	}
	return valid
}
