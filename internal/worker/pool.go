package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	urlpkg "net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
	"studyhub-backend/internal/services"
)

type Pool struct {
	redis       *redis.Client
	ai          *services.AIService
	email       *services.EmailService
	userRepo    *repository.UserRepo
	youtube     *services.YouTubeService
	jobRepo     *repository.JobRepo
	noteRepo    *repository.NoteRepo
	quizRepo    *repository.QuizRepo
	flashRepo   *repository.FlashcardRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	ai *services.AIService,
	email *services.EmailService,
	userRepo *repository.UserRepo,
	youtube *services.YouTubeService,
	jobRepo *repository.JobRepo,
	noteRepo *repository.NoteRepo,
	quizRepo *repository.QuizRepo,
	flashRepo *repository.FlashcardRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		ai:          ai,
		email:       email,
		userRepo:    userRepo,
		youtube:     youtube,
		jobRepo:     jobRepo,
		noteRepo:    noteRepo,
		quizRepo:    quizRepo,
		flashRepo:   flashRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{
		"queue:video-transcription",
		"queue:note-enrichment",
		"queue:quiz-generation",
		"queue:flashcard-generation",
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		// Parse job
		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		// Update status
		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")

		// Publish status update
		p.ai.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				Step:     1,
				StepName: "Starting",
			},
		})

		// Execute handler
		var processErr error
		switch job.Type {
		case "video-transcription":
			processErr = p.processTranscription(ctx, &job)
		case "note-enrichment":
			processErr = p.processEnrichment(ctx, &job)
		case "quiz-generation":
			processErr = p.processQuiz(ctx, &job)
		case "flashcard-generation":
			processErr = p.processFlashcards(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// processTranscription turns a lecture video into note content, then runs
// enrichment on the result so the note arrives with a summary attached.
func (p *Pool) processTranscription(ctx context.Context, job *models.Job) error {
	note, err := p.noteRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	if note.SourceURL == nil || *note.SourceURL == "" {
		return fmt.Errorf("note has no source URL")
	}

	videoID := extractVideoID(*note.SourceURL)
	if videoID == "" {
		return fmt.Errorf("invalid YouTube URL: %s", *note.SourceURL)
	}

	p.ai.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     2,
			StepName: "Extracting transcript from video",
		},
	})

	transcript, transcriptErr := p.youtube.GetTranscript(videoID)
	if transcriptErr != nil {
		// STT fallback when the video has no usable caption track
		log.Printf("Transcript extraction failed for %s, trying audio fallback: %v", videoID, transcriptErr)

		audioBytes, mimeType, audioErr := p.youtube.DownloadAudio(*note.SourceURL)
		if audioErr != nil {
			return fmt.Errorf("transcript extraction failed for video %s: %v; audio fallback download failed: %w", videoID, transcriptErr, audioErr)
		}

		p.ai.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				Step:     3,
				StepName: "Transcribing audio",
			},
		})

		transcribed, transcribeErr := p.ai.TranscribeAudio(ctx, audioBytes, mimeType)
		if transcribeErr != nil {
			return fmt.Errorf("transcript extraction failed for video %s: %v; STT fallback transcription failed: %w", videoID, transcriptErr, transcribeErr)
		}

		transcript = transcribed
	}

	note.Content = transcript
	note.WordCount = len(strings.Fields(transcript))
	if err := p.noteRepo.Update(ctx, note); err != nil {
		return fmt.Errorf("failed to save transcript to note: %w", err)
	}

	log.Printf("Saved transcript for video %s to note %s (%d chars)", videoID, note.ID, len(transcript))

	return p.ai.EnrichNote(ctx, job, note)
}

func (p *Pool) processEnrichment(ctx context.Context, job *models.Job) error {
	note, err := p.noteRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	if strings.TrimSpace(note.Content) == "" {
		return fmt.Errorf("cannot enrich note %s: content is empty", note.ID)
	}

	return p.ai.EnrichNote(ctx, job, note)
}

func (p *Pool) processQuiz(ctx context.Context, job *models.Job) error {
	quiz, err := p.quizRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if quiz.NoteID == nil || *quiz.NoteID == uuid.Nil {
		return fmt.Errorf("quiz has no linked note")
	}

	note, err := p.noteRepo.GetByID(ctx, *quiz.NoteID)
	if err != nil {
		return fmt.Errorf("failed to get source note: %w", err)
	}

	return p.ai.GenerateQuiz(ctx, job, noteStudyContent(note))
}

func (p *Pool) processFlashcards(ctx context.Context, job *models.Job) error {
	deck, err := p.flashRepo.GetDeckByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get flashcard deck: %w", err)
	}

	if deck.NoteID == nil || *deck.NoteID == uuid.Nil {
		return fmt.Errorf("flashcard deck has no linked note")
	}

	note, err := p.noteRepo.GetByID(ctx, *deck.NoteID)
	if err != nil {
		return fmt.Errorf("failed to get source note: %w", err)
	}

	return p.ai.GenerateFlashcards(ctx, job, noteStudyContent(note))
}

// noteStudyContent prefers raw note content but falls back to the AI
// summary plus key points when the content is still empty, such as a
// video note whose transcription is lagging behind.
func noteStudyContent(note *models.Note) string {
	if strings.TrimSpace(note.Content) != "" {
		return note.Content
	}

	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(note.Title)
	if note.AISummary != nil && *note.AISummary != "" {
		b.WriteString("\n\nSummary: ")
		b.WriteString(*note.AISummary)
	}
	if len(note.KeyPointsJSON) > 0 {
		var keyPoints []string
		if err := json.Unmarshal(note.KeyPointsJSON, &keyPoints); err == nil && len(keyPoints) > 0 {
			b.WriteString("\n\nKey points:\n")
			for _, kp := range keyPoints {
				b.WriteString("- ")
				b.WriteString(kp)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func extractVideoID(url string) string {
	parsed, err := urlpkg.Parse(url)
	if err == nil {
		host := strings.ToLower(parsed.Host)
		path := strings.Trim(parsed.Path, "/")

		// youtube.com/watch?v=VIDEO_ID
		if strings.Contains(host, "youtube.com") {
			if v := parsed.Query().Get("v"); len(v) == 11 {
				return v
			}

			parts := strings.Split(path, "/")
			if len(parts) >= 2 {
				switch parts[0] {
				case "shorts", "embed", "v":
					if len(parts[1]) == 11 {
						return parts[1]
					}
				}
			}
		}

		// youtu.be/VIDEO_ID
		if strings.Contains(host, "youtu.be") {
			if len(path) >= 11 {
				candidate := strings.Split(path, "/")[0]
				if len(candidate) == 11 {
					return candidate
				}
			}
		}
	}

	// Fallback regex for unusual URL forms
	re := regexp.MustCompile(`(?:v=|\/v\/|youtu\.be\/|embed\/|shorts\/)([a-zA-Z0-9_-]{11})`)
	if m := re.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}

	return ""
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")

	if job.Type == "video-transcription" || job.Type == "note-enrichment" {
		go p.sendProcessingCompleteEmail(context.Background(), job)
	}

	p.ai.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: getResultType(job.Type),
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) sendProcessingCompleteEmail(ctx context.Context, job *models.Job) {
	if p.email == nil || p.userRepo == nil || p.noteRepo == nil {
		return
	}

	enabled, err := p.userRepo.GetNotificationSetting(ctx, job.UserID, "processing_complete", true)
	if err != nil {
		log.Printf("failed to load processing_complete notification preference for user %s: %v", job.UserID, err)
		return
	}

	if !enabled {
		return
	}

	user, err := p.userRepo.GetByID(ctx, job.UserID)
	if err != nil {
		log.Printf("failed to load user %s for completion email: %v", job.UserID, err)
		return
	}

	note, err := p.noteRepo.GetByID(ctx, job.ReferenceID)
	if err != nil {
		log.Printf("failed to load note %s for completion email: %v", job.ReferenceID, err)
		return
	}

	if err := p.email.SendProcessingCompleteEmail(user.Email, note.Title, note.ID.String()); err != nil {
		log.Printf("failed to send processing-complete email to %s for note %s: %v", user.Email, note.ID, err)
	}
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < 3 {
		// Re-queue with backoff
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), "queue:"+job.Type, string(jobBytes))
		})
	} else {
		// Max retries reached
		log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		p.ai.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type: "error",
			Payload: models.ErrorEvent{
				JobID:        job.ID,
				ErrorCode:    "JOB_FAILED",
				ErrorMessage: errMsg,
			},
		})
	}
}

func getResultType(jobType string) string {
	switch jobType {
	case "quiz-generation":
		return "quiz"
	case "flashcard-generation":
		return "flashcard_deck"
	default:
		return "note"
	}
}
