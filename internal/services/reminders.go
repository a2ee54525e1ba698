package services

import (
	"context"
	"log"
	"time"

	"studyhub-backend/internal/models"
	"studyhub-backend/internal/repository"
)

const (
	weeklyDigestLastSentKey  = "weekly_digest_last_sent_at"
	studyReminderLastSentKey = "study_reminders_last_sent_at"
	weeklyDigestInterval     = 7 * 24 * time.Hour
	studyReminderInterval    = 72 * time.Hour
	notificationPollInterval = 1 * time.Hour
	todoReminderPollInterval = 1 * time.Minute
	todoReminderBatchSize    = 100
)

// ReminderScheduler drives the three periodic email/notification loops:
// weekly digests, study-inactivity reminders and per-todo reminders.
type ReminderScheduler struct {
	userRepo *repository.UserRepo
	todoRepo *repository.TodoRepo
	email    *EmailService
	notifier *RedisNotifier
	stopChan chan struct{}
}

func NewReminderScheduler(userRepo *repository.UserRepo, todoRepo *repository.TodoRepo, email *EmailService, notifier *RedisNotifier) *ReminderScheduler {
	return &ReminderScheduler{
		userRepo: userRepo,
		todoRepo: todoRepo,
		email:    email,
		notifier: notifier,
		stopChan: make(chan struct{}),
	}
}

func (s *ReminderScheduler) Start() {
	if s.userRepo == nil || s.email == nil {
		return
	}

	go s.loop(notificationPollInterval, func(ctx context.Context, now time.Time) {
		s.sendWeeklyDigests(ctx, now)
	})
	go s.loop(notificationPollInterval, func(ctx context.Context, now time.Time) {
		s.sendStudyReminders(ctx, now)
	})
	if s.todoRepo != nil {
		go s.loop(todoReminderPollInterval, func(ctx context.Context, now time.Time) {
			s.sendTodoReminders(ctx, now)
		})
	}

	log.Printf("Reminder scheduler started")
}

func (s *ReminderScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ReminderScheduler) loop(interval time.Duration, runFn func(ctx context.Context, now time.Time)) {
	// Run on startup as well as by interval.
	runFn(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			runFn(context.Background(), time.Now().UTC())
		}
	}
}

func (s *ReminderScheduler) sendWeeklyDigests(ctx context.Context, now time.Time) {
	recipients, err := s.userRepo.ListUsersWithNotificationEnabled(ctx, "weekly_digest", weeklyDigestLastSentKey)
	if err != nil {
		log.Printf("weekly digest: failed to list recipients: %v", err)
		return
	}

	for _, recipient := range recipients {
		if !shouldSendByLastSent(recipient.LastSentAtRaw, weeklyDigestInterval, now) {
			continue
		}

		notes, quizzes, decks, studyHours, statsErr := s.userRepo.GetWeeklyDigestStats(ctx, recipient.ID)
		if statsErr != nil {
			log.Printf("weekly digest: failed to load stats for user %s: %v", recipient.ID, statsErr)
			continue
		}

		if notes == 0 && quizzes == 0 && decks == 0 && studyHours <= 0 {
			continue
		}

		if err := s.email.SendWeeklyDigestEmail(recipient.Email, recipient.FullName, notes, quizzes, decks, studyHours); err != nil {
			log.Printf("weekly digest: failed to send to %s: %v", recipient.Email, err)
			continue
		}

		if err := s.userRepo.SetNotificationTimestamp(ctx, recipient.ID, weeklyDigestLastSentKey, now); err != nil {
			log.Printf("weekly digest: failed to persist last sent at for user %s: %v", recipient.ID, err)
		}
	}
}

func (s *ReminderScheduler) sendStudyReminders(ctx context.Context, now time.Time) {
	recipients, err := s.userRepo.ListUsersWithNotificationEnabled(ctx, "study_reminders", studyReminderLastSentKey)
	if err != nil {
		log.Printf("study reminders: failed to list recipients: %v", err)
		return
	}

	for _, recipient := range recipients {
		if !shouldSendByLastSent(recipient.LastSentAtRaw, studyReminderInterval, now) {
			continue
		}

		lastActivityAt, activityErr := s.userRepo.GetLatestActivityAt(ctx, recipient.ID)
		if activityErr != nil {
			log.Printf("study reminders: failed to load latest activity for user %s: %v", recipient.ID, activityErr)
			continue
		}

		referenceTime := reminderReferenceTime(lastActivityAt, recipient.CreatedAt)
		if now.Sub(referenceTime) < studyReminderInterval {
			continue
		}

		if err := s.email.SendStudyReminderEmail(recipient.Email, recipient.FullName, lastActivityAt); err != nil {
			log.Printf("study reminders: failed to send to %s: %v", recipient.Email, err)
			continue
		}

		if err := s.userRepo.SetNotificationTimestamp(ctx, recipient.ID, studyReminderLastSentKey, now); err != nil {
			log.Printf("study reminders: failed to persist last sent at for user %s: %v", recipient.ID, err)
		}
	}
}

// sendTodoReminders delivers one-shot reminders for tasks whose remind_at
// has passed: an in-app notice over the websocket channel plus an email.
// Marking reminder_sent before the email keeps retries from double-sending.
func (s *ReminderScheduler) sendTodoReminders(ctx context.Context, now time.Time) {
	todos, err := s.todoRepo.DueReminders(ctx, now, todoReminderBatchSize)
	if err != nil {
		log.Printf("todo reminders: failed to list due reminders: %v", err)
		return
	}

	for _, todo := range todos {
		if err := s.todoRepo.MarkReminderSent(ctx, todo.ID); err != nil {
			log.Printf("todo reminders: failed to mark %s sent: %v", todo.ID, err)
			continue
		}

		if s.notifier != nil {
			s.notifier.Publish(ctx, todo.UserID, models.WSMessage{
				Type:    "todo_reminder",
				Payload: todo,
			})
		}

		user, userErr := s.userRepo.GetByID(ctx, todo.UserID)
		if userErr != nil {
			log.Printf("todo reminders: failed to load user %s: %v", todo.UserID, userErr)
			continue
		}

		enabled, _ := s.userRepo.GetNotificationSetting(ctx, todo.UserID, "todo_reminder_emails", true)
		if !enabled {
			continue
		}

		if err := s.email.SendTodoReminderEmail(user.Email, user.FullName, todo.Title, todo.DueAt); err != nil {
			log.Printf("todo reminders: failed to email %s: %v", user.Email, err)
		}
	}
}

func shouldSendByLastSent(lastSentRaw string, minInterval time.Duration, now time.Time) bool {
	if lastSentRaw == "" {
		return true
	}

	lastSentAt, err := time.Parse(time.RFC3339, lastSentRaw)
	if err != nil {
		return true
	}

	return now.Sub(lastSentAt) >= minInterval
}

func reminderReferenceTime(lastActivityAt *time.Time, createdAt time.Time) time.Time {
	if lastActivityAt != nil && !lastActivityAt.IsZero() {
		return lastActivityAt.UTC()
	}

	return createdAt.UTC()
}
