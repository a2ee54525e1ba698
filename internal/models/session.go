package models

import (
	"time"

	"github.com/google/uuid"
)

type StudySession struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Category          string     `json:"category"` // "general" | "flashcards" | "notes" | "quiz"
	StartedAt         time.Time  `json:"started_at"`
	LastActivityAt    time.Time  `json:"last_activity_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	ElapsedSeconds    int        `json:"elapsed_seconds"`
	IsPaused          bool       `json:"is_paused"`
	CardsReviewed     int        `json:"cards_reviewed"`
	CardsCorrect      int        `json:"cards_correct"`
	NotesReviewed     int        `json:"notes_reviewed"`
	QuestionsAnswered int        `json:"questions_answered"`
	EndReason         *string    `json:"end_reason,omitempty"` // "user" | "inactivity" | "max_duration" | "unload" | "superseded"
	CreatedAt         time.Time  `json:"created_at"`
}

// DailyStudyTotal is one row of the dashboard's per-day aggregation.
type DailyStudyTotal struct {
	Day               time.Time `json:"day"`
	Seconds           int       `json:"seconds"`
	CardsReviewed     int       `json:"cards_reviewed"`
	QuestionsAnswered int       `json:"questions_answered"`
}

// Session notice payloads pushed over the websocket hub.

type SessionNotice struct {
	SessionID uuid.UUID `json:"session_id"`
	State     string    `json:"state"`
	Message   string    `json:"message"`
}

type SessionEnded struct {
	SessionID      uuid.UUID `json:"session_id"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Reason         string    `json:"reason"`
}
