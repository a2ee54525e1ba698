package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Note struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	Source         string          `json:"source"` // "manual" | "video" | "file"
	SourceURL      *string         `json:"source_url"`
	AISummary      *string         `json:"ai_summary"`
	KeyPointsJSON  json.RawMessage `json:"key_points"`
	Tags           []string        `json:"tags"`
	WordCount      int             `json:"word_count"`
	IsFavorite     bool            `json:"is_favorite"`
	IsArchived     bool            `json:"is_archived"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	LastReviewedAt *time.Time      `json:"last_reviewed_at"`
}

type CreateNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

type UpdateNoteRequest struct {
	Title      *string  `json:"title"`
	Content    *string  `json:"content"`
	Tags       []string `json:"tags"`
	IsFavorite *bool    `json:"is_favorite"`
	IsArchived *bool    `json:"is_archived"`
}

// TranscribeVideoRequest asks for a lecture video to be turned into a
// note. Processing happens on the background worker.
type TranscribeVideoRequest struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Language string `json:"language"`
}

type VideoMetadata struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelName  string `json:"channel_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	Duration     int    `json:"duration_seconds"`
}

// Chat about a note's content.

type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type NoteChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
}

type NoteChatResponse struct {
	Reply string `json:"reply"`
}
