package models

import (
	"time"

	"github.com/google/uuid"
)

type Todo struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Title        string     `json:"title"`
	Notes        *string    `json:"notes"`
	Priority     int        `json:"priority"` // 1=low, 2=medium, 3=high
	DueAt        *time.Time `json:"due_at"`
	RemindAt     *time.Time `json:"remind_at"`
	ReminderSent bool       `json:"reminder_sent"`
	IsDone       bool       `json:"is_done"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CreateTodoRequest struct {
	Title    string     `json:"title"`
	Notes    *string    `json:"notes"`
	Priority int        `json:"priority"`
	DueAt    *time.Time `json:"due_at"`
	RemindAt *time.Time `json:"remind_at"`
}

type UpdateTodoRequest struct {
	Title    *string    `json:"title"`
	Notes    *string    `json:"notes"`
	Priority *int       `json:"priority"`
	DueAt    *time.Time `json:"due_at"`
	RemindAt *time.Time `json:"remind_at"`
	IsDone   *bool      `json:"is_done"`
}
