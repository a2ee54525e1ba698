package models

import (
	"time"

	"github.com/google/uuid"
)

type Goal struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Title         string    `json:"title"`
	Period        string    `json:"period"` // "daily" | "weekly"
	TargetMinutes int       `json:"target_minutes"`
	Category      *string   `json:"category"` // nil means any study activity counts
	IsArchived    bool      `json:"is_archived"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreateGoalRequest struct {
	Title         string  `json:"title"`
	Period        string  `json:"period"`
	TargetMinutes int     `json:"target_minutes"`
	Category      *string `json:"category"`
}

type UpdateGoalRequest struct {
	Title         *string `json:"title"`
	TargetMinutes *int    `json:"target_minutes"`
	IsArchived    *bool   `json:"is_archived"`
}

// GoalProgress pairs a goal with the studied minutes accumulated inside
// its current period window.
type GoalProgress struct {
	Goal           Goal    `json:"goal"`
	MinutesStudied int     `json:"minutes_studied"`
	Percent        float64 `json:"percent"`
	Achieved       bool    `json:"achieved"`
}
