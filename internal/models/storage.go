package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionRow is a row ready for insertion into the sessions table.
type SessionRow struct {
	ID           uuid.UUID `json:"id"`
	ExerciseID   string    `json:"exercise_id"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	RepCount     int       `json:"rep_count"`
	AverageScore float64   `json:"average_score"`
	DurationMs   int64     `json:"duration_ms"`
	Source       string    `json:"source"` // "live" or "replay"
}

// SessionRepRow is a row for the session_reps table.
type SessionRepRow struct {
	SessionID    uuid.UUID `json:"session_id"`
	RepIndex     int       `json:"rep_index"`
	Score        int       `json:"score"`
	FailingRules []string  `json:"failing_rules"`
	CompletedAt  time.Time `json:"completed_at"`
}

// FeedbackEventRow is a row for the feedback_events table.
type FeedbackEventRow struct {
	SessionID   uuid.UUID `json:"session_id"`
	ExerciseID  string    `json:"exercise_id"`
	MessageCode string    `json:"message_code"`
	Outcome     string    `json:"outcome"`
	EmittedAt   time.Time `json:"emitted_at"`
}
