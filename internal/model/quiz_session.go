package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizSession is a student's in-progress quiz attempt. There is at most one
// per (student, quiz) pair — the pair is the primary key. StartedAt is set
// once at creation and never mutated, so elapsed-time computation stays
// monotonic no matter which device reads it.
type QuizSession struct {
	QuizID     uuid.UUID         `json:"quiz_id"`
	StudentID  int               `json:"student_id"`
	StartedAt  time.Time         `json:"started_at"`
	LastSyncAt *time.Time        `json:"last_sync_at,omitempty"`
	Answers    map[string]string `json:"answers"`
}

// Remaining returns how much attempt time is left at the given instant.
// Never negative.
func (s *QuizSession) Remaining(duration time.Duration, now time.Time) time.Duration {
	remaining := duration - now.Sub(s.StartedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the session deadline has passed at the given instant.
func (s *QuizSession) Expired(duration time.Duration, now time.Time) bool {
	return s.Remaining(duration, now) <= 0
}

// SaveAnswerRequest is the payload for the answer autosave endpoint.
type SaveAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,min=1,max=64"`
	Selected   string `json:"selected" binding:"required,max=500"`
}

// QuizSessionState is returned to a reloading client so it can restore its
// local answers and countdown.
type QuizSessionState struct {
	QuizID           uuid.UUID         `json:"quiz_id"`
	StudentID        int               `json:"student_id"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingSeconds float64           `json:"remaining_seconds"`
}
