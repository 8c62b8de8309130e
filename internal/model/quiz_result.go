package model

import (
	"time"

	"github.com/google/uuid"
)

// AnsweredQuestion is one graded entry of a result, in quiz question order.
// Selected is empty when the question was never answered.
type AnsweredQuestion struct {
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected"`
	IsCorrect  bool   `json:"is_correct"`
	Points     int    `json:"points"`
}

// QuizResult is the immutable graded outcome of one quiz attempt. Its
// existence for a (student, quiz) pair is the canonical "already completed"
// marker; the row is written exactly once and never updated.
type QuizResult struct {
	ID               uuid.UUID          `json:"id"`
	QuizID           uuid.UUID          `json:"quiz_id"`
	StudentID        int                `json:"student_id"`
	Score            int                `json:"score"`
	TotalPoints      int                `json:"total_points"`
	Answers          []AnsweredQuestion `json:"answers"`
	WrongQuestionIDs []string           `json:"wrong_question_ids"`
	SubmittedAt      time.Time          `json:"submitted_at"`
}

// RevisionEntry pairs a graded answer with the question definition so the
// review page can show the correct option and explanation.
type RevisionEntry struct {
	Question Question         `json:"question"`
	Answer   AnsweredQuestion `json:"answer"`
}
