package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "mcq"
	QuestionTypeTrueFalse      QuestionType = "true_false"
)

// Question is a single quiz question as stored inside the quiz document.
// CorrectOption is always one of Options; Explanation is shown only in the
// post-submission revision view.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectOption string       `json:"correct"`
	Points        int          `json:"points"`
	Explanation   string       `json:"explanation,omitempty"`
}

// Quiz represents a timed assessment definition. Questions are embedded as
// an ordered JSONB array and are read-only to the session core; the sum of
// question points equals TotalPoints.
type Quiz struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalPoints     int        `json:"total_points"`
	IsActive        bool       `json:"is_active"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration returns the allowed time for one attempt.
func (q *Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// QuestionByID returns the question with the given id, or nil.
func (q *Quiz) QuestionByID(id string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}

// QuestionForStudent is a question without the correct answer or the
// explanation, sent to students while a session is live.
type QuestionForStudent struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options"`
	Points  int          `json:"points"`
}

// QuizPayload is the Redis-cached document served to students taking the
// quiz (no correct answers, no explanations).
type QuizPayload struct {
	QuizID      uuid.UUID            `json:"quiz_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Duration    int                  `json:"duration_minutes"`
	TotalPoints int                  `json:"total_points"`
	Questions   []QuestionForStudent `json:"questions"`
}

// QuizSummary is a catalog entry for the quiz listing page.
type QuizSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalPoints     int       `json:"total_points"`
	QuestionCount   int       `json:"question_count"`
	CreatedAt       time.Time `json:"created_at"`
}
