package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/efham/efham-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Finalizer performs the one-time conversion of an answer set into a
// durable QuizResult and tears down the session afterwards.
type Finalizer struct {
	sessions Store
	results  ResultStore
	log      zerolog.Logger
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(sessions Store, results ResultStore, log zerolog.Logger) *Finalizer {
	return &Finalizer{
		sessions: sessions,
		results:  results,
		log:      log.With().Str("component", "finalizer").Logger(),
	}
}

// Finalize grades and persists the result for one attempt, exactly once.
//
// If a result already exists for (studentID, quiz.ID) its id is returned
// without re-grading — this resolves the race between a tick-driven timeout
// and a concurrent manual submit, and makes retries after a failed write
// safe. The result insert is the durability point: if it fails, the session
// is left intact so a retry can finalize again with the same answers.
// Session deletion afterwards is cleanup only; its failure is logged and
// swallowed because the existing-result check already blocks re-entry.
func (f *Finalizer) Finalize(ctx context.Context, studentID int, quiz *model.Quiz, answers map[string]string, now time.Time) (uuid.UUID, error) {
	existing, err := f.results.FindByStudentAndQuiz(ctx, studentID, quiz.ID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return uuid.Nil, fmt.Errorf("check existing result: %w", err)
	}

	result := Grade(quiz, answers)
	result.StudentID = studentID
	result.SubmittedAt = now

	if err := f.results.Insert(ctx, result); err != nil {
		return uuid.Nil, fmt.Errorf("persist result: %w", err)
	}

	if err := f.sessions.Delete(ctx, studentID, quiz.ID); err != nil {
		f.log.Warn().Err(err).
			Int("student_id", studentID).
			Str("quiz_id", quiz.ID.String()).
			Msg("Session cleanup failed after grading")
	}

	f.log.Info().
		Int("student_id", studentID).
		Str("quiz_id", quiz.ID.String()).
		Str("result_id", result.ID.String()).
		Int("score", result.Score).
		Int("total_points", result.TotalPoints).
		Msg("Attempt graded")

	return result.ID, nil
}
