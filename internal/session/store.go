package session

import (
	"context"
	"errors"
	"time"

	"github.com/efham/efham-backend/internal/model"
	"github.com/google/uuid"
)

// Domain errors surfaced by stores and the controller.
var (
	// ErrNotFound is returned by stores when no record exists for the key.
	ErrNotFound = errors.New("record not found")
	// ErrSessionClosed is returned when an answer arrives after the session
	// expired or was graded.
	ErrSessionClosed = errors.New("session is expired or already graded")
)

// Store is durable keyed storage for in-progress session state. All writes
// are merge-style: StartedAt is set once, answers merge per question key and
// never shrink, so concurrent writers (a stale tab and a fresh one)
// converge instead of corrupting state.
type Store interface {
	// Get returns the session for (studentID, quizID), including its merged
	// answer map, or ErrNotFound.
	Get(ctx context.Context, studentID int, quizID uuid.UUID) (*model.QuizSession, error)

	// CreateIfAbsent creates the session with the given start time unless
	// one already exists, in which case the existing record is returned
	// untouched — StartedAt is never clobbered.
	CreateIfAbsent(ctx context.Context, studentID int, quizID uuid.UUID, startedAt time.Time) (*model.QuizSession, error)

	// MergeAnswers upserts the given answers into the session's answer map
	// as a shallow key-wise union. Existing keys not present in answers are
	// kept; overlapping keys are last-write-wins.
	MergeAnswers(ctx context.Context, studentID int, quizID uuid.UUID, answers map[string]string, syncTime time.Time) error

	// Delete removes the session. Called exactly once, after the result for
	// the same key is durably written.
	Delete(ctx context.Context, studentID int, quizID uuid.UUID) error
}

// ResultStore is append-only storage for graded results. A result row for
// (studentID, quizID) is written at most once and never mutated.
type ResultStore interface {
	// FindByStudentAndQuiz returns the existing result or ErrNotFound.
	FindByStudentAndQuiz(ctx context.Context, studentID int, quizID uuid.UUID) (*model.QuizResult, error)

	// Insert persists the result and fills result.ID. When a concurrent
	// writer already inserted a result for the same (student, quiz) pair,
	// implementations must set result.ID to the existing row's id instead
	// of failing, so racing finalizers converge on one result.
	Insert(ctx context.Context, result *model.QuizResult) error
}
