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

// State is the lifecycle state of one attempt.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateActive        State = "ACTIVE"
	StateExpired       State = "EXPIRED"
	StateGraded        State = "GRADED"
)

// SessionView is what a client needs to render an active attempt: the
// definition, the countdown seed, and previously synced answers.
type SessionView struct {
	Quiz             *model.Quiz
	RemainingSeconds float64
	Answers          map[string]string
}

// InitOutcome is the result of Initialize. Exactly one field is set: View
// for an active (possibly resumed) session, or ResultID when the attempt is
// already graded and the caller should redirect to the result.
type InitOutcome struct {
	View     *SessionView
	ResultID uuid.UUID
}

// Controller drives the lifecycle of one quiz attempt for one student.
//
// It is an explicit state machine: every transition receives `now` from the
// caller, so there is no hidden clock and tests can travel in time. The
// scheduling of Tick is the caller's problem — any timer loop, HTTP poll,
// or WebSocket ticker works.
//
// Correctness under concurrent tabs comes from the stores, not from locks:
// StartedAt is immutable, answer merges are per-key last-write-wins, and
// finalization is idempotent.
type Controller struct {
	studentID int
	quiz      *model.Quiz
	sessions  Store
	results   ResultStore
	finalizer *Finalizer
	log       zerolog.Logger

	state     State
	startedAt time.Time
	answers   map[string]string
	resultID  uuid.UUID
}

// NewController creates a Controller in the Uninitialized state.
func NewController(quiz *model.Quiz, studentID int, sessions Store, results ResultStore, finalizer *Finalizer, log zerolog.Logger) *Controller {
	return &Controller{
		studentID: studentID,
		quiz:      quiz,
		sessions:  sessions,
		results:   results,
		finalizer: finalizer,
		log: log.With().
			Str("component", "session_controller").
			Int("student_id", studentID).
			Str("quiz_id", quiz.ID.String()).
			Logger(),
		state:   StateUninitialized,
		answers: make(map[string]string),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// ResultID returns the graded result id; zero until the Graded state.
func (c *Controller) ResultID() uuid.UUID { return c.resultID }

// Answers returns the controller's current local answer set.
func (c *Controller) Answers() map[string]string { return c.answers }

// Initialize starts or resumes the attempt at the given instant.
//
// A completed attempt may never be restarted: if a result already exists
// the outcome carries its id and no session is created. Otherwise a session
// is created (first entry) or resumed; a resumed session whose deadline has
// already passed is graded immediately with whatever answers were durably
// stored, and the outcome redirects to the fresh result.
func (c *Controller) Initialize(ctx context.Context, now time.Time) (*InitOutcome, error) {
	if c.state != StateUninitialized {
		return nil, fmt.Errorf("initialize called in state %s", c.state)
	}

	existing, err := c.results.FindByStudentAndQuiz(ctx, c.studentID, c.quiz.ID)
	if err == nil {
		c.state = StateGraded
		c.resultID = existing.ID
		return &InitOutcome{ResultID: existing.ID}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing result: %w", err)
	}

	record, err := c.sessions.Get(ctx, c.studentID, c.quiz.ID)
	if errors.Is(err, ErrNotFound) {
		record, err = c.sessions.CreateIfAbsent(ctx, c.studentID, c.quiz.ID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	c.startedAt = record.StartedAt
	for qid, selected := range record.Answers {
		c.answers[qid] = selected
	}

	if record.Expired(c.quiz.Duration(), now) {
		c.log.Info().Time("started_at", c.startedAt).Msg("Session already past deadline, grading stored answers")
		c.state = StateExpired
		if err := c.finalize(ctx, now); err != nil {
			return nil, err
		}
		return &InitOutcome{ResultID: c.resultID}, nil
	}

	c.state = StateActive
	return &InitOutcome{
		View: &SessionView{
			Quiz:             c.quiz,
			RemainingSeconds: record.Remaining(c.quiz.Duration(), now).Seconds(),
			Answers:          c.answers,
		},
	}, nil
}

// RecordAnswer merges one selection into the local answer set and
// writes it through to the store.
//
// The write-through is fire-and-forget durability: a failed sync is logged
// and retried at the next natural sync point (next answer or expiry flush);
// local state stays authoritative for the rest of the session, so the
// student is never blocked mid-assessment by a transient store error.
func (c *Controller) RecordAnswer(ctx context.Context, questionID, selected string, now time.Time) error {
	if c.state != StateActive {
		return ErrSessionClosed
	}

	c.answers[questionID] = selected

	if err := c.sessions.MergeAnswers(ctx, c.studentID, c.quiz.ID, map[string]string{questionID: selected}, now); err != nil {
		c.log.Warn().Err(err).Str("question_id", questionID).Msg("Answer sync failed, keeping local state")
	}
	return nil
}

// Tick recomputes the countdown at the given instant and returns the
// remaining time. Reaching zero is a first-class transition: the session
// moves to Expired and is auto-submitted with the current answers. The
// auto-submit is idempotent — a racing tick or manual submit finds the
// existing result and becomes a no-op.
func (c *Controller) Tick(ctx context.Context, now time.Time) (time.Duration, error) {
	switch c.state {
	case StateGraded:
		return 0, nil
	case StateActive, StateExpired:
	default:
		return 0, fmt.Errorf("tick called in state %s", c.state)
	}

	remaining := c.quiz.Duration() - now.Sub(c.startedAt)
	if remaining > 0 && c.state == StateActive {
		return remaining, nil
	}

	c.state = StateExpired
	if err := c.finalize(ctx, now); err != nil {
		return 0, err
	}
	return 0, nil
}

// Submit finalizes the attempt with the current answer set, regardless of
// completeness — unanswered questions grade as incorrect, never as an
// error. Completeness warnings are caller-side policy. If the attempt is
// already graded this is a no-op returning the existing result id.
func (c *Controller) Submit(ctx context.Context, now time.Time, auto bool) (uuid.UUID, error) {
	if c.state == StateGraded {
		return c.resultID, nil
	}
	if c.state == StateUninitialized {
		return uuid.Nil, fmt.Errorf("submit called in state %s", c.state)
	}

	c.log.Debug().Bool("auto", auto).Int("answered", len(c.answers)).Msg("Submitting attempt")
	if err := c.finalize(ctx, now); err != nil {
		return uuid.Nil, err
	}
	return c.resultID, nil
}

// finalize runs the idempotent grading step and transitions to Graded on
// success. On failure the state is left as-is so the caller can retry —
// the session record survives and no answers are lost.
func (c *Controller) finalize(ctx context.Context, now time.Time) error {
	id, err := c.finalizer.Finalize(ctx, c.studentID, c.quiz, c.answers, now)
	if err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	c.state = StateGraded
	c.resultID = id
	return nil
}
