package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/efham/efham-backend/internal/config"
	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/repository"
	"github.com/efham/efham-backend/internal/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrQuizAlreadyCompleted = errors.New("quiz already completed")
	ErrSessionNotStarted    = errors.New("no session in progress")
	ErrUnknownQuestion      = errors.New("question does not belong to this quiz")
)

// QuizSessionService drives quiz attempts. Each request builds a fresh
// session.Controller over the cached store, so every HTTP call observes the
// shared durable state rather than per-process memory. The WebSocket stream
// holds one controller for the life of the connection instead.
type QuizSessionService struct {
	quizService *QuizService
	resultRepo  *repository.QuizResultRepository
	store       session.Store
	finalizer   *session.Finalizer
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewQuizSessionService creates a new QuizSessionService.
func NewQuizSessionService(
	quizService *QuizService,
	sessionRepo *repository.QuizSessionRepository,
	resultRepo *repository.QuizResultRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizSessionService {
	store := newCachedSessionStore(sessionRepo, rdb, log)
	return &QuizSessionService{
		quizService: quizService,
		resultRepo:  resultRepo,
		store:       store,
		finalizer:   session.NewFinalizer(store, resultRepo, log),
		rdb:         rdb,
		log:         log.With().Str("component", "quiz_session_service").Logger(),
	}
}

// StartOutcome is the response of the start endpoint. Either the attempt is
// live (Payload, RemainingSeconds, and AutosavedAnswers are set) or it was
// already graded (ResultID is set) and the client should show the result.
type StartOutcome struct {
	Payload          *model.QuizPayload `json:"payload,omitempty"`
	RemainingSeconds float64            `json:"remaining_seconds,omitempty"`
	AutosavedAnswers map[string]string  `json:"autosaved_answers,omitempty"`
	ResultID         *uuid.UUID         `json:"result_id,omitempty"`
}

// Start begins or resumes an attempt. First entry creates the session and
// starts the clock; reloads resume with the original deadline. A session
// found past its deadline is graded right here with the stored answers.
func (s *QuizSessionService) Start(ctx context.Context, studentID int, quizID uuid.UUID) (*StartOutcome, error) {
	quiz, err := s.quizService.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsActive {
		return nil, ErrQuizNotAvailable
	}

	ctrl := s.newController(quiz, studentID)
	outcome, err := ctrl.Initialize(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("initialize session: %w", err)
	}

	if outcome.View == nil {
		id := outcome.ResultID
		return &StartOutcome{ResultID: &id}, nil
	}

	return &StartOutcome{
		Payload:          BuildPayload(quiz),
		RemainingSeconds: outcome.View.RemainingSeconds,
		AutosavedAnswers: outcome.View.Answers,
	}, nil
}

// SaveAnswer merges one selection into the attempt. Requires a started,
// still-active session; an expired one is graded on the spot and the write
// is rejected with session.ErrSessionClosed.
func (s *QuizSessionService) SaveAnswer(ctx context.Context, studentID int, quizID uuid.UUID, questionID, selected string) error {
	quiz, err := s.quizService.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.QuestionByID(questionID) == nil {
		return ErrUnknownQuestion
	}

	// An answer can only land on an already-started attempt. Without this
	// check the controller would silently open a session for a stray write.
	if _, err := s.store.Get(ctx, studentID, quizID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			if _, resErr := s.resultRepo.FindByStudentAndQuiz(ctx, studentID, quizID); resErr == nil {
				return session.ErrSessionClosed
			}
			return ErrSessionNotStarted
		}
		return err
	}

	ctrl := s.newController(quiz, studentID)
	outcome, err := ctrl.Initialize(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	if outcome.View == nil {
		return session.ErrSessionClosed
	}

	return ctrl.RecordAnswer(ctx, questionID, selected, time.Now())
}

// Submit finalizes the attempt with all answers synced so far. Idempotent:
// a repeated submit, or one racing the expiry auto-submit, returns the same
// result id.
func (s *QuizSessionService) Submit(ctx context.Context, studentID int, quizID uuid.UUID) (uuid.UUID, error) {
	quiz, err := s.quizService.GetQuiz(ctx, quizID)
	if err != nil {
		return uuid.Nil, err
	}

	if _, err := s.store.Get(ctx, studentID, quizID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			if existing, resErr := s.resultRepo.FindByStudentAndQuiz(ctx, studentID, quizID); resErr == nil {
				return existing.ID, nil
			}
			return uuid.Nil, ErrSessionNotStarted
		}
		return uuid.Nil, err
	}

	ctrl := s.newController(quiz, studentID)
	outcome, err := ctrl.Initialize(ctx, time.Now())
	if err != nil {
		return uuid.Nil, fmt.Errorf("initialize session: %w", err)
	}
	if outcome.View == nil {
		return outcome.ResultID, nil
	}

	return ctrl.Submit(ctx, time.Now(), false)
}

// GetState returns what a reloading client needs to restore its local
// answers and countdown. Answers are the durable rows with the Redis hash
// overlaid, so a selection that reached only one of the two stores is never
// dropped; the start time is served from Redis with self-heal from the
// durable row.
func (s *QuizSessionService) GetState(ctx context.Context, studentID int, quizID uuid.UUID) (*model.QuizSessionState, error) {
	sess, err := s.store.Get(ctx, studentID, quizID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			if _, resErr := s.resultRepo.FindByStudentAndQuiz(ctx, studentID, quizID); resErr == nil {
				return nil, ErrQuizAlreadyCompleted
			}
			return nil, ErrSessionNotStarted
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	// Quiz duration.
	durationStr, err := s.rdb.Get(ctx, config.CacheKey.QuizDurationKey(quizID.String())).Result()
	var durationMinutes int
	if errors.Is(err, redis.Nil) {
		quiz, dbErr := s.quizService.GetQuiz(ctx, quizID)
		if dbErr != nil {
			return nil, dbErr
		}
		durationMinutes = quiz.DurationMinutes
	} else if err != nil {
		return nil, fmt.Errorf("get duration: %w", err)
	} else {
		durationMinutes, err = strconv.Atoi(durationStr)
		if err != nil {
			return nil, fmt.Errorf("invalid duration format in cache: %w", err)
		}
	}

	// Session start time from the cache, self-healed from the durable row
	// on a miss so the next read is fast again.
	var startTimeUnix int64
	startKey := config.CacheKey.SessionStartKey(quizID.String(), studentID)
	val, err := s.rdb.Get(ctx, startKey).Result()

	switch {
	case errors.Is(err, redis.Nil):
		startTimeUnix = sess.StartedAt.Unix()
		_ = s.rdb.Set(ctx, startKey, startTimeUnix, 0)

	case err != nil:
		return nil, fmt.Errorf("redis error getting start time: %w", err)

	default:
		startTimeUnix, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start time format in cache: %w", err)
		}
	}

	// Re-populate the answer hash if it was evicted, so later autosaves
	// merge into a warm cache again.
	answersKey := config.CacheKey.SessionAnswersKey(quizID.String(), studentID)
	if len(sess.Answers) > 0 {
		if n, exErr := s.rdb.Exists(ctx, answersKey).Result(); exErr == nil && n == 0 {
			fields := make(map[string]interface{}, len(sess.Answers))
			for k, v := range sess.Answers {
				fields[k] = v
			}
			_ = s.rdb.HSet(ctx, answersKey, fields)
		}
	}

	startTime := time.Unix(startTimeUnix, 0)
	endTime := startTime.Add(time.Duration(durationMinutes) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}

	return &model.QuizSessionState{
		QuizID:           quizID,
		StudentID:        studentID,
		AutosavedAnswers: sess.Answers,
		RemainingSeconds: remaining.Seconds(),
	}, nil
}

// GetResult retrieves a graded result, enforcing ownership.
func (s *QuizSessionService) GetResult(ctx context.Context, studentID int, resultID uuid.UUID) (*model.QuizResult, error) {
	result, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if result.StudentID != studentID {
		return nil, session.ErrNotFound
	}
	return result, nil
}

// GetRevision builds the post-submission review: every question with its
// correct answer, explanation, and what the student selected.
func (s *QuizSessionService) GetRevision(ctx context.Context, studentID int, quizID uuid.UUID) ([]model.RevisionEntry, *model.QuizResult, error) {
	result, err := s.resultRepo.FindByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil, ErrSessionNotStarted
		}
		return nil, nil, err
	}

	quiz, err := s.quizService.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}

	answered := make(map[string]model.AnsweredQuestion, len(result.Answers))
	for _, a := range result.Answers {
		answered[a.QuestionID] = a
	}

	entries := make([]model.RevisionEntry, len(quiz.Questions))
	for i, q := range quiz.Questions {
		entries[i] = model.RevisionEntry{
			Question: q,
			Answer:   answered[q.ID],
		}
	}
	return entries, result, nil
}

// ListGrades retrieves all of the student's results, newest first.
func (s *QuizSessionService) ListGrades(ctx context.Context, studentID int) ([]model.QuizResult, error) {
	results, err := s.resultRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []model.QuizResult{}
	}
	return results, nil
}

// NewAttemptController builds a controller over the shared stores for a
// long-lived consumer, like the WebSocket stream.
func (s *QuizSessionService) NewAttemptController(quiz *model.Quiz, studentID int) *session.Controller {
	return s.newController(quiz, studentID)
}

func (s *QuizSessionService) newController(quiz *model.Quiz, studentID int) *session.Controller {
	return session.NewController(quiz, studentID, s.store, s.resultRepo, s.finalizer, s.log)
}
