package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/efham/efham-backend/internal/config"
	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrQuizNotAvailable = errors.New("quiz is not available")
)

// QuizService handles quiz catalog reads and the Redis payload cache.
//
// The cache holds two documents per quiz: the student-facing payload
// (correct answers and explanations stripped) and the duration. Both are
// warmed together so a reader never observes a quiz with a payload but no
// duration.
type QuizService struct {
	quizRepo   *repository.QuizRepository
	resultRepo *repository.QuizResultRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo *repository.QuizRepository,
	resultRepo *repository.QuizResultRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:   quizRepo,
		resultRepo: resultRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetQuiz retrieves the full quiz definition, answer key included. Never
// hand this to a response serializer for an ungraded attempt.
func (s *QuizService) GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	return s.quizRepo.GetByID(ctx, id)
}

// ListCatalog retrieves catalog summaries of all active quizzes.
func (s *QuizService) ListCatalog(ctx context.Context) ([]model.QuizSummary, error) {
	summaries, err := s.quizRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []model.QuizSummary{}
	}
	return summaries, nil
}

// CatalogQuiz is a catalog entry overlaid with the student's completion
// status, so the client can route to the quiz or to the result.
type CatalogQuiz struct {
	model.QuizSummary
	Completed bool       `json:"completed"`
	ResultID  *uuid.UUID `json:"result_id,omitempty"`
	Score     *int       `json:"score,omitempty"`
}

// GetCatalogForStudent retrieves active quizzes with the student's
// completion status overlaid.
func (s *QuizService) GetCatalogForStudent(ctx context.Context, studentID int) ([]CatalogQuiz, error) {
	summaries, err := s.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}

	results, err := s.resultRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	resultMap := make(map[uuid.UUID]*model.QuizResult, len(results))
	for i := range results {
		resultMap[results[i].QuizID] = &results[i]
	}

	catalog := make([]CatalogQuiz, 0, len(summaries))
	for _, summary := range summaries {
		entry := CatalogQuiz{QuizSummary: summary}
		if res, ok := resultMap[summary.ID]; ok {
			entry.Completed = true
			entry.ResultID = &res.ID
			entry.Score = &res.Score
		}
		catalog = append(catalog, entry)
	}
	return catalog, nil
}

// BuildPayload strips the correct answers and explanations from a quiz
// definition, producing the document served to students mid-attempt.
func BuildPayload(quiz *model.Quiz) *model.QuizPayload {
	studentQuestions := make([]model.QuestionForStudent, len(quiz.Questions))
	for i, q := range quiz.Questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Options: q.Options,
			Points:  q.Points,
		}
	}
	return &model.QuizPayload{
		QuizID:      quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Duration:    quiz.DurationMinutes,
		TotalPoints: quiz.TotalPoints,
		Questions:   studentQuestions,
	}
}

// WarmQuizCache loads a quiz's payload and duration from PostgreSQL into
// Redis. Core cache-warming logic shared by startup prewarm and lazy
// self-heal.
func (s *QuizService) WarmQuizCache(ctx context.Context, quiz *model.Quiz) error {
	if len(quiz.Questions) == 0 {
		return errors.New("quiz has no questions")
	}

	payloadJSON, err := json.Marshal(BuildPayload(quiz))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	quizID := quiz.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.QuizPayloadKey(quizID), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.QuizDurationKey(quizID), quiz.DurationMinutes, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("quiz_id", quizID).
		Int("questions", len(quiz.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all active quizzes into Redis on application
// startup, so the first wave of students never races a cold cache.
func (s *QuizService) PrewarmAllCaches(ctx context.Context) error {
	quizzes, err := s.quizRepo.ListActiveFull(ctx)
	if err != nil {
		return fmt.Errorf("list active quizzes: %w", err)
	}

	if len(quizzes) == 0 {
		s.log.Info().Msg("No active quizzes to prewarm")
		return nil
	}

	warmed := 0
	for i := range quizzes {
		if err := s.WarmQuizCache(ctx, &quizzes[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("quiz_id", quizzes[i].ID.String()).
				Msg("Failed to warm quiz, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(quizzes)).
		Msg("Prewarming complete")
	return nil
}

// GetQuizPayload retrieves the cached student payload, falling back to
// PostgreSQL (and re-warming the cache) on a miss.
func (s *QuizService) GetQuizPayload(ctx context.Context, quizID uuid.UUID) (*model.QuizPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.QuizPayloadKey(quizID.String())).Bytes()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	// Cache miss: rebuild from the source of truth and self-heal.
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsActive {
		return nil, ErrQuizNotAvailable
	}
	if err := s.WarmQuizCache(ctx, quiz); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Self-heal cache warm failed")
	}
	return BuildPayload(quiz), nil
}
