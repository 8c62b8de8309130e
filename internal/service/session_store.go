package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/efham/efham-backend/internal/config"
	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/repository"
	"github.com/efham/efham-backend/internal/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// cachedSessionStore is the session.Store used in production. PostgreSQL is
// the source of truth for session existence and start time; Redis fronts the
// answer map for fast autosave and state reads.
//
// Answer writes go to the Redis hash synchronously and to PostgreSQL
// asynchronously via the persist queue, drained by the autosave worker.
// Reads overlay the Redis hash on the durable rows, so the freshest
// selection wins even before the worker catches up.
type cachedSessionStore struct {
	pg  *repository.QuizSessionRepository
	rdb *redis.Client
	log zerolog.Logger
}

func newCachedSessionStore(pg *repository.QuizSessionRepository, rdb *redis.Client, log zerolog.Logger) *cachedSessionStore {
	return &cachedSessionStore{
		pg:  pg,
		rdb: rdb,
		log: log.With().Str("component", "session_store").Logger(),
	}
}

var _ session.Store = (*cachedSessionStore)(nil)

func (s *cachedSessionStore) Get(ctx context.Context, studentID int, quizID uuid.UUID) (*model.QuizSession, error) {
	sess, err := s.pg.Get(ctx, studentID, quizID)
	if err != nil {
		return nil, err
	}

	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(quizID.String(), studentID)).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("Answer cache read failed, serving durable rows only")
		return sess, nil
	}
	for questionID, selected := range cached {
		sess.Answers[questionID] = selected
	}
	return sess, nil
}

func (s *cachedSessionStore) CreateIfAbsent(ctx context.Context, studentID int, quizID uuid.UUID, startedAt time.Time) (*model.QuizSession, error) {
	sess, err := s.pg.CreateIfAbsent(ctx, studentID, quizID, startedAt)
	if err != nil {
		return nil, err
	}

	// Cache the authoritative start time so state reads skip PostgreSQL.
	startKey := config.CacheKey.SessionStartKey(quizID.String(), studentID)
	if err := s.rdb.Set(ctx, startKey, sess.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache start time")
	}
	return sess, nil
}

func (s *cachedSessionStore) MergeAnswers(ctx context.Context, studentID int, quizID uuid.UUID, answers map[string]string, syncTime time.Time) error {
	answersKey := config.CacheKey.SessionAnswersKey(quizID.String(), studentID)

	pipe := s.rdb.Pipeline()
	for questionID, selected := range answers {
		pipe.HSet(ctx, answersKey, questionID, selected)

		payload, _ := json.Marshal(map[string]interface{}{
			"student_id":  studentID,
			"quiz_id":     quizID.String(),
			"question_id": questionID,
			"selected":    selected,
			"synced_at":   syncTime.UTC(),
		})
		pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		// Redis is down: write straight through to PostgreSQL so the
		// answer is not lost.
		s.log.Warn().Err(err).Msg("Answer cache write failed, falling back to direct persist")
		return s.pg.MergeAnswers(ctx, studentID, quizID, answers, syncTime)
	}
	return nil
}

func (s *cachedSessionStore) Delete(ctx context.Context, studentID int, quizID uuid.UUID) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"student_id": studentID,
		"quiz_id":    quizID.String(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.SessionTeardownQueue, payload).Err(); err != nil {
		// Queue unavailable: tear down synchronously.
		s.log.Warn().Err(err).Msg("Teardown enqueue failed, deleting directly")
		return s.pg.Delete(ctx, studentID, quizID)
	}
	return nil
}
