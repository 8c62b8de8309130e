package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/efham/efham-backend/internal/config"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TeardownBatchSize    = 50
	TeardownBatchTimeout = 2 * time.Second
	TeardownPollTimeout  = 1 * time.Second
)

// TeardownWorker consumes the teardown queue and removes graded sessions in
// batches: the PostgreSQL session rows (answers cascade) and the Redis
// start-time and answer-hash keys. Results are written before teardown is
// enqueued, so losing a teardown item only leaves a harmless stale session.
type TeardownWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewTeardownWorker creates a new TeardownWorker.
func NewTeardownWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *TeardownWorker {
	return &TeardownWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "teardown_worker").Logger(),
	}
}

type teardownPayload struct {
	StudentID int    `json:"student_id"`
	QuizID    string `json:"quiz_id"`
}

// Start begins the worker loop with batching. Call in a goroutine.
func (w *TeardownWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*teardownPayload, 0, TeardownBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= TeardownBatchSize || time.Since(lastFlush) >= TeardownBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, TeardownPollTimeout, config.WorkerKey.SessionTeardownQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p teardownPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *TeardownWorker) flushSafe(ctx context.Context, batch []*teardownPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkDeleteSessions(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk session delete failed, using fallback")

		for _, p := range batch {
			if err := w.deleteSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("Single delete failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.SessionTeardownQueue, raw)
			}
		}
		return
	}

	// Sessions are gone from PostgreSQL; clear the Redis leftovers.
	w.bulkClearSessionKeys(ctx, batch)
}

// bulkDeleteSessions removes a whole batch with one UNNEST join. Answer rows
// cascade with their session.
func (w *TeardownWorker) bulkDeleteSessions(ctx context.Context, batch []*teardownPayload) error {
	n := len(batch)

	quizIDs := make([]uuid.UUID, 0, n)
	students := make([]int, 0, n)

	for _, p := range batch {
		qID, err := uuid.Parse(p.QuizID)
		if err != nil {
			return err
		}
		quizIDs = append(quizIDs, qID)
		students = append(students, p.StudentID)
	}

	query := `
		DELETE FROM quiz_sessions AS s
		USING (
			SELECT u.quiz_id, u.student_id
			FROM UNNEST(
				$1::uuid[],
				$2::int[]
			) AS u (quiz_id, student_id)
		) AS t
		WHERE s.quiz_id = t.quiz_id
		  AND s.student_id = t.student_id
	`

	_, err := w.pool.Exec(ctx, query, quizIDs, students)
	return err
}

func (w *TeardownWorker) bulkClearSessionKeys(ctx context.Context, batch []*teardownPayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		pipe.Del(ctx, config.CacheKey.SessionAnswersKey(p.QuizID, p.StudentID))
		pipe.Del(ctx, config.CacheKey.SessionStartKey(p.QuizID, p.StudentID))
	}

	_, _ = pipe.Exec(ctx)
}

func (w *TeardownWorker) deleteSingle(ctx context.Context, p *teardownPayload) error {
	qID, err := uuid.Parse(p.QuizID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`DELETE FROM quiz_sessions WHERE quiz_id = $1 AND student_id = $2`,
		qID, p.StudentID,
	)
	if err != nil {
		return err
	}

	w.rdb.Del(ctx,
		config.CacheKey.SessionAnswersKey(p.QuizID, p.StudentID),
		config.CacheKey.SessionStartKey(p.QuizID, p.StudentID),
	)
	return nil
}
