package repository

import (
	"context"
	"errors"
	"time"

	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuizSessionRepository is the durable session.Store backed by PostgreSQL.
// The session row carries the immutable start time; answers live in their
// own table keyed per question so merges never overwrite sibling keys.
type QuizSessionRepository struct {
	pool *pgxpool.Pool
}

// NewQuizSessionRepository creates a new QuizSessionRepository.
func NewQuizSessionRepository(pool *pgxpool.Pool) *QuizSessionRepository {
	return &QuizSessionRepository{pool: pool}
}

var _ session.Store = (*QuizSessionRepository)(nil)

// Get retrieves the session and its merged answer map.
func (r *QuizSessionRepository) Get(ctx context.Context, studentID int, quizID uuid.UUID) (*model.QuizSession, error) {
	s := &model.QuizSession{Answers: make(map[string]string)}
	err := r.pool.QueryRow(ctx,
		`SELECT quiz_id, student_id, started_at, last_sync_at
		 FROM quiz_sessions
		 WHERE quiz_id = $1 AND student_id = $2`, quizID, studentID,
	).Scan(&s.QuizID, &s.StudentID, &s.StartedAt, &s.LastSyncAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_option
		 FROM quiz_session_answers
		 WHERE quiz_id = $1 AND student_id = $2`, quizID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var questionID, selected string
		if err := rows.Scan(&questionID, &selected); err != nil {
			return nil, err
		}
		s.Answers[questionID] = selected
	}
	return s, rows.Err()
}

// CreateIfAbsent inserts the session unless one exists. ON CONFLICT DO
// NOTHING guarantees an existing record's started_at is never clobbered,
// even when two devices join at the same instant.
func (r *QuizSessionRepository) CreateIfAbsent(ctx context.Context, studentID int, quizID uuid.UUID, startedAt time.Time) (*model.QuizSession, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (quiz_id, student_id, started_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (quiz_id, student_id) DO NOTHING`,
		quizID, studentID, startedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, studentID, quizID)
}

// MergeAnswers upserts the given answers one question key at a time, then
// bumps the sync marker. Keys absent from the input are untouched.
func (r *QuizSessionRepository) MergeAnswers(ctx context.Context, studentID int, quizID uuid.UUID, answers map[string]string, syncTime time.Time) error {
	if len(answers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for questionID, selected := range answers {
		batch.Queue(
			`INSERT INTO quiz_session_answers (quiz_id, student_id, question_id, selected_option)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (quiz_id, student_id, question_id) DO UPDATE
			 SET selected_option = EXCLUDED.selected_option, updated_at = NOW()`,
			quizID, studentID, questionID, selected,
		)
	}
	batch.Queue(
		`UPDATE quiz_sessions SET last_sync_at = $1
		 WHERE quiz_id = $2 AND student_id = $3`,
		syncTime, quizID, studentID,
	)

	return r.pool.SendBatch(ctx, batch).Close()
}

// Delete removes the session; answer rows cascade with it.
func (r *QuizSessionRepository) Delete(ctx context.Context, studentID int, quizID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM quiz_sessions WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID,
	)
	return err
}
