package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuizRepository handles quiz definition data access. The session core only
// ever reads from this store; writes exist for seeding and content tooling.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetByID retrieves a quiz with its embedded question list.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	var questionsJSON []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, duration_minutes, total_points, is_active, questions, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Description, &q.DurationMinutes, &q.TotalPoints, &q.IsActive, &questionsJSON, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(questionsJSON, &q.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return q, nil
}

// ListActive retrieves catalog summaries for all active quizzes, newest first.
func (r *QuizRepository) ListActive(ctx context.Context) ([]model.QuizSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, duration_minutes, total_points, jsonb_array_length(questions), created_at
		 FROM quizzes
		 WHERE is_active
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.QuizSummary
	for rows.Next() {
		var s model.QuizSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.DurationMinutes, &s.TotalPoints, &s.QuestionCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListActiveFull retrieves all active quizzes with their questions.
// Used by cache prewarming on startup.
func (r *QuizRepository) ListActiveFull(ctx context.Context) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, duration_minutes, total_points, is_active, questions, created_at, updated_at
		 FROM quizzes
		 WHERE is_active
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		var q model.Quiz
		var questionsJSON []byte
		if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.DurationMinutes, &q.TotalPoints, &q.IsActive, &questionsJSON, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(questionsJSON, &q.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// Create inserts a quiz definition. Used by the seeder and content tooling.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	questionsJSON, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (title, description, duration_minutes, total_points, is_active, questions)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		q.Title, q.Description, q.DurationMinutes, q.TotalPoints, q.IsActive, questionsJSON,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// DeleteAll removes every quiz. Seeder only.
func (r *QuizRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
