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

// QuizResultRepository is the append-only session.ResultStore backed by
// PostgreSQL. The UNIQUE (quiz_id, student_id) constraint is what makes
// finalization idempotent across processes.
type QuizResultRepository struct {
	pool *pgxpool.Pool
}

// NewQuizResultRepository creates a new QuizResultRepository.
func NewQuizResultRepository(pool *pgxpool.Pool) *QuizResultRepository {
	return &QuizResultRepository{pool: pool}
}

var _ session.ResultStore = (*QuizResultRepository)(nil)

// FindByStudentAndQuiz retrieves the result for one attempt, if graded.
func (r *QuizResultRepository) FindByStudentAndQuiz(ctx context.Context, studentID int, quizID uuid.UUID) (*model.QuizResult, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, student_id, score, total_points, answers, wrong_question_ids, submitted_at
		 FROM quiz_results
		 WHERE quiz_id = $1 AND student_id = $2`, quizID, studentID,
	))
}

// GetByID retrieves a result by its id.
func (r *QuizResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuizResult, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, quiz_id, student_id, score, total_points, answers, wrong_question_ids, submitted_at
		 FROM quiz_results
		 WHERE id = $1`, id,
	))
}

// Insert persists a result exactly once per (quiz, student). When a
// concurrent finalizer won the race, the existing row's id is returned in
// result.ID and nothing is written — both callers converge on one result.
func (r *QuizResultRepository) Insert(ctx context.Context, result *model.QuizResult) error {
	answersJSON, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	wrongJSON, err := json.Marshal(result.WrongQuestionIDs)
	if err != nil {
		return fmt.Errorf("marshal wrong question ids: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO quiz_results (quiz_id, student_id, score, total_points, answers, wrong_question_ids, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (quiz_id, student_id) DO NOTHING
		 RETURNING id`,
		result.QuizID, result.StudentID, result.Score, result.TotalPoints, answersJSON, wrongJSON, result.SubmittedAt,
	).Scan(&result.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// Conflict: a parallel submit already wrote the result.
	existing, err := r.FindByStudentAndQuiz(ctx, result.StudentID, result.QuizID)
	if err != nil {
		return fmt.Errorf("concurrent insert detected, but fetch failed: %w", err)
	}
	result.ID = existing.ID
	return nil
}

// ListByStudent retrieves all of a student's results, newest first.
func (r *QuizResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.QuizResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, student_id, score, total_points, answers, wrong_question_ids, submitted_at
		 FROM quiz_results
		 WHERE student_id = $1
		 ORDER BY submitted_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.QuizResult
	for rows.Next() {
		res, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

func (r *QuizResultRepository) scanOne(row pgx.Row) (*model.QuizResult, error) {
	res, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *QuizResultRepository) scanRow(row pgx.Row) (*model.QuizResult, error) {
	res := &model.QuizResult{}
	var answersJSON, wrongJSON []byte
	if err := row.Scan(&res.ID, &res.QuizID, &res.StudentID, &res.Score, &res.TotalPoints, &answersJSON, &wrongJSON, &res.SubmittedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answersJSON, &res.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(wrongJSON, &res.WrongQuestionIDs); err != nil {
		return nil, fmt.Errorf("unmarshal wrong question ids: %w", err)
	}
	return res, nil
}
