package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/efham/efham-backend/internal/model"
	"github.com/google/uuid"
)

// memStore is an in-memory Store with the same merge semantics as the
// PostgreSQL implementation.
type memStore struct {
	records    map[string]*model.QuizSession
	failMerge  bool
	failDelete bool
	deletes    int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.QuizSession)}
}

func sessionKey(studentID int, quizID uuid.UUID) string {
	return fmt.Sprintf("%d/%s", studentID, quizID)
}

func (s *memStore) Get(_ context.Context, studentID int, quizID uuid.UUID) (*model.QuizSession, error) {
	rec, ok := s.records[sessionKey(studentID, quizID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	cp.Answers = make(map[string]string, len(rec.Answers))
	for k, v := range rec.Answers {
		cp.Answers[k] = v
	}
	return &cp, nil
}

func (s *memStore) CreateIfAbsent(ctx context.Context, studentID int, quizID uuid.UUID, startedAt time.Time) (*model.QuizSession, error) {
	key := sessionKey(studentID, quizID)
	if _, ok := s.records[key]; !ok {
		s.records[key] = &model.QuizSession{
			QuizID:    quizID,
			StudentID: studentID,
			StartedAt: startedAt,
			Answers:   make(map[string]string),
		}
	}
	return s.Get(ctx, studentID, quizID)
}

func (s *memStore) MergeAnswers(_ context.Context, studentID int, quizID uuid.UUID, answers map[string]string, syncTime time.Time) error {
	if s.failMerge {
		return errors.New("merge unavailable")
	}
	rec, ok := s.records[sessionKey(studentID, quizID)]
	if !ok {
		return ErrNotFound
	}
	for k, v := range answers {
		rec.Answers[k] = v
	}
	rec.LastSyncAt = &syncTime
	return nil
}

func (s *memStore) Delete(_ context.Context, studentID int, quizID uuid.UUID) error {
	if s.failDelete {
		return errors.New("delete unavailable")
	}
	delete(s.records, sessionKey(studentID, quizID))
	s.deletes++
	return nil
}

// memResultStore is an in-memory append-only ResultStore.
type memResultStore struct {
	results    map[string]*model.QuizResult
	failInsert bool
	inserts    int
}

func newMemResultStore() *memResultStore {
	return &memResultStore{results: make(map[string]*model.QuizResult)}
}

func (s *memResultStore) FindByStudentAndQuiz(_ context.Context, studentID int, quizID uuid.UUID) (*model.QuizResult, error) {
	res, ok := s.results[sessionKey(studentID, quizID)]
	if !ok {
		return nil, ErrNotFound
	}
	return res, nil
}

func (s *memResultStore) Insert(_ context.Context, result *model.QuizResult) error {
	if s.failInsert {
		return errors.New("insert unavailable")
	}
	key := sessionKey(result.StudentID, result.QuizID)
	if existing, ok := s.results[key]; ok {
		result.ID = existing.ID
		return nil
	}
	result.ID = uuid.New()
	cp := *result
	s.results[key] = &cp
	s.inserts++
	return nil
}
