package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFinalizeIsIdempotent(t *testing.T) {
	sessions := newMemStore()
	results := newMemResultStore()
	fin := NewFinalizer(sessions, results, zerolog.Nop())
	quiz := twoQuestionQuiz()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := sessions.CreateIfAbsent(ctx, 3, quiz.ID, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	first, err := fin.Finalize(ctx, 3, quiz, map[string]string{"q1": "A"}, now)
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	second, err := fin.Finalize(ctx, 3, quiz, map[string]string{"q1": "A", "q2": "C"}, now.Add(time.Second))
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}

	if first != second {
		t.Errorf("result ids diverged: %s vs %s", first, second)
	}
	if results.inserts != 1 {
		t.Errorf("inserts = %d, want 1", results.inserts)
	}

	// The second call must not have re-graded with the richer answer set.
	res, _ := results.FindByStudentAndQuiz(ctx, 3, quiz.ID)
	if res.Score != 10 {
		t.Errorf("score = %d, want 10 from the first grading", res.Score)
	}
}

func TestFinalizeInsertFailureKeepsSession(t *testing.T) {
	sessions := newMemStore()
	results := newMemResultStore()
	fin := NewFinalizer(sessions, results, zerolog.Nop())
	quiz := twoQuestionQuiz()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := sessions.CreateIfAbsent(ctx, 3, quiz.ID, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := sessions.MergeAnswers(ctx, 3, quiz.ID, map[string]string{"q1": "A"}, now); err != nil {
		t.Fatal(err)
	}

	results.failInsert = true
	if _, err := fin.Finalize(ctx, 3, quiz, map[string]string{"q1": "A"}, now); err == nil {
		t.Fatal("expected finalize to fail when the result write fails")
	}

	// The session must survive so a retry can finalize with the same answers.
	rec, err := sessions.Get(ctx, 3, quiz.ID)
	if err != nil {
		t.Fatalf("session was torn down despite failed result write: %v", err)
	}
	if rec.Answers["q1"] != "A" {
		t.Errorf("answers lost: %v", rec.Answers)
	}

	// Retry succeeds once the store recovers.
	results.failInsert = false
	if _, err := fin.Finalize(ctx, 3, quiz, rec.Answers, now.Add(5*time.Second)); err != nil {
		t.Fatalf("retry finalize: %v", err)
	}
}

func TestFinalizeDeleteFailureIsNonFatal(t *testing.T) {
	sessions := newMemStore()
	results := newMemResultStore()
	fin := NewFinalizer(sessions, results, zerolog.Nop())
	quiz := twoQuestionQuiz()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := sessions.CreateIfAbsent(ctx, 3, quiz.ID, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	sessions.failDelete = true
	id, err := fin.Finalize(ctx, 3, quiz, nil, now)
	if err != nil {
		t.Fatalf("finalize failed on cleanup error: %v", err)
	}

	// The stray session is harmless: a later finalize still returns the
	// same result without re-grading.
	again, err := fin.Finalize(ctx, 3, quiz, nil, now.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if id != again {
		t.Errorf("ids diverged: %s vs %s", id, again)
	}
}

func TestMergeAnswersUnionSemantics(t *testing.T) {
	sessions := newMemStore()
	quiz := twoQuestionQuiz()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := sessions.CreateIfAbsent(ctx, 3, quiz.ID, now); err != nil {
		t.Fatal(err)
	}

	// Disjoint keys from two writers union.
	if err := sessions.MergeAnswers(ctx, 3, quiz.ID, map[string]string{"q1": "A"}, now); err != nil {
		t.Fatal(err)
	}
	if err := sessions.MergeAnswers(ctx, 3, quiz.ID, map[string]string{"q2": "B"}, now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	rec, _ := sessions.Get(ctx, 3, quiz.ID)
	if rec.Answers["q1"] != "A" || rec.Answers["q2"] != "B" {
		t.Errorf("answers = %v, want union of both writes", rec.Answers)
	}

	// Overlapping key: later write wins.
	if err := sessions.MergeAnswers(ctx, 3, quiz.ID, map[string]string{"q2": "C"}, now.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	rec, _ = sessions.Get(ctx, 3, quiz.ID)
	if rec.Answers["q2"] != "C" {
		t.Errorf("q2 = %q, want later write to win", rec.Answers["q2"])
	}
	if rec.Answers["q1"] != "A" {
		t.Errorf("q1 lost by overlapping merge: %v", rec.Answers)
	}
}
