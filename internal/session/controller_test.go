package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fixture struct {
	sessions *memStore
	results  *memResultStore
	ctrl     *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := newMemStore()
	results := newMemResultStore()
	quiz := twoQuestionQuiz()
	fin := NewFinalizer(sessions, results, zerolog.Nop())
	return &fixture{
		sessions: sessions,
		results:  results,
		ctrl:     NewController(quiz, 7, sessions, results, fin, zerolog.Nop()),
	}
}

// fresh controller over the same stores, as a reloaded client would get.
func (f *fixture) reload() *Controller {
	quiz := twoQuestionQuiz()
	quiz.ID = f.ctrl.quiz.ID
	quiz.Questions = f.ctrl.quiz.Questions
	fin := NewFinalizer(f.sessions, f.results, zerolog.Nop())
	return NewController(quiz, 7, f.sessions, f.results, fin, zerolog.Nop())
}

func TestInitializeCreatesSession(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	out, err := f.ctrl.Initialize(context.Background(), now)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if out.View == nil {
		t.Fatal("expected an active view, got redirect")
	}
	if got := out.View.RemainingSeconds; got != 60 {
		t.Errorf("remaining = %v, want 60", got)
	}
	if f.ctrl.State() != StateActive {
		t.Errorf("state = %s, want ACTIVE", f.ctrl.State())
	}

	rec, err := f.sessions.Get(context.Background(), 7, f.ctrl.quiz.ID)
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if !rec.StartedAt.Equal(now) {
		t.Errorf("started_at = %v, want %v", rec.StartedAt, now)
	}
}

func TestInitializeResumesWithRemainingTime(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if _, err := f.ctrl.Initialize(ctx, t0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := f.ctrl.RecordAnswer(ctx, "q1", "A", t0.Add(5*time.Second)); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	// Reload 20s in: remaining = 60 - 20, answers restored.
	resumed := f.reload()
	out, err := resumed.Initialize(ctx, t0.Add(20*time.Second))
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if out.View == nil {
		t.Fatal("expected resumed view")
	}
	if out.View.RemainingSeconds != 40 {
		t.Errorf("remaining = %v, want 40", out.View.RemainingSeconds)
	}
	if out.View.Answers["q1"] != "A" {
		t.Errorf("resumed answers = %v, want q1=A", out.View.Answers)
	}

	// Start time must not have been clobbered by the resume.
	rec, _ := f.sessions.Get(ctx, 7, resumed.quiz.ID)
	if !rec.StartedAt.Equal(t0) {
		t.Errorf("started_at moved to %v", rec.StartedAt)
	}
}

func TestInitializeExpiredSessionGradesPartialAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Session started 90s ago on a 1-minute quiz, q1 answered, q2 never.
	if _, err := f.sessions.CreateIfAbsent(ctx, 7, f.ctrl.quiz.ID, now.Add(-90*time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.MergeAnswers(ctx, 7, f.ctrl.quiz.ID, map[string]string{"q1": "A"}, now.Add(-80*time.Second)); err != nil {
		t.Fatal(err)
	}

	out, err := f.ctrl.Initialize(ctx, now)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if out.View != nil || out.ResultID == uuid.Nil {
		t.Fatal("expected immediate graded redirect")
	}

	result, err := f.results.FindByStudentAndQuiz(ctx, 7, f.ctrl.quiz.ID)
	if err != nil {
		t.Fatalf("result not written: %v", err)
	}
	if result.Score != 10 {
		t.Errorf("score = %d, want 10", result.Score)
	}
	if len(result.WrongQuestionIDs) != 1 || result.WrongQuestionIDs[0] != "q2" {
		t.Errorf("wrong ids = %v, want [q2]", result.WrongQuestionIDs)
	}
	if f.sessions.deletes != 1 {
		t.Errorf("session deletes = %d, want 1", f.sessions.deletes)
	}
}

func TestInitializeRedirectsWhenAlreadyCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := f.ctrl.Initialize(ctx, now); err != nil {
		t.Fatal(err)
	}
	resultID, err := f.ctrl.Submit(ctx, now.Add(30*time.Second), false)
	if err != nil {
		t.Fatal(err)
	}

	// Replay attempt: no new session, no second result, same id.
	replay := f.reload()
	out, err := replay.Initialize(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("replay Initialize: %v", err)
	}
	if out.ResultID != resultID {
		t.Errorf("redirect id = %s, want %s", out.ResultID, resultID)
	}
	if _, err := f.sessions.Get(ctx, 7, replay.quiz.ID); err == nil {
		t.Error("replay recreated a session record")
	}
	if f.results.inserts != 1 {
		t.Errorf("result inserts = %d, want 1", f.results.inserts)
	}
}

func TestTickCountsDownAndAutoSubmitsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := f.ctrl.Initialize(ctx, t0); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.RecordAnswer(ctx, "q1", "A", t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	remaining, err := f.ctrl.Tick(ctx, t0.Add(30*time.Second))
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if remaining != 30*time.Second {
		t.Errorf("remaining = %v, want 30s", remaining)
	}
	if f.ctrl.State() != StateActive {
		t.Errorf("state = %s, want ACTIVE", f.ctrl.State())
	}

	remaining, err = f.ctrl.Tick(ctx, t0.Add(61*time.Second))
	if err != nil {
		t.Fatalf("expiry tick: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %v, want 0", remaining)
	}
	if f.ctrl.State() != StateGraded {
		t.Errorf("state = %s, want GRADED", f.ctrl.State())
	}
	if f.results.inserts != 1 {
		t.Errorf("result inserts = %d, want 1", f.results.inserts)
	}

	// A racing second tick is a no-op.
	if _, err := f.ctrl.Tick(ctx, t0.Add(62*time.Second)); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if f.results.inserts != 1 {
		t.Errorf("second tick re-graded: inserts = %d", f.results.inserts)
	}
}

func TestRecordAnswerAfterGradingIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := f.ctrl.Initialize(ctx, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ctrl.Submit(ctx, t0.Add(10*time.Second), false); err != nil {
		t.Fatal(err)
	}

	if err := f.ctrl.RecordAnswer(ctx, "q2", "C", t0.Add(11*time.Second)); err != ErrSessionClosed {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func TestRecordAnswerSurvivesSyncFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := f.ctrl.Initialize(ctx, t0); err != nil {
		t.Fatal(err)
	}

	f.sessions.failMerge = true
	if err := f.ctrl.RecordAnswer(ctx, "q1", "A", t0.Add(time.Second)); err != nil {
		t.Fatalf("sync failure surfaced to caller: %v", err)
	}
	f.sessions.failMerge = false

	// Local state stayed authoritative: submitting grades the answer even
	// though it never reached the store.
	if _, err := f.ctrl.Submit(ctx, t0.Add(20*time.Second), false); err != nil {
		t.Fatal(err)
	}
	result, _ := f.results.FindByStudentAndQuiz(ctx, 7, f.ctrl.quiz.ID)
	if result.Score != 10 {
		t.Errorf("score = %d, want 10", result.Score)
	}
}

func TestManualSubmitThenTickDoesNotDoubleGrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := f.ctrl.Initialize(ctx, t0); err != nil {
		t.Fatal(err)
	}
	first, err := f.ctrl.Submit(ctx, t0.Add(10*time.Second), false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.ctrl.Submit(ctx, t0.Add(11*time.Second), true)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("submit ids diverged: %s vs %s", first, second)
	}
	if f.results.inserts != 1 {
		t.Errorf("inserts = %d, want 1", f.results.inserts)
	}
}
