package session

import (
	"testing"

	"github.com/efham/efham-backend/internal/model"
	"github.com/google/uuid"
)

func twoQuestionQuiz() *model.Quiz {
	return &model.Quiz{
		ID:              uuid.New(),
		Title:           "HTML speed round",
		DurationMinutes: 1,
		TotalPoints:     15,
		IsActive:        true,
		Questions: []model.Question{
			{
				ID:            "q1",
				Text:          "Which tag makes a hyperlink?",
				Type:          model.QuestionTypeMultipleChoice,
				Options:       []string{"A", "B", "C"},
				CorrectOption: "A",
				Points:        10,
			},
			{
				ID:            "q2",
				Text:          "Which tag defines a table row?",
				Type:          model.QuestionTypeMultipleChoice,
				Options:       []string{"A", "B", "C"},
				CorrectOption: "C",
				Points:        5,
			},
		},
	}
}

func TestGradeFullCorrectRun(t *testing.T) {
	quiz := twoQuestionQuiz()

	result := Grade(quiz, map[string]string{"q1": "A", "q2": "C"})

	if result.Score != 15 {
		t.Errorf("score = %d, want 15", result.Score)
	}
	if result.TotalPoints != 15 {
		t.Errorf("total_points = %d, want 15", result.TotalPoints)
	}
	if len(result.WrongQuestionIDs) != 0 {
		t.Errorf("wrong ids = %v, want empty", result.WrongQuestionIDs)
	}
	if len(result.Answers) != 2 {
		t.Fatalf("answers len = %d, want 2", len(result.Answers))
	}
	for i, a := range result.Answers {
		if !a.IsCorrect {
			t.Errorf("answer %d marked incorrect", i)
		}
	}
}

func TestGradeUnansweredIsIncorrect(t *testing.T) {
	quiz := twoQuestionQuiz()

	result := Grade(quiz, map[string]string{"q1": "A"})

	if result.Score != 10 {
		t.Errorf("score = %d, want 10", result.Score)
	}
	if len(result.WrongQuestionIDs) != 1 || result.WrongQuestionIDs[0] != "q2" {
		t.Errorf("wrong ids = %v, want [q2]", result.WrongQuestionIDs)
	}
	if result.Answers[1].IsCorrect {
		t.Error("unanswered question graded as correct")
	}
	if result.Answers[1].Selected != "" {
		t.Errorf("unanswered selected = %q, want empty", result.Answers[1].Selected)
	}
}

func TestGradeWrongSelectionScoresZero(t *testing.T) {
	quiz := twoQuestionQuiz()

	result := Grade(quiz, map[string]string{"q1": "B", "q2": "C"})

	if result.Score != 5 {
		t.Errorf("score = %d, want 5", result.Score)
	}
	if len(result.WrongQuestionIDs) != 1 || result.WrongQuestionIDs[0] != "q1" {
		t.Errorf("wrong ids = %v, want [q1]", result.WrongQuestionIDs)
	}
}

func TestGradePreservesQuestionOrder(t *testing.T) {
	quiz := twoQuestionQuiz()

	result := Grade(quiz, map[string]string{"q2": "C", "q1": "A"})

	if result.Answers[0].QuestionID != "q1" || result.Answers[1].QuestionID != "q2" {
		t.Errorf("answers out of definition order: %v", result.Answers)
	}
}

func TestGradeScoreBounds(t *testing.T) {
	quiz := twoQuestionQuiz()

	cases := []map[string]string{
		nil,
		{},
		{"q1": "A", "q2": "C"},
		{"q1": "nonsense", "q2": "also nonsense"},
		{"q1": "A", "q2": "C", "ghost": "A"}, // stray key not in the definition
	}

	for i, answers := range cases {
		result := Grade(quiz, answers)
		if result.Score < 0 || result.Score > quiz.TotalPoints {
			t.Errorf("case %d: score %d outside [0, %d]", i, result.Score, quiz.TotalPoints)
		}
	}
}
