package session

import (
	"github.com/efham/efham-backend/internal/model"
)

// Grade deterministically scores an answer set against a quiz definition.
// Pure function: no I/O, no clock — StudentID and SubmittedAt are filled by
// the caller.
//
// Questions are graded in definition order. A question with no entry in the
// answer map is unanswered: never correct, contributes 0 points, and its id
// is listed in WrongQuestionIDs. TotalPoints is copied from the definition
// rather than recomputed so it stays correct for partial answer sets.
func Grade(quiz *model.Quiz, answers map[string]string) *model.QuizResult {
	result := &model.QuizResult{
		QuizID:           quiz.ID,
		TotalPoints:      quiz.TotalPoints,
		Answers:          make([]model.AnsweredQuestion, 0, len(quiz.Questions)),
		WrongQuestionIDs: []string{},
	}

	for _, q := range quiz.Questions {
		selected, answered := answers[q.ID]
		isCorrect := answered && selected == q.CorrectOption
		if isCorrect {
			result.Score += q.Points
		} else {
			result.WrongQuestionIDs = append(result.WrongQuestionIDs, q.ID)
		}
		result.Answers = append(result.Answers, model.AnsweredQuestion{
			QuestionID: q.ID,
			Selected:   selected,
			IsCorrect:  isCorrect,
			Points:     q.Points,
		})
	}

	return result
}
