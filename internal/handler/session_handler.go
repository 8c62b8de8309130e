package handler

import (
	"errors"
	"net/http"

	"github.com/efham/efham-backend/internal/middleware"
	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/response"
	"github.com/efham/efham-backend/internal/service"
	"github.com/efham/efham-backend/internal/session"
	"github.com/efham/efham-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles the quiz attempt lifecycle over HTTP: start,
// state reads for reloads, answer autosave, submit, and result views.
type SessionHandler struct {
	sessionService *service.QuizSessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.QuizSessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// StartQuiz godoc
// POST /api/v1/student/quizzes/:quiz_id/start
// Begins or resumes the attempt (idempotent). A completed attempt returns
// the result id instead of a session.
func (h *SessionHandler) StartQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	outcome, err := h.sessionService.Start(c.Request.Context(), claims.StudentID, quizID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrQuizNotAvailable):
			response.Fail(c, http.StatusForbidden, response.ErrQuizNotAvailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// GetState godoc
// GET /api/v1/student/quizzes/:quiz_id/state
// Returns autosaved answers and the server-computed remaining time, so a
// reloading client restores exactly where it left off.
func (h *SessionHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), claims.StudentID, quizID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotStarted):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotStarted)
		case errors.Is(err, service.ErrQuizAlreadyCompleted):
			response.Fail(c, http.StatusConflict, response.ErrQuizAlreadyCompleted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// POST /api/v1/student/quizzes/:quiz_id/answers
// Autosaves one selection. Rejected after the deadline or after grading.
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err = h.sessionService.SaveAnswer(c.Request.Context(), claims.StudentID, quizID, req.QuestionID, req.Selected)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrUnknownQuestion):
			response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
		case errors.Is(err, service.ErrSessionNotStarted):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotStarted)
		case errors.Is(err, session.ErrSessionClosed):
			response.Fail(c, http.StatusConflict, response.ErrSessionExpired)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// SubmitQuiz godoc
// POST /api/v1/student/quizzes/:quiz_id/submit
// Grades the attempt with everything synced so far. Idempotent.
func (h *SessionHandler) SubmitQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	resultID, err := h.sessionService.Submit(c.Request.Context(), claims.StudentID, quizID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrSessionNotStarted):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotStarted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result_id": resultID})
}

// GetResult godoc
// GET /api/v1/student/results/:result_id
// Returns one graded result owned by the student.
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessionService.GetResult(c.Request.Context(), claims.StudentID, resultID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetRevision godoc
// GET /api/v1/student/quizzes/:quiz_id/revision
// Returns the post-submission review: questions with correct answers,
// explanations, and the student's selections. Only after grading.
func (h *SessionHandler) GetRevision(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	entries, result, err := h.sessionService.GetRevision(c.Request.Context(), claims.StudentID, quizID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotStarted):
			response.Fail(c, http.StatusForbidden, response.ErrQuizNotCompleted)
		case errors.Is(err, session.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"result":   result,
		"revision": entries,
	})
}

// ListGrades godoc
// GET /api/v1/student/grades
// Returns all of the student's results, newest first.
func (h *SessionHandler) ListGrades(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	grades, err := h.sessionService.ListGrades(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"grades": grades})
}
