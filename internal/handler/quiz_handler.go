package handler

import (
	"errors"
	"net/http"

	"github.com/efham/efham-backend/internal/middleware"
	"github.com/efham/efham-backend/internal/response"
	"github.com/efham/efham-backend/internal/service"
	"github.com/efham/efham-backend/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QuizHandler handles catalog and quiz definition reads.
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// ListCatalog godoc
// GET /api/v1/quizzes
// Returns catalog summaries of all active quizzes. Public.
func (h *QuizHandler) ListCatalog(c *gin.Context) {
	catalog, err := h.quizService.ListCatalog(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": catalog})
}

// GetCatalogForStudent godoc
// GET /api/v1/student/quizzes
// Returns the catalog with the student's completion status overlaid.
func (h *QuizHandler) GetCatalogForStudent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	catalog, err := h.quizService.GetCatalogForStudent(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": catalog})
}

// GetQuizPayload godoc
// GET /api/v1/student/quizzes/:quiz_id
// Returns the student-facing quiz document (no correct answers) from the
// cache.
func (h *QuizHandler) GetQuizPayload(c *gin.Context) {
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

	payload, err := h.quizService.GetQuizPayload(c.Request.Context(), quizID)
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

	response.Success(c, http.StatusOK, payload)
}
