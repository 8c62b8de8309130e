package router

import (
	"net/http"
	"time"

	"github.com/efham/efham-backend/internal/config"
	"github.com/efham/efham-backend/internal/handler"
	"github.com/efham/efham-backend/internal/middleware"
	"github.com/efham/efham-backend/internal/response"
	"github.com/efham/efham-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Quiz    *handler.QuizHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// CORS: if AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Public catalog. Definitions change rarely, so clients may cache
	// the listing briefly.
	publicAPI := router.Group("/api/v1")
	{
		publicAPI.GET("/quizzes", middleware.CacheControl(60), handlers.Quiz.ListCatalog)
	}

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
	}

	// Student group: JWT plus the single-device session check.
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/me", handlers.Auth.GetProfile)
		studentAPI.POST("/logout", handlers.Auth.Logout)

		studentAPI.GET("/quizzes", handlers.Quiz.GetCatalogForStudent)
		studentAPI.GET("/quizzes/:quiz_id", handlers.Quiz.GetQuizPayload)

		studentAPI.POST("/quizzes/:quiz_id/start", handlers.Session.StartQuiz)
		studentAPI.GET("/quizzes/:quiz_id/state", handlers.Session.GetState)
		studentAPI.POST("/quizzes/:quiz_id/answers", handlers.Session.SaveAnswer)
		studentAPI.POST("/quizzes/:quiz_id/submit", handlers.Session.SubmitQuiz)
		studentAPI.GET("/quizzes/:quiz_id/revision", handlers.Session.GetRevision)

		studentAPI.GET("/results/:result_id", handlers.Session.GetResult)
		studentAPI.GET("/grades", handlers.Session.ListGrades)
	}

	// WebSocket group: browsers cannot send headers on upgrade, so the JWT
	// arrives as a query param.
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/quizzes/:quiz_id/stream", handlers.WS.QuizStream)
	}

	return router
}
