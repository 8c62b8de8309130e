package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efham/efham-backend/internal/config"
	"github.com/efham/efham-backend/internal/database"
	"github.com/efham/efham-backend/internal/handler"
	"github.com/efham/efham-backend/internal/logger"
	"github.com/efham/efham-backend/internal/repository"
	"github.com/efham/efham-backend/internal/router"
	"github.com/efham/efham-backend/internal/service"
	"github.com/efham/efham-backend/internal/validator"
	"github.com/efham/efham-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Efham Backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories
	studentRepo := repository.NewStudentRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	sessionRepo := repository.NewQuizSessionRepository(pool)
	resultRepo := repository.NewQuizResultRepository(pool)

	// Services
	authService := service.NewAuthService(cfg, rdb)
	quizService := service.NewQuizService(quizRepo, resultRepo, rdb, log)
	sessionService := service.NewQuizSessionService(quizService, sessionRepo, resultRepo, rdb, log)

	// Handlers
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, studentRepo),
		Quiz:    handler.NewQuizHandler(quizService),
		Session: handler.NewSessionHandler(sessionService),
		WS:      handler.NewWSHandler(quizService, sessionService, log, cfg.AllowedOrigins),
	}

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(pool, rdb, log)
	teardownWorker := worker.NewTeardownWorker(pool, rdb, log)

	go autosaveWorker.Start(workerCtx)
	go teardownWorker.Start(workerCtx)

	// Load all active quizzes into Redis BEFORE accepting traffic, so the
	// first wave of students never races a cold cache.
	if err := quizService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
