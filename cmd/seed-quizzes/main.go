package main

import (
	"context"
	"fmt"
	"time"

	"github.com/efham/efham-backend/internal/config"
	"github.com/efham/efham-backend/internal/database"
	"github.com/efham/efham-backend/internal/logger"
	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	quizRepo := repository.NewQuizRepository(pool)

	fmt.Println("=== Seeding Quizzes ===")

	deleted, err := quizRepo.DeleteAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to clear existing quizzes")
	}
	fmt.Printf("Deleted %d existing quizzes\n", deleted)

	titles := []string{
		"اختبار السرعة HTML", "تحدي CSS", "منطق الـ Algorithms",
		"اختبار الـ ES6", "تحدي الـ Array Methods", "اختبار الـ Async/Await",
		"تحدي الـ React Hooks", "اختبار الـ Routing", "منطق الـ CRUD", "الاختبار الشامل",
	}

	successCount := 0
	for _, title := range titles {
		quiz := &model.Quiz{
			Title:           title,
			Description:     fmt.Sprintf("اختبار سريع لقياس مستواك في %s. ركز جيداً قبل البدء.", title),
			DurationMinutes: 15,
			TotalPoints:     30,
			IsActive:        true,
			Questions: []model.Question{
				{
					ID:            "q1",
					Text:          "سؤال ذكاء سريع؟",
					Type:          model.QuestionTypeMultipleChoice,
					Options:       []string{"إجابة 1", "إجابة 2", "إجابة 3"},
					CorrectOption: "إجابة 1",
					Points:        15,
					Explanation:   "توضيح سريع للإجابة.",
				},
				{
					ID:            "q2",
					Text:          "سؤال منطقي؟",
					Type:          model.QuestionTypeTrueFalse,
					Options:       []string{"صح", "خطأ"},
					CorrectOption: "صح",
					Points:        15,
					Explanation:   "توضيح منطقي للإجابة.",
				},
			},
		}

		if err := quizRepo.Create(ctx, quiz); err != nil {
			fmt.Printf("Error creating quiz %q: %v\n", quiz.Title, err)
			continue
		}
		successCount++
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d quizzes.\n", successCount, len(titles))
}
