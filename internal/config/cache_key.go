package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SessionStartKey returns the cache key for a student's quiz session start time
func (r *CacheKeyStruct) SessionStartKey(quizID string, studentID int) string {
	return fmt.Sprintf("student:%d:quiz:%s:session_start", studentID, quizID)
}

// SessionAnswersKey returns the cache key for a student's autosaved answers
func (r *CacheKeyStruct) SessionAnswersKey(quizID string, studentID int) string {
	return fmt.Sprintf("student:%d:quiz:%s:answers", studentID, quizID)
}

// QuizPayloadKey returns the cache key for a quiz's student-facing payload
func (r *CacheKeyStruct) QuizPayloadKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:payload", quizID)
}

// QuizDurationKey returns the cache key for a quiz's duration
func (r *CacheKeyStruct) QuizDurationKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:duration", quizID)
}

var CacheKey = NewCacheKeyStruct()
