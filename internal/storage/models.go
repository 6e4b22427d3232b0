package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FileRecord is the registry's fingerprint of one ingested file.
type FileRecord struct {
	FileID      string
	Path        string
	Ext         string
	Hash        string
	ModifiedAt  int64 // unix nanoseconds
	ChunkCount  int
	ProcessedAt time.Time
}

// QuestionType distinguishes closed-form from free-text questions.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	OpenEnded      QuestionType = "open_ended"
)

type Quiz struct {
	ID            string    `json:"quiz_id"`
	CreatedAt     time.Time `json:"created_at"`
	Topic         string    `json:"topic"`
	QuestionCount int       `json:"question_count"`
}

// Question is immutable once its quiz is created. Options is nil for
// open-ended questions and has exactly four entries otherwise.
type Question struct {
	ID       string       `json:"id"`
	QuizID   string       `json:"quiz_id"`
	Position int          `json:"position"`
	Text     string       `json:"question"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options"`
	Answer   string       `json:"-"`
	Topic    string       `json:"topic"`
}

type Result struct {
	ID         int64
	QuizID     string
	QuestionID string
	UserID     string
	UserAnswer string
	Correct    bool
	Score      float64
	CreatedAt  time.Time
}

type Summary struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// QuizHistory is one row of a user's recent quiz activity.
type QuizHistory struct {
	QuizID    string    `json:"quiz_id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
	Answered  int       `json:"answered"`
	AvgScore  float64   `json:"avg_score"`
}

type User struct {
	ID        string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TopicStat struct {
	UserID   string `json:"user_id"`
	Topic    string `json:"topic"`
	Attempts int    `json:"attempts"`
	Correct  int    `json:"correct"`
}
