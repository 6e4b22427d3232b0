package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kalambet/docquiz/internal/storage"
)

var (
	ErrNotStarted = errors.New("quiz session not started")
	ErrCompleted  = errors.New("quiz session already completed")
)

// State is the lifecycle stage of a Session.
type State int

const (
	StateIdle State = iota
	StateInProgress
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SessionStore is the quiz storage a Session reads and appends to.
type SessionStore interface {
	GetQuestion(ctx context.Context, quizID string, offset int) (*storage.Question, error)
	SaveResult(ctx context.Context, r storage.Result) (int64, error)
	GetSummary(ctx context.Context, quizID string) (storage.Summary, error)
}

// Grader grades one answer.
type Grader interface {
	Evaluate(ctx context.Context, quizID, questionID, userAnswer, userID string) (Evaluation, error)
}

// Summary closes a completed session.
//
// Total and Correct are quiz-wide: they count every result stored for the
// quiz, across all users and earlier runs. Answered, AnsweredCorrect, Score
// and MaxScore cover this session's run only.
type Summary struct {
	Total           int     `json:"total"`
	Correct         int     `json:"correct"`
	Answered        int     `json:"answered"`
	AnsweredCorrect int     `json:"answered_correct"`
	Score           float64 `json:"score"`
	MaxScore        float64 `json:"max_score"`
}

// AnswerResult is returned for each submitted answer. Next is nil and
// Summary is set once the last question has been answered.
type AnswerResult struct {
	Correct  bool              `json:"correct"`
	Feedback string            `json:"feedback"`
	Score    float64           `json:"score"`
	Next     *storage.Question `json:"next"`
	Summary  *Summary          `json:"summary,omitempty"`
}

// Session walks one user through one quiz. Calls are serialized internally;
// a Session must not be shared between users.
type Session struct {
	store  SessionStore
	grader Grader
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	quizID  string
	userID  string
	offset  int
	correct int
	score   float64
}

func NewSession(store SessionStore, grader Grader) *Session {
	return &Session{store: store, grader: grader, logger: slog.Default()}
}

// Start begins (or restarts) the quiz for userID and returns the first
// question. A quiz without questions returns nil and completes the session
// immediately. An unknown quiz returns storage.ErrNotFound.
func (s *Session) Start(ctx context.Context, userID, quizID string) (*storage.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.store.GetQuestion(ctx, quizID, 0)
	if err != nil {
		return nil, err
	}
	s.quizID, s.userID = quizID, userID
	s.offset, s.correct, s.score = 0, 0, 0
	if q == nil {
		s.state = StateComplete
		return nil, nil
	}
	s.state = StateInProgress
	return q, nil
}

// Answer grades the answer to questionID, records it and advances to the
// next question. The caller must pass the id of the question last handed out.
func (s *Session) Answer(ctx context.Context, questionID, userAnswer string) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return AnswerResult{}, ErrNotStarted
	case StateComplete:
		return AnswerResult{}, ErrCompleted
	}

	ev, err := s.grader.Evaluate(ctx, s.quizID, questionID, userAnswer, s.userID)
	if err != nil {
		return AnswerResult{}, err
	}
	if _, err := s.store.SaveResult(ctx, storage.Result{
		QuizID:     s.quizID,
		QuestionID: questionID,
		UserID:     s.userID,
		UserAnswer: userAnswer,
		Correct:    ev.Correct,
		Score:      ev.Score,
	}); err != nil {
		// Topic stats already include this answer; a retry counts it twice.
		s.logger.Warn("saving quiz result failed after grading",
			"quiz_id", s.quizID, "question_id", questionID, "user_id", s.userID, "error", err)
		return AnswerResult{}, err
	}
	s.score += ev.Score
	s.offset++
	if ev.Correct {
		s.correct++
	}

	res := AnswerResult{Correct: ev.Correct, Feedback: ev.Feedback, Score: ev.Score}
	next, err := s.store.GetQuestion(ctx, s.quizID, s.offset)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("loading next question: %w", err)
	}
	if next != nil {
		res.Next = next
		return res, nil
	}

	sum, err := s.store.GetSummary(ctx, s.quizID)
	if err != nil {
		return AnswerResult{}, err
	}
	s.state = StateComplete
	res.Summary = &Summary{
		Total:           sum.Total,
		Correct:         sum.Correct,
		Answered:        s.offset,
		AnsweredCorrect: s.correct,
		Score:           s.score,
		MaxScore:        float64(s.offset),
	}
	return res, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the current zero-based offset and accumulated score.
func (s *Session) Progress() (offset int, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, s.score
}
