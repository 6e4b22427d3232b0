package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/kalambet/docquiz/internal/storage"
)

// DefaultPassThreshold is the open-ended grade (0-100) counted as correct.
const DefaultPassThreshold = 60

const invalidGradeFeedback = "Could not evaluate the answer: the grader returned an invalid response."

// QuestionLookup loads a question of a quiz.
type QuestionLookup interface {
	GetQuestionByID(ctx context.Context, quizID, questionID string) (storage.Question, error)
}

// TopicRecorder records one graded attempt for a user's topic.
type TopicRecorder interface {
	UpdateTopicPerformance(ctx context.Context, userID, topic string, correct bool) error
}

// Evaluation is the grade of one answer. Score is normalized to [0,1];
// RawScore is 0/1 for multiple choice and 0-100 for open-ended answers.
type Evaluation struct {
	Correct  bool    `json:"correct"`
	Feedback string  `json:"feedback"`
	Score    float64 `json:"score"`
	RawScore int     `json:"raw_score"`
}

type Evaluator struct {
	questions QuestionLookup
	tracker   TopicRecorder
	chat      Chatter
	model     string
	language  string
	threshold int
	logger    *slog.Logger
}

// NewEvaluator creates an Evaluator. A threshold <= 0 selects
// DefaultPassThreshold; an empty language selects DefaultLanguage.
func NewEvaluator(questions QuestionLookup, tracker TopicRecorder, chat Chatter, model, language string, threshold int) *Evaluator {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	if language == "" {
		language = DefaultLanguage
	}
	return &Evaluator{
		questions: questions,
		tracker:   tracker,
		chat:      chat,
		model:     model,
		language:  language,
		threshold: threshold,
		logger:    slog.Default(),
	}
}

// Evaluate grades userAnswer against the question and records the attempt
// for the user's topic. A missing question returns storage.ErrNotFound.
// Grader failures never return an error; they yield a zero score with
// explanatory feedback.
func (e *Evaluator) Evaluate(ctx context.Context, quizID, questionID, userAnswer, userID string) (Evaluation, error) {
	q, err := e.questions.GetQuestionByID(ctx, quizID, questionID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("loading question %s: %w", questionID, err)
	}

	var ev Evaluation
	if q.Type == storage.MultipleChoice {
		ev = gradeChoice(q, userAnswer)
	} else {
		ev = e.gradeOpen(ctx, q, userAnswer)
	}

	if err := e.tracker.UpdateTopicPerformance(ctx, userID, q.Topic, ev.Correct); err != nil {
		return Evaluation{}, fmt.Errorf("recording topic performance: %w", err)
	}
	return ev, nil
}

func gradeChoice(q storage.Question, answer string) Evaluation {
	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer)) {
		return Evaluation{Correct: true, Feedback: "Correct!", Score: 1, RawScore: 1}
	}
	return Evaluation{Feedback: "Wrong. Correct answer: " + q.Answer}
}

func (e *Evaluator) gradeOpen(ctx context.Context, q storage.Question, answer string) Evaluation {
	raw, err := e.chat.Chat(ctx, e.model, gradingMessages(q.Text, q.Answer, answer, e.language), gradingSchema())
	if err != nil {
		e.logger.Warn("grading request failed", "question_id", q.ID, "error", err)
		return Evaluation{Feedback: fmt.Sprintf("Evaluation error: %v", err)}
	}

	score, feedback, ok := parseGrade(raw)
	if !ok {
		e.logger.Warn("invalid grading reply", "question_id", q.ID, "response", raw)
		return Evaluation{Feedback: invalidGradeFeedback}
	}
	if feedback == "" {
		feedback = "No feedback."
	}
	return Evaluation{
		Correct:  score >= e.threshold,
		Feedback: feedback,
		Score:    float64(score) / 100,
		RawScore: score,
	}
}

// parseGrade reads {"score": n, "feedback": s}. The score may be a number
// or a numeric string and is clamped to 0-100.
func parseGrade(raw string) (int, string, bool) {
	var g struct {
		Score    json.RawMessage `json:"score"`
		Feedback string          `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &g); err != nil || len(g.Score) == 0 {
		return 0, "", false
	}

	var f float64
	if err := json.Unmarshal(g.Score, &f); err != nil {
		var s string
		if err := json.Unmarshal(g.Score, &s); err != nil {
			return 0, "", false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, "", false
		}
	}
	score := int(math.Round(math.Max(0, math.Min(100, f))))
	return score, strings.TrimSpace(g.Feedback), true
}
