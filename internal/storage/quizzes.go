package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTopic is used for quizzes and questions without a topic.
const DefaultTopic = "General"

// CreateQuiz persists a new quiz and all of its questions in one transaction.
// Questions keep the order they are given in; their ID, QuizID and Position
// fields are assigned here. An empty question list yields an empty quiz.
func (s *Store) CreateQuiz(ctx context.Context, questions []Question) (Quiz, error) {
	quiz := Quiz{
		ID:            uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
		Topic:         DominantTopic(questions),
		QuestionCount: len(questions),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Quiz{}, fmt.Errorf("beginning quiz transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO quizzes (quiz_id, created_at, topic) VALUES (?, ?, ?)",
		quiz.ID, formatTime(quiz.CreatedAt), quiz.Topic,
	); err != nil {
		return Quiz{}, fmt.Errorf("inserting quiz: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (id, quiz_id, position, question, type, options, answer, topic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Quiz{}, fmt.Errorf("preparing question insert: %w", err)
	}
	defer stmt.Close()

	for i, q := range questions {
		var options sql.NullString
		if q.Options != nil {
			b, err := json.Marshal(q.Options)
			if err != nil {
				return Quiz{}, fmt.Errorf("encoding options for question %d: %w", i, err)
			}
			options = sql.NullString{String: string(b), Valid: true}
		}
		topic := strings.TrimSpace(q.Topic)
		if topic == "" {
			topic = DefaultTopic
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), quiz.ID, i, q.Text, string(q.Type), options, q.Answer, topic,
		); err != nil {
			return Quiz{}, fmt.Errorf("inserting question %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Quiz{}, fmt.Errorf("committing quiz: %w", err)
	}
	return quiz, nil
}

// DominantTopic returns the most frequent non-empty topic. Ties go to the
// topic seen first; no topics at all yields DefaultTopic.
func DominantTopic(questions []Question) string {
	counts := make(map[string]int)
	best, bestCount := DefaultTopic, 0
	for _, q := range questions {
		t := strings.TrimSpace(q.Topic)
		if t == "" {
			continue
		}
		counts[t]++
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	return best
}

// GetQuiz returns quiz metadata or ErrNotFound.
func (s *Store) GetQuiz(ctx context.Context, quizID string) (Quiz, error) {
	var q Quiz
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT q.quiz_id, q.created_at, q.topic,
			(SELECT COUNT(*) FROM questions WHERE quiz_id = q.quiz_id)
		FROM quizzes q WHERE q.quiz_id = ?`, quizID,
	).Scan(&q.ID, &createdAt, &q.Topic, &q.QuestionCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrNotFound
	}
	if err != nil {
		return Quiz{}, fmt.Errorf("getting quiz %s: %w", quizID, err)
	}
	if q.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

// ListQuizzes returns the most recently created quizzes first.
func (s *Store) ListQuizzes(ctx context.Context, limit int) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.quiz_id, q.created_at, q.topic,
			(SELECT COUNT(*) FROM questions WHERE quiz_id = q.quiz_id)
		FROM quizzes q ORDER BY q.created_at DESC, q.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []Quiz
	for rows.Next() {
		var q Quiz
		var createdAt string
		if err := rows.Scan(&q.ID, &createdAt, &q.Topic, &q.QuestionCount); err != nil {
			return nil, err
		}
		if q.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

const questionColumns = "id, quiz_id, position, question, type, options, answer, topic"

func scanQuestion(row interface{ Scan(...any) error }) (Question, error) {
	var q Question
	var typ string
	var options sql.NullString
	if err := row.Scan(&q.ID, &q.QuizID, &q.Position, &q.Text, &typ, &options, &q.Answer, &q.Topic); err != nil {
		return Question{}, err
	}
	q.Type = QuestionType(typ)
	if options.Valid {
		if err := json.Unmarshal([]byte(options.String), &q.Options); err != nil {
			return Question{}, fmt.Errorf("decoding options for question %s: %w", q.ID, err)
		}
	}
	return q, nil
}

// GetQuestion returns the question at the zero-based offset within the quiz.
// It returns (nil, nil) past the last question, which signals completion,
// and ErrNotFound when the quiz itself does not exist.
func (s *Store) GetQuestion(ctx context.Context, quizID string, offset int) (*Question, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+questionColumns+" FROM questions WHERE quiz_id = ? ORDER BY position LIMIT 1 OFFSET ?",
		quizID, offset)
	q, err := scanQuestion(row)
	if err == nil {
		return &q, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting question %d of quiz %s: %w", offset, quizID, err)
	}
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return nil, nil
}

// GetQuestionByID returns one question of a quiz or ErrNotFound.
func (s *Store) GetQuestionByID(ctx context.Context, quizID, questionID string) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+questionColumns+" FROM questions WHERE quiz_id = ? AND id = ?",
		quizID, questionID)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	if err != nil {
		return Question{}, fmt.Errorf("getting question %s: %w", questionID, err)
	}
	return q, nil
}

// SaveResult appends one answer submission and returns its row id.
func (s *Store) SaveResult(ctx context.Context, r Result) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO results (quiz_id, question_id, user_id, user_answer, correct, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.QuizID, r.QuestionID, r.UserID, r.UserAnswer, r.Correct, r.Score, formatTime(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("saving result: %w", err)
	}
	return res.LastInsertId()
}

// GetSummary counts every result recorded for the quiz.
func (s *Store) GetSummary(ctx context.Context, quizID string) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM results WHERE quiz_id = ?", quizID,
	).Scan(&sum.Total, &sum.Correct)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing quiz %s: %w", quizID, err)
	}
	return sum, nil
}

// GetLastQuizzes returns the user's most recent quizzes with their average
// result score, most recent first.
func (s *Store) GetLastQuizzes(ctx context.Context, userID string, limit int) ([]QuizHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.quiz_id, q.topic, q.created_at, COUNT(r.id), AVG(r.score)
		FROM results r JOIN quizzes q ON q.quiz_id = r.quiz_id
		WHERE r.user_id = ?
		GROUP BY q.quiz_id
		ORDER BY q.created_at DESC, q.rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing quizzes for user %s: %w", userID, err)
	}
	defer rows.Close()

	var history []QuizHistory
	for rows.Next() {
		var h QuizHistory
		var createdAt string
		if err := rows.Scan(&h.QuizID, &h.Topic, &createdAt, &h.Answered, &h.AvgScore); err != nil {
			return nil, err
		}
		if h.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
