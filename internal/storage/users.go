package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateUser registers name on first use and returns the same user on
// every later call. Names are unique.
func (s *Store) GetOrCreateUser(ctx context.Context, name string) (User, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO users (user_id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING",
		uuid.New().String(), name, formatTime(time.Now()),
	); err != nil {
		return User{}, fmt.Errorf("registering user %q: %w", name, err)
	}
	return s.getUser(ctx, "name", name)
}

// GetUser returns the user with the given id or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, userID string) (User, error) {
	return s.getUser(ctx, "user_id", userID)
}

func (s *Store) getUser(ctx context.Context, column, value string) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, name, created_at FROM users WHERE "+column+" = ?", value,
	).Scan(&u.ID, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("getting user: %w", err)
	}
	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateTopicPerformance records one attempt for (userID, topic), creating
// the row on first occurrence. The increment is a single statement so
// concurrent submissions never lose updates.
func (s *Store) UpdateTopicPerformance(ctx context.Context, userID, topic string, correct bool) error {
	inc := 0
	if correct {
		inc = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_topic_stats (user_id, topic, attempts, correct) VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, topic) DO UPDATE SET
			attempts = attempts + 1,
			correct = correct + excluded.correct`,
		userID, topic, inc,
	)
	if err != nil {
		return fmt.Errorf("updating topic %q for user %s: %w", topic, userID, err)
	}
	return nil
}

// ListTopicStats returns every topic row for the user ordered by topic.
func (s *Store) ListTopicStats(ctx context.Context, userID string) ([]TopicStat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, topic, attempts, correct FROM user_topic_stats WHERE user_id = ? ORDER BY topic",
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing topic stats for user %s: %w", userID, err)
	}
	defer rows.Close()

	var stats []TopicStat
	for rows.Next() {
		var st TopicStat
		if err := rows.Scan(&st.UserID, &st.Topic, &st.Attempts, &st.Correct); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
