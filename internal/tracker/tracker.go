// Package tracker aggregates per-user topic performance into weak-topic,
// summary and profile views.
package tracker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kalambet/docquiz/internal/storage"
)

// DefaultWeakThreshold is the accuracy percentage below which a topic is weak.
const DefaultWeakThreshold = 70

// Store is the persistence the Tracker needs. Implemented by storage.Store.
type Store interface {
	GetOrCreateUser(ctx context.Context, name string) (storage.User, error)
	GetUser(ctx context.Context, userID string) (storage.User, error)
	UpdateTopicPerformance(ctx context.Context, userID, topic string, correct bool) error
	ListTopicStats(ctx context.Context, userID string) ([]storage.TopicStat, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// TopicAccuracy is a topic's performance with accuracy in percent.
type TopicAccuracy struct {
	Topic    string  `json:"topic"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Summary aggregates every topic of a user.
type Summary struct {
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Profile is a user's identity with per-topic performance.
type Profile struct {
	UserID   string          `json:"user_id"`
	Name     string          `json:"name"`
	JoinedAt time.Time       `json:"joined_at"`
	Topics   []TopicAccuracy `json:"topics"`
}

type cachedProfile struct {
	profile Profile
	at      time.Time
}

// Tracker serves topic views with a short-lived per-user profile cache that
// is invalidated whenever the user's performance changes.
type Tracker struct {
	store Store
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cachedProfile
	// gen counts performance updates per user. A profile read that saw the
	// counter move while loading is not cached.
	gen map[string]uint64
}

// New creates a Tracker with a 30-second profile cache.
func New(store Store) *Tracker {
	return NewWithClock(store, realClock{}, 30*time.Second)
}

func NewWithClock(store Store, clock Clock, ttl time.Duration) *Tracker {
	return &Tracker{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cachedProfile),
		gen:   make(map[string]uint64),
	}
}

// GetOrCreateUser registers name, returning the existing user when the name
// is already taken.
func (t *Tracker) GetOrCreateUser(ctx context.Context, name string) (storage.User, error) {
	return t.store.GetOrCreateUser(ctx, name)
}

// UpdateTopicPerformance records one attempt at topic.
func (t *Tracker) UpdateTopicPerformance(ctx context.Context, userID, topic string, correct bool) error {
	if topic == "" {
		topic = storage.DefaultTopic
	}
	if err := t.store.UpdateTopicPerformance(ctx, userID, topic, correct); err != nil {
		return err
	}
	t.mu.Lock()
	t.gen[userID]++
	delete(t.cache, userID)
	t.mu.Unlock()
	return nil
}

// TopicAccuracies returns every attempted topic of the user, ordered by topic.
func (t *Tracker) TopicAccuracies(ctx context.Context, userID string) ([]TopicAccuracy, error) {
	stats, err := t.store.ListTopicStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading topic stats: %w", err)
	}
	out := make([]TopicAccuracy, 0, len(stats))
	for _, s := range stats {
		if s.Attempts <= 0 {
			continue
		}
		out = append(out, TopicAccuracy{
			Topic:    s.Topic,
			Attempts: s.Attempts,
			Correct:  s.Correct,
			Accuracy: accuracy(s.Correct, s.Attempts),
		})
	}
	return out, nil
}

// GetWeakTopics returns topics whose accuracy is strictly below threshold
// percent, weakest first. A threshold <= 0 selects DefaultWeakThreshold.
func (t *Tracker) GetWeakTopics(ctx context.Context, userID string, threshold float64) ([]TopicAccuracy, error) {
	if threshold <= 0 {
		threshold = DefaultWeakThreshold
	}
	all, err := t.TopicAccuracies(ctx, userID)
	if err != nil {
		return nil, err
	}
	var weak []TopicAccuracy
	for _, ta := range all {
		if ta.Accuracy < threshold {
			weak = append(weak, ta)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Accuracy < weak[j].Accuracy })
	return weak, nil
}

// SuggestTopic returns the user's weakest topic, or "" when nothing is weak.
func (t *Tracker) SuggestTopic(ctx context.Context, userID string, threshold float64) (string, error) {
	weak, err := t.GetWeakTopics(ctx, userID, threshold)
	if err != nil || len(weak) == 0 {
		return "", err
	}
	return weak[0].Topic, nil
}

// GetUserSummary totals every topic. A user without attempts gets a zero
// summary.
func (t *Tracker) GetUserSummary(ctx context.Context, userID string) (Summary, error) {
	all, err := t.TopicAccuracies(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	for _, ta := range all {
		s.Attempts += ta.Attempts
		s.Correct += ta.Correct
	}
	s.Accuracy = accuracy(s.Correct, s.Attempts)
	return s, nil
}

// GetUserProfile returns the user with per-topic performance. An unknown
// user returns storage.ErrNotFound.
func (t *Tracker) GetUserProfile(ctx context.Context, userID string) (Profile, error) {
	t.mu.RLock()
	c, ok := t.cache[userID]
	gen := t.gen[userID]
	t.mu.RUnlock()
	if ok && t.clock.Now().Before(c.at.Add(t.ttl)) {
		return copyProfile(c.profile), nil
	}

	u, err := t.store.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	topics, err := t.TopicAccuracies(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{UserID: u.ID, Name: u.Name, JoinedAt: u.CreatedAt, Topics: topics}

	t.mu.Lock()
	if t.gen[userID] == gen {
		t.cache[userID] = cachedProfile{profile: p, at: t.clock.Now()}
	}
	t.mu.Unlock()
	return copyProfile(p), nil
}

func copyProfile(p Profile) Profile {
	p.Topics = append([]TopicAccuracy(nil), p.Topics...)
	return p
}

// accuracy is correct/attempts in percent rounded to two decimals, or zero
// without attempts.
func accuracy(correct, attempts int) float64 {
	if attempts <= 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(attempts)*10000) / 100
}
