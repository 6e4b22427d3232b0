package api

import (
	"sync"

	"github.com/kalambet/docquiz/internal/quiz"
)

type sessionKey struct {
	userID string
	quizID string
}

// Sessions holds one quiz.Session per (user, quiz) pair. Each session
// serializes its own answers; the registry only guards the map.
type Sessions struct {
	store  quiz.SessionStore
	grader quiz.Grader

	mu       sync.Mutex
	sessions map[sessionKey]*quiz.Session
}

func NewSessions(store quiz.SessionStore, grader quiz.Grader) *Sessions {
	return &Sessions{store: store, grader: grader, sessions: make(map[sessionKey]*quiz.Session)}
}

// Open returns a fresh session for the pair, replacing any previous one.
func (s *Sessions) Open(userID, quizID string) *quiz.Session {
	sess := quiz.NewSession(s.store, s.grader)
	s.mu.Lock()
	s.sessions[sessionKey{userID, quizID}] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for the pair, or nil if none was opened.
func (s *Sessions) Get(userID, quizID string) *quiz.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionKey{userID, quizID}]
}

// Close drops the session for the pair.
func (s *Sessions) Close(userID, quizID string) {
	s.mu.Lock()
	delete(s.sessions, sessionKey{userID, quizID})
	s.mu.Unlock()
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
