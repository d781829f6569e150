// Package session tracks in-flight jobs per user so concurrent submissions
// from the same user are visible and bounded.
package session

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrExists   = errors.New("session: already active")
)

// Session is one active job owned by a user.
type Session struct {
	UserID    string
	SessionID string
	JobID     string
	StartedAt time.Time
}

type key struct {
	userID    string
	sessionID string
}

// Store is an in-memory session registry, safe for concurrent use. Sessions
// exist only while their job runs; terminal jobs remove them.
type Store struct {
	mu       sync.RWMutex
	sessions map[key]Session
	clock    func() time.Time
}

// NewStore builds an empty registry. A nil clock means time.Now.
func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		sessions: make(map[key]Session),
		clock:    clock,
	}
}

// Begin registers a session for the job. A user cannot hold two sessions with
// the same session id.
func (s *Store) Begin(userID, sessionID, jobID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{userID, sessionID}
	if _, ok := s.sessions[k]; ok {
		return Session{}, ErrExists
	}
	sess := Session{
		UserID:    userID,
		SessionID: sessionID,
		JobID:     jobID,
		StartedAt: s.clock(),
	}
	s.sessions[k] = sess
	return sess, nil
}

// Get looks up an active session.
func (s *Store) Get(userID, sessionID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key{userID, sessionID}]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// End removes a session once its job reaches a terminal state.
func (s *Store) End(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{userID, sessionID}
	if _, ok := s.sessions[k]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, k)
	return nil
}

// ActiveForUser lists the user's active sessions.
func (s *Store) ActiveForUser(userID string) []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Session
	for k, sess := range s.sessions {
		if k.userID == userID {
			out = append(out, sess)
		}
	}
	return out
}

// Len reports how many sessions are active.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
