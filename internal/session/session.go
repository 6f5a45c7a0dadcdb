// Package session provides the in-memory booking session store.
//
// The store offers atomic get/create/delete; callers that read-modify-write a
// session must hold that user's lock from the KeyedLock for the whole
// transition so concurrent deliveries cannot interleave.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kiara-bot/kiara/internal/models"
)

// Store is an in-memory map from user identifier to booking session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	slog.Debug("Creating session store")
	return &Store{sessions: make(map[string]models.Session)}
}

// Get returns a copy of the user's session, if one exists. Mutations must be
// written back with Put.
func (s *Store) Get(userID string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Exists reports whether the user has an active session.
func (s *Store) Exists(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[userID]
	return ok
}

// Create starts a fresh session for the user, overwriting any existing one.
func (s *Store) Create(userID string, steps []models.StepDefinition, orderSourceID string) models.Session {
	sess := models.Session{
		UserID:        userID,
		StepIndex:     0,
		Steps:         steps,
		Answers:       make(map[string]string),
		OrderSourceID: orderSourceID,
		StartedAt:     time.Now(),
	}
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
	slog.Debug("Session created", "userID", userID, "steps", len(steps))
	return sess
}

// Put writes back a mutated session.
func (s *Store) Put(sess models.Session) {
	s.mu.Lock()
	s.sessions[sess.UserID] = sess
	s.mu.Unlock()
}

// Delete removes the user's session.
func (s *Store) Delete(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	slog.Debug("Session deleted", "userID", userID)
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ExpiredUserIDs returns the ids of sessions older than ttl. The sweep loop
// scans here, then deletes per user under that user's keyed lock.
func (s *Store) ExpiredUserIDs(now time.Time, ttl time.Duration) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for userID, sess := range s.sessions {
		if sess.Expired(now, ttl) {
			ids = append(ids, userID)
		}
	}
	return ids
}

// DeleteIfExpired removes the user's session when it is still expired and
// reports whether it did. Callers hold the user's keyed lock, so a session
// recreated after the expiry scan survives.
func (s *Store) DeleteIfExpired(userID string, now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || !sess.Expired(now, ttl) {
		return false
	}
	delete(s.sessions, userID)
	slog.Info("Swept stale session", "userID", userID, "startedAt", sess.StartedAt)
	return true
}
