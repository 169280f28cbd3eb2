package service

import (
	"sync"
	"time"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
)

// SessionStore is the process-local registry of interactive flows, keyed by
// user ID. It is an explicit dependency handed to the coordinator and the
// scheduler's sweep pass; nothing reaches it through package state. At most
// one session plus one advisory busy marker exist per user.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	busy     map[string]bool
	ttl      time.Duration
}

// NewSessionStore builds an empty registry with the given session TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
		busy:     make(map[string]bool),
		ttl:      ttl,
	}
}

// Get returns the user's open session. A session past its TTL is discarded
// lazily here; the second return value tells the caller to surface the
// expiry before processing the message further.
func (s *SessionStore) Get(userID string, now time.Time) (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	if session.Expired(now, s.ttl) {
		delete(s.sessions, userID)
		delete(s.busy, userID)
		return nil, true
	}
	return session, false
}

// TryBegin reserves the user's flow slot. It fails when a session or busy
// marker is already present, returning a description of the open flow so
// the caller can surface the conflict instead of silently dropping input.
func (s *SessionStore) TryBegin(userID string, now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[userID]; ok {
		if !session.Expired(now, s.ttl) {
			return session.Describe(), false
		}
		// The expired flow releases its busy marker too, or the user
		// could never start another one.
		delete(s.sessions, userID)
		delete(s.busy, userID)
	}
	if s.busy[userID] {
		return "a command in progress", false
	}
	s.busy[userID] = true
	return "", true
}

// Put installs the session created by a begun flow. The busy marker stays
// up until End releases both.
func (s *SessionStore) Put(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
}

// End releases the user's session and busy marker, on completion or cancel.
func (s *SessionStore) End(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	delete(s.busy, userID)
}

// Sweep drops every expired session and returns the affected user IDs so
// the sweeper can notify them.
func (s *SessionStore) Sweep(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]string, 0)
	for userID, session := range s.sessions {
		if session.Expired(now, s.ttl) {
			delete(s.sessions, userID)
			delete(s.busy, userID)
			expired = append(expired, userID)
		}
	}
	return expired
}

// Open reports the number of live sessions, for the metrics gauge.
func (s *SessionStore) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
