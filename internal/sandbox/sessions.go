package sandbox

import (
	"errors"
	"sync"
	"time"
)

// DeviceSession tracks one device verification flow started by the wizard.
type DeviceSession struct {
	ID         string
	TelegramID string
	Phone      string
	Verified   bool
	CreatedAt  time.Time
}

var errSessionNotFound = errors.New("unknown device session")

// SessionStore holds device sessions in memory for the lifetime of the
// sandbox process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]DeviceSession
}

// NewSessionStore builds an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]DeviceSession)}
}

// Create records a new device session.
func (s *SessionStore) Create(session DeviceSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.CreatedAt = time.Now().UTC()
	s.sessions[session.ID] = session
}

// Get fetches a session by id.
func (s *SessionStore) Get(id string) (DeviceSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return DeviceSession{}, errSessionNotFound
	}
	return session, nil
}

// MarkVerified flags the session as device-verified.
func (s *SessionStore) MarkVerified(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return errSessionNotFound
	}
	session.Verified = true
	s.sessions[id] = session
	return nil
}
