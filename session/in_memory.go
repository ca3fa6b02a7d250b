// Package session provides SessionStore implementations.
package session

import (
	"sync"

	"github.com/JasonXSong/adk-demos/core"
)

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// process local maps nested by application, user and session id. It is safe
// for concurrent access and best suited for tests or ephemeral demos. Each
// returned session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]map[string]map[string]*core.Session)}
}

// Create registers a new session for the key, seeded with initialState.
// An already existing key fails with core.ErrSessionExists.
func (s *InMemoryStore) Create(key core.SessionKey, initialState map[string]interface{}) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookupLocked(key) != nil {
		return nil, core.ErrSessionExists
	}

	sess := core.NewSession(key, initialState)

	users, ok := s.sessions[key.AppName]
	if !ok {
		users = make(map[string]map[string]*core.Session)
		s.sessions[key.AppName] = users
	}
	byID, ok := users[key.UserID]
	if !ok {
		byID = make(map[string]*core.Session)
		users[key.UserID] = byID
	}
	byID[key.SessionID] = sess

	return sess.Clone(), nil
}

// Get returns a clone of the stored session, or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(key core.SessionKey) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess := s.lookupLocked(key)
	if sess == nil {
		return nil, core.ErrSessionNotFound
	}

	return sess.Clone(), nil
}

// AppendEvent adds an event to an existing session.
func (s *InMemoryStore) AppendEvent(key core.SessionKey, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookupLocked(key)
	if sess == nil {
		return core.ErrSessionNotFound
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(key core.SessionKey, delta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookupLocked(key)
	if sess == nil {
		return core.ErrSessionNotFound
	}

	sess.ApplyStateDelta(delta)

	return nil
}

// lookupLocked resolves the key; caller must hold at least the read lock.
func (s *InMemoryStore) lookupLocked(key core.SessionKey) *core.Session {
	users, ok := s.sessions[key.AppName]
	if !ok {
		return nil
	}
	byID, ok := users[key.UserID]
	if !ok {
		return nil
	}
	return byID[key.SessionID]
}
