package core

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionExists is returned by SessionStore.Create when the (app, user,
// session) triple is already present.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionNotFound is returned by SessionStore operations addressing a
// triple that was never created.
var ErrSessionNotFound = errors.New("session not found")

// SessionKey addresses a session by the (application, user, session) triple.
// All three components participate in identity: the same session id under a
// different user or app names a different session.
type SessionKey struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Session represents a conversational container tracking mutable key/value
// state plus an ordered event history. It is safe for concurrent access.
//
// Contract:
//   - State mutations update Updated timestamp
//   - GetEvents returns a defensive copy to avoid external mutation
//   - GetConversationHistory filters events to user/assistant/tool roles
//   - Clone copies the state map and event slice per key/element; nested
//     reference values inside state are shared with the original.
type Session struct {
	Key     SessionKey             `json:"key"`
	State   map[string]interface{} `json:"state"`
	Events  []Event                `json:"events"`
	Created time.Time              `json:"created"`
	Updated time.Time              `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates a new session for the given key, seeded with a copy of
// initialState (may be nil).
func NewSession(key SessionKey, initialState map[string]interface{}) *Session {
	now := time.Now()
	state := make(map[string]interface{}, len(initialState))
	for k, v := range initialState {
		state[k] = v
	}
	return &Session{Key: key, State: state, Events: []Event{}, Created: now, Updated: now}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair in session state updating the Updated timestamp.
func (s *Session) SetState(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.State[k] = v
	}
	s.Updated = time.Now()
}

// AddEvent appends an event to the history updating Updated timestamp.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a defensive copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// GetConversationHistory returns filtered events suitable for providing
// conversational context to models (excludes control-only events and
// non-conversational roles).
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := map[string]bool{"user": true, "assistant": true, "tool": true}
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || !allowed[ev.Content.Role] {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a copy of the session whose state map and event slice can be
// mutated independently of the original. The copy is per key and per element:
// nested reference values (maps, slices) stored inside state are shared.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		Key:     s.Key,
		State:   make(map[string]interface{}, len(s.State)),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Events, s.Events)
	return clone
}

// SessionStore persists sessions and their evolving state / event history.
//
// Create fails with ErrSessionExists when the key is taken; every other
// operation fails with ErrSessionNotFound when the key was never created.
// A successful write (AppendEvent, ApplyDelta) must be visible to an
// immediately following Get.
type SessionStore interface {
	Create(key SessionKey, initialState map[string]interface{}) (*Session, error)
	Get(key SessionKey) (*Session, error)
	AppendEvent(key SessionKey, event Event) error
	ApplyDelta(key SessionKey, delta map[string]interface{}) error
}
