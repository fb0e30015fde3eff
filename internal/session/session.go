package session

import "sync"

// State names one step of a conversation flow.
type State string

// Session is one user's conversation context: a stack of visited
// states for back-navigation plus per-state draft data. Data set for a
// state survives pushes and pops of other states, so returning to a
// step can pre-fill what the user already typed; it is dropped only
// when a flow completes or resets.
//
// A session is owned by one dispatcher goroutine at a time and needs
// no internal locking.
type Session struct {
	UserID string
	ChatID string

	stack []State
	data  map[State]map[string]any
}

func newSession(userID string) *Session {
	return &Session{
		UserID: userID,
		data:   map[State]map[string]any{},
	}
}

// Push records a state on the history stack, skipping consecutive
// duplicates so "back" never lands on the state it left.
func (s *Session) Push(state State) {
	if n := len(s.stack); n > 0 && s.stack[n-1] == state {
		return
	}
	s.stack = append(s.stack, state)
}

// Pop removes and returns the most recent state, or "" when the stack
// is empty.
func (s *Session) Pop() State {
	n := len(s.stack)
	if n == 0 {
		return ""
	}
	state := s.stack[n-1]
	s.stack = s.stack[:n-1]
	return state
}

// Current returns the most recent state without removing it.
func (s *Session) Current() State {
	n := len(s.stack)
	if n == 0 {
		return ""
	}
	return s.stack[n-1]
}

// Set stores a draft value scoped to one state.
func (s *Session) Set(state State, key string, value any) {
	m, ok := s.data[state]
	if !ok {
		m = map[string]any{}
		s.data[state] = m
	}
	m[key] = value
}

// Get returns a draft value scoped to one state.
func (s *Session) Get(state State, key string) (any, bool) {
	v, ok := s.data[state][key]
	return v, ok
}

// GetString returns a string draft value, or def when absent or not a
// string.
func (s *Session) GetString(state State, key, def string) string {
	if v, ok := s.data[state][key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

// GetInt returns an int draft value, or def when absent.
func (s *Session) GetInt(state State, key string, def int) int {
	if v, ok := s.data[state][key]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return def
}

// ClearState drops the draft data of a single state, leaving every
// other state's data and the history stack intact.
func (s *Session) ClearState(state State) {
	delete(s.data, state)
}

// Reset drops all draft data and the history stack.
func (s *Session) Reset() {
	s.stack = s.stack[:0]
	s.data = map[State]map[string]any{}
}

// Manager hands out sessions keyed by user id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

// Get returns the user's session, creating it on first use.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = newSession(userID)
		m.sessions[userID] = s
	}
	return s
}

// Drop removes a user's session entirely.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
