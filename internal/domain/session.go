package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidTransition is returned when a session is moved out of order.
var ErrInvalidTransition = errors.New("invalid session transition")

// SessionState is the lifecycle of one realtime connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session tracks one connection: Connecting -> Authenticated -> Active -> Disconnected.
// Disconnected is reachable from every state and is terminal.
type Session struct {
	ID           string
	CreatedAt    time.Time
	user         *User
	state        SessionState
	lastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastActiveAt: now,
		state:        StateConnecting,
	}
}

// Authenticate binds the verified user. Allowed once, from Connecting.
func (s *Session) Authenticate(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting || u == nil {
		return fmt.Errorf("%w: authenticate from %s", ErrInvalidTransition, s.state)
	}
	s.user = u
	s.state = StateAuthenticated
	s.lastActiveAt = time.Now()
	return nil
}

// Activate marks the session registered and ready for events.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateActive
	s.lastActiveAt = time.Now()
	return nil
}

// Disconnect moves to Disconnected and returns the previous state.
func (s *Session) Disconnect() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = StateDisconnected
	return prev
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsActive() bool {
	return s.State() == StateActive
}

// User returns the authenticated user, nil before authentication.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}
