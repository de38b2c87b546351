// Package session is the registry of live voice sessions. A user has at most
// one active session; creating another ends the previous one.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID     string `json:"session_id"`
	UserID string `json:"user_id"`
	Status Status `json:"status"`
	Voice  string `json:"voice"`
	// LiveState mirrors the controller state: idle, connecting, open or closed.
	LiveState         string    `json:"live_state"`
	TurnCount         int       `json:"turn_count"`
	InterruptionCount int       `json:"interruption_count"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	EndedAt           time.Time `json:"ended_at,omitzero"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

// SetExpireHook registers a callback run for every session the janitor or a
// replacing Create ends.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a new active session. If userID already had one, it is
// ended first and returned as replaced.
func (m *Manager) Create(userID, voice string) (created, replaced *Session) {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Voice:          voice,
		Status:         StatusActive,
		LiveState:      "idle",
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	if prevID, ok := m.sessionByUser[userID]; ok && userID != "" {
		if prev := m.sessions[prevID]; prev != nil && prev.Status == StatusActive {
			endLocked(prev, now)
			replaced = clone(prev)
		}
	}
	m.sessions[s.ID] = s
	if userID != "" {
		m.sessionByUser[userID] = s.ID
	}
	hook := m.onExpire
	created = clone(s)
	m.mu.Unlock()

	if replaced != nil && hook != nil {
		hook(replaced)
	}
	return created, replaced
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// ActiveForUser returns the user's active session, if any.
func (m *Manager) ActiveForUser(userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessionByUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusActive {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) mutate(sessionID string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	fn(s)
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) Touch(sessionID string) error {
	return m.mutate(sessionID, func(*Session) {})
}

func (m *Manager) SetLiveState(sessionID, state string) error {
	return m.mutate(sessionID, func(s *Session) { s.LiveState = state })
}

func (m *Manager) CompleteTurn(sessionID string) error {
	return m.mutate(sessionID, func(s *Session) { s.TurnCount++ })
}

func (m *Manager) Interrupt(sessionID string) error {
	return m.mutate(sessionID, func(s *Session) { s.InterruptionCount++ })
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	endLocked(s, time.Now().UTC())
	if m.sessionByUser[s.UserID] == s.ID {
		delete(m.sessionByUser, s.UserID)
	}
	return clone(s), nil
}

func endLocked(s *Session, now time.Time) {
	if s.Status == StatusEnded {
		return
	}
	s.Status = StatusEnded
	s.LastActivityAt = now
	s.EndedAt = now
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

// expireInactive ends idle sessions and forgets sessions that ended more
// than one timeout ago.
func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			if now.Sub(s.EndedAt) >= m.inactivityTimeout {
				delete(m.sessions, id)
			}
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		endLocked(s, now)
		expired = append(expired, clone(s))
		if m.sessionByUser[s.UserID] == s.ID {
			delete(m.sessionByUser, s.UserID)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
