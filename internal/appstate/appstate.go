// Package appstate owns the per-user UI flags that were once globals: theme
// and the stub sign-in.
package appstate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/memory"
	"github.com/antoniostano/bootcamp/internal/store"
)

type State struct {
	UserID    string    `json:"user_id"`
	DarkMode  bool      `json:"dark_mode"`
	LoggedIn  bool      `json:"logged_in"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager reads and writes State and wipes a user's data on Reset.
type Manager struct {
	store       *store.Store
	transcripts memory.Store
	now         func() time.Time

	mu sync.Mutex
}

// NewManager builds a Manager. transcripts may be nil.
func NewManager(st *store.Store, transcripts memory.Store) *Manager {
	return &Manager{store: st, transcripts: transcripts, now: time.Now}
}

func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func key(userID string) string { return store.UserKey(userID, "app") }

// Init returns the stored state for userID, creating a signed-out light-mode
// state on first use.
func (m *Manager) Init(ctx context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx, userID)
}

func (m *Manager) loadLocked(ctx context.Context, userID string) (State, error) {
	var s State
	err := m.store.GetJSON(ctx, key(userID), &s)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return State{}, fmt.Errorf("load app state: %w", err)
	}
	s = State{UserID: userID, UpdatedAt: m.now().UTC()}
	if err := m.store.SetJSON(ctx, key(userID), s); err != nil {
		return State{}, fmt.Errorf("save app state: %w", err)
	}
	return s, nil
}

func (m *Manager) update(ctx context.Context, userID string, fn func(*State)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.loadLocked(ctx, userID)
	if err != nil {
		return State{}, err
	}
	fn(&s)
	s.UpdatedAt = m.now().UTC()
	if err := m.store.SetJSON(ctx, key(userID), s); err != nil {
		return State{}, fmt.Errorf("save app state: %w", err)
	}
	return s, nil
}

func (m *Manager) SetTheme(ctx context.Context, userID string, dark bool) (State, error) {
	return m.update(ctx, userID, func(s *State) { s.DarkMode = dark })
}

// SignIn marks the user as logged in. No identity is verified.
func (m *Manager) SignIn(ctx context.Context, userID string) (State, error) {
	return m.update(ctx, userID, func(s *State) { s.LoggedIn = true })
}

func (m *Manager) SignOut(ctx context.Context, userID string) (State, error) {
	return m.update(ctx, userID, func(s *State) { s.LoggedIn = false })
}

// Reset deletes everything stored for userID: progress, toolkit data, app
// state and chat transcripts.
func (m *Manager) Reset(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.store.DeletePrefix(ctx, store.UserPrefix(userID))
	if err != nil {
		return fmt.Errorf("reset %s: %w", userID, err)
	}
	turns := 0
	if m.transcripts != nil {
		if turns, err = m.transcripts.DeleteUser(ctx, userID); err != nil {
			return fmt.Errorf("reset %s transcripts: %w", userID, err)
		}
	}
	log.Printf("app state: reset %s (%d records, %d transcript turns)", userID, n, turns)
	return nil
}
