// Package toolkit holds the study widgets: calculator, flashcards, ledger
// pad, notes, formula vault, chapter checklist and exam countdown.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/store"
)

var ErrUnknownChapter = errors.New("toolkit: unknown chapter")

// Service persists the per-user widget state.
type Service struct {
	store   *store.Store
	content Content
	exam    time.Time
	now     func() time.Time

	mu sync.Mutex
}

func NewService(st *store.Store, content Content, exam time.Time) *Service {
	return &Service{store: st, content: content, exam: exam, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Content() Content { return s.content }

func (s *Service) Countdown() Countdown { return CountdownTo(s.exam, s.now()) }

func toolKey(userID, name string) string { return store.UserKey(userID, "toolkit", name) }

// load decodes key into v, leaving v untouched if nothing is stored yet.
func (s *Service) load(ctx context.Context, key string, v any) error {
	err := s.store.GetJSON(ctx, key, v)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load %s: %w", key, err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	if err := s.store.SetJSON(ctx, key, v); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Service) Notes(ctx context.Context, userID string) (string, error) {
	var notes string
	err := s.load(ctx, toolKey(userID, "notes"), &notes)
	return notes, err
}

func (s *Service) SetNotes(ctx context.Context, userID, text string) error {
	return s.save(ctx, toolKey(userID, "notes"), text)
}

// Card returns the card the user's cursor points at.
func (s *Service) Card(ctx context.Context, userID string) (Card, error) {
	var st DeckState
	if err := s.load(ctx, toolKey(userID, "deck"), &st); err != nil {
		return Card{}, err
	}
	return cardAt(s.content.Flashcards, st), nil
}

func (s *Service) NextCard(ctx context.Context, userID string) (Card, error) {
	return s.moveDeck(ctx, userID, func(st DeckState) DeckState { return st.Next(len(s.content.Flashcards)) })
}

func (s *Service) PrevCard(ctx context.Context, userID string) (Card, error) {
	return s.moveDeck(ctx, userID, func(st DeckState) DeckState { return st.Prev(len(s.content.Flashcards)) })
}

func (s *Service) FlipCard(ctx context.Context, userID string) (Card, error) {
	return s.moveDeck(ctx, userID, DeckState.Flip)
}

func (s *Service) moveDeck(ctx context.Context, userID string, fn func(DeckState) DeckState) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := toolKey(userID, "deck")
	var st DeckState
	if err := s.load(ctx, key, &st); err != nil {
		return Card{}, err
	}
	st = fn(st)
	if err := s.save(ctx, key, st); err != nil {
		return Card{}, err
	}
	return cardAt(s.content.Flashcards, st), nil
}

func (s *Service) Ledger(ctx context.Context, userID string) (Ledger, error) {
	var l Ledger
	err := s.load(ctx, toolKey(userID, "ledger"), &l)
	return l, err
}

// Post appends an entry to the user's ledger pad.
func (s *Service) Post(ctx context.Context, userID string, side Side, amount float64) (Ledger, error) {
	return s.updateLedger(ctx, userID, func(l *Ledger) error {
		_, err := l.Post(side, amount, s.now())
		return err
	})
}

func (s *Service) RemoveEntry(ctx context.Context, userID, entryID string) (Ledger, error) {
	return s.updateLedger(ctx, userID, func(l *Ledger) error {
		if !l.Remove(entryID) {
			return fmt.Errorf("%w: entry %s", store.ErrNotFound, entryID)
		}
		return nil
	})
}

func (s *Service) ClearLedger(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, toolKey(userID, "ledger"))
}

func (s *Service) updateLedger(ctx context.Context, userID string, fn func(*Ledger) error) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := toolKey(userID, "ledger")
	var l Ledger
	if err := s.load(ctx, key, &l); err != nil {
		return Ledger{}, err
	}
	if err := fn(&l); err != nil {
		return Ledger{}, err
	}
	if err := s.save(ctx, key, l); err != nil {
		return Ledger{}, err
	}
	return l, nil
}

// Chapters returns the checked chapters in checklist order.
func (s *Service) Chapters(ctx context.Context, userID string) ([]string, error) {
	checked := []string{}
	if err := s.load(ctx, toolKey(userID, "chapters"), &checked); err != nil {
		return nil, err
	}
	return checked, nil
}

// ToggleChapter checks or unchecks one chapter of the fixed list.
func (s *Service) ToggleChapter(ctx context.Context, userID, chapter string) ([]string, error) {
	if !slices.Contains(s.content.Chapters, chapter) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChapter, chapter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := toolKey(userID, "chapters")
	var checked []string
	if err := s.load(ctx, key, &checked); err != nil {
		return nil, err
	}
	if slices.Contains(checked, chapter) {
		checked = slices.DeleteFunc(checked, func(c string) bool { return c == chapter })
	} else {
		checked = append(checked, chapter)
	}
	ordered := make([]string, 0, len(checked))
	for _, c := range s.content.Chapters {
		if slices.Contains(checked, c) {
			ordered = append(ordered, c)
		}
	}
	if err := s.save(ctx, key, ordered); err != nil {
		return nil, err
	}
	return ordered, nil
}
