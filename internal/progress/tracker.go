// Package progress tracks a user's way through the 15-day plan: task and
// session completion, the daily mistakes log and wellbeing vitals.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/store"
)

var (
	ErrNotFound  = errors.New("progress: not found")
	ErrDayLocked = errors.New("progress: day is locked")
)

type Task struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Duration  string `json:"duration"`
	Tasks     []Task `json:"tasks"`
	Completed bool   `json:"completed"`
}

type Day struct {
	Number   int       `json:"day_number"`
	Date     time.Time `json:"date"`
	Topic    string    `json:"topic"`
	Sessions []Session `json:"sessions"`
	Mistakes string    `json:"mistakes"`
}

// CompletedSessions counts sessions whose tasks are all done.
func (d Day) CompletedSessions() int {
	n := 0
	for _, s := range d.Sessions {
		if s.Completed {
			n++
		}
	}
	return n
}

type Vitals struct {
	Energy    int     `json:"energy"`
	Focus     int     `json:"focus"`
	Hydration int     `json:"hydration"`
	Sleep     float64 `json:"sleep"`
}

// DefaultVitals are applied to every fresh plan.
var DefaultVitals = Vitals{Energy: 85, Focus: 90, Hydration: 0, Sleep: 8}

// VitalsPatch carries a partial update; nil fields are left alone.
type VitalsPatch struct {
	Energy    *int     `json:"energy,omitempty"`
	Focus     *int     `json:"focus,omitempty"`
	Hydration *int     `json:"hydration,omitempty"`
	Sleep     *float64 `json:"sleep,omitempty"`
}

type Progress struct {
	UserID      string    `json:"user_id"`
	StartDate   time.Time `json:"start_date"`
	Days        []Day     `json:"days"`
	LastVisit   time.Time `json:"last_visit_date"`
	Vitals      Vitals    `json:"vitals"`
	UnlockedDay int       `json:"unlocked_day"`
}

func (p *Progress) day(n int) (*Day, error) {
	for i := range p.Days {
		if p.Days[i].Number == n {
			return &p.Days[i], nil
		}
	}
	return nil, fmt.Errorf("%w: day %d", ErrNotFound, n)
}

// Tracker loads and mutates per-user progress in the store.
type Tracker struct {
	store      *store.Store
	curriculum Curriculum
	start      time.Time
	now        func() time.Time

	mu sync.Mutex
}

func NewTracker(st *store.Store, curriculum Curriculum, start time.Time) *Tracker {
	return &Tracker{store: st, curriculum: curriculum, start: start, now: time.Now}
}

// SetClock replaces the time source used for unlocking and visit stamps.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

func key(userID string) string { return store.UserKey(userID, "progress") }

// Load returns the stored plan for userID, creating and persisting a fresh one
// on first use.
func (t *Tracker) Load(ctx context.Context, userID string) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.loadLocked(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	return t.view(p), nil
}

func (t *Tracker) loadLocked(ctx context.Context, userID string) (Progress, error) {
	var p Progress
	err := t.store.GetJSON(ctx, key(userID), &p)
	if err == nil {
		if p.Vitals == (Vitals{}) {
			p.Vitals = DefaultVitals
		}
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Progress{}, fmt.Errorf("load progress: %w", err)
	}
	p = Progress{
		UserID:    userID,
		StartDate: t.start,
		Days:      t.curriculum.Plan(t.start),
		LastVisit: t.now().UTC(),
		Vitals:    DefaultVitals,
	}
	if err := t.store.SetJSON(ctx, key(userID), p); err != nil {
		return Progress{}, fmt.Errorf("save progress: %w", err)
	}
	return p, nil
}

func (t *Tracker) update(ctx context.Context, userID string, fn func(p *Progress) error) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.loadLocked(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	if err := fn(&p); err != nil {
		return Progress{}, err
	}
	if err := t.store.SetJSON(ctx, key(userID), p); err != nil {
		return Progress{}, fmt.Errorf("save progress: %w", err)
	}
	return t.view(p), nil
}

func (t *Tracker) view(p Progress) Progress {
	p.UnlockedDay = UnlockedDay(p.StartDate, t.now())
	return p
}

// ToggleTask flips one task. The session is complete exactly when all of its
// tasks are.
func (t *Tracker) ToggleTask(ctx context.Context, userID string, dayNum int, sessionID, taskID string) (Progress, error) {
	return t.update(ctx, userID, func(p *Progress) error {
		if dayNum > UnlockedDay(p.StartDate, t.now()) {
			return fmt.Errorf("%w: day %d", ErrDayLocked, dayNum)
		}
		d, err := p.day(dayNum)
		if err != nil {
			return err
		}
		for si := range d.Sessions {
			s := &d.Sessions[si]
			if s.ID != sessionID {
				continue
			}
			for ti := range s.Tasks {
				if s.Tasks[ti].ID != taskID {
					continue
				}
				s.Tasks[ti].Completed = !s.Tasks[ti].Completed
				s.Completed = allDone(s.Tasks)
				return nil
			}
			return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	})
}

func allDone(tasks []Task) bool {
	for _, task := range tasks {
		if !task.Completed {
			return false
		}
	}
	return true
}

func (t *Tracker) UpdateMistakes(ctx context.Context, userID string, dayNum int, text string) (Progress, error) {
	return t.update(ctx, userID, func(p *Progress) error {
		d, err := p.day(dayNum)
		if err != nil {
			return err
		}
		d.Mistakes = text
		return nil
	})
}

// UpdateVitals applies patch. Energy and focus are clamped to [1,100],
// hydration to >= 0 and sleep to [0,24].
func (t *Tracker) UpdateVitals(ctx context.Context, userID string, patch VitalsPatch) (Progress, error) {
	return t.update(ctx, userID, func(p *Progress) error {
		v := &p.Vitals
		if patch.Energy != nil {
			v.Energy = clampInt(*patch.Energy, 1, 100)
		}
		if patch.Focus != nil {
			v.Focus = clampInt(*patch.Focus, 1, 100)
		}
		if patch.Hydration != nil {
			v.Hydration = max(*patch.Hydration, 0)
		}
		if patch.Sleep != nil {
			v.Sleep = min(max(*patch.Sleep, 0), 24)
		}
		return nil
	})
}

// AddHydration adjusts the glasses counter by delta without going negative.
func (t *Tracker) AddHydration(ctx context.Context, userID string, delta int) (Progress, error) {
	return t.update(ctx, userID, func(p *Progress) error {
		p.Vitals.Hydration = max(p.Vitals.Hydration+delta, 0)
		return nil
	})
}

// Touch stamps the last visit.
func (t *Tracker) Touch(ctx context.Context, userID string) (Progress, error) {
	return t.update(ctx, userID, func(p *Progress) error {
		p.LastVisit = t.now().UTC()
		return nil
	})
}

// Reset forgets the user's plan; the next Load starts over.
func (t *Tracker) Reset(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(ctx, key(userID))
}

// UnlockedDay is the number of whole calendar days from start to now plus one,
// clamped to [0, 15]. It is 0 before the start date.
func UnlockedDay(start, now time.Time) int {
	loc := start.Location()
	now = now.In(loc)
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if n.Before(s) {
		return 0
	}
	days := int(n.Sub(s)/(24*time.Hour)) + 1
	return clampInt(days, 0, 15)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
