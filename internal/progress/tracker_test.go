package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/antoniostano/bootcamp/internal/store"
)

var start = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, now time.Time) *Tracker {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	cur, err := DefaultCurriculum()
	if err != nil {
		t.Fatalf("DefaultCurriculum() error = %v", err)
	}
	tr := NewTracker(st, cur, start)
	tr.SetClock(func() time.Time { return now })
	return tr
}

func TestDefaultCurriculumPlan(t *testing.T) {
	cur, err := DefaultCurriculum()
	if err != nil {
		t.Fatalf("DefaultCurriculum() error = %v", err)
	}
	days := cur.Plan(start)
	if len(days) != 15 {
		t.Fatalf("len(days) = %d, want 15", len(days))
	}
	if len(days[0].Sessions) != 4 {
		t.Fatalf("sessions per day = %d, want 4", len(days[0].Sessions))
	}
	if !days[14].Date.Equal(start.AddDate(0, 0, 14)) {
		t.Fatalf("day 15 date = %v, want %v", days[14].Date, start.AddDate(0, 0, 14))
	}
	if got := days[0].Sessions[0].Title; got != "Concept Sprint: Partnership Fundamentals" {
		t.Fatalf("title = %q", got)
	}
}

func TestLoadCreatesDefaultPlan(t *testing.T) {
	tr := newTracker(t, start.Add(36*time.Hour))
	p, err := tr.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Vitals != DefaultVitals {
		t.Fatalf("Vitals = %+v, want %+v", p.Vitals, DefaultVitals)
	}
	if p.UnlockedDay != 2 {
		t.Fatalf("UnlockedDay = %d, want 2", p.UnlockedDay)
	}
	if len(p.Days) != 15 {
		t.Fatalf("len(Days) = %d, want 15", len(p.Days))
	}
}

func TestToggleTaskCompletesSession(t *testing.T) {
	tr := newTracker(t, start.AddDate(0, 0, 3))
	ctx := context.Background()
	p, _ := tr.Load(ctx, "u1")
	sess := p.Days[0].Sessions[3]

	var err error
	for i, task := range sess.Tasks {
		p, err = tr.ToggleTask(ctx, "u1", 1, sess.ID, task.ID)
		if err != nil {
			t.Fatalf("ToggleTask() error = %v", err)
		}
		done := p.Days[0].Sessions[3].Completed
		if last := i == len(sess.Tasks)-1; done != last {
			t.Fatalf("after %d toggles Completed = %v, want %v", i+1, done, last)
		}
	}
	if p.Days[0].CompletedSessions() != 1 {
		t.Fatalf("CompletedSessions() = %d, want 1", p.Days[0].CompletedSessions())
	}

	p, err = tr.ToggleTask(ctx, "u1", 1, sess.ID, sess.Tasks[0].ID)
	if err != nil {
		t.Fatalf("ToggleTask() error = %v", err)
	}
	if p.Days[0].Sessions[3].Completed {
		t.Fatalf("session still completed after unchecking a task")
	}

	reloaded, _ := tr.Load(ctx, "u1")
	if reloaded.Days[0].Sessions[3].Tasks[1].Completed != true {
		t.Fatalf("toggle not persisted")
	}
}

func TestToggleTaskErrors(t *testing.T) {
	tr := newTracker(t, start)
	ctx := context.Background()
	p, _ := tr.Load(ctx, "u1")
	sess := p.Days[0].Sessions[0]

	if _, err := tr.ToggleTask(ctx, "u1", 1, sess.ID, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown task error = %v, want ErrNotFound", err)
	}
	if _, err := tr.ToggleTask(ctx, "u1", 1, "nope", sess.Tasks[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown session error = %v, want ErrNotFound", err)
	}
	locked := p.Days[4].Sessions[0]
	if _, err := tr.ToggleTask(ctx, "u1", 5, locked.ID, locked.Tasks[0].ID); !errors.Is(err, ErrDayLocked) {
		t.Fatalf("locked day error = %v, want ErrDayLocked", err)
	}
}

func TestUpdateVitalsClampsAndKeepsUnset(t *testing.T) {
	tr := newTracker(t, start)
	ctx := context.Background()
	energy, sleep, hydration := 150, 30.0, -3

	p, err := tr.UpdateVitals(ctx, "u1", VitalsPatch{Energy: &energy, Sleep: &sleep, Hydration: &hydration})
	if err != nil {
		t.Fatalf("UpdateVitals() error = %v", err)
	}
	want := Vitals{Energy: 100, Focus: 90, Hydration: 0, Sleep: 24}
	if p.Vitals != want {
		t.Fatalf("Vitals = %+v, want %+v", p.Vitals, want)
	}

	p, _ = tr.AddHydration(ctx, "u1", 2)
	p, _ = tr.AddHydration(ctx, "u1", -5)
	if p.Vitals.Hydration != 0 {
		t.Fatalf("Hydration = %d, want 0", p.Vitals.Hydration)
	}
}

func TestMistakesTouchAndReset(t *testing.T) {
	now := start.Add(5 * time.Hour)
	tr := newTracker(t, now)
	ctx := context.Background()

	p, err := tr.UpdateMistakes(ctx, "u1", 1, "forgot goodwill adjustment")
	if err != nil {
		t.Fatalf("UpdateMistakes() error = %v", err)
	}
	if p.Days[0].Mistakes != "forgot goodwill adjustment" {
		t.Fatalf("Mistakes = %q", p.Days[0].Mistakes)
	}
	if _, err := tr.UpdateMistakes(ctx, "u1", 99, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateMistakes(99) error = %v, want ErrNotFound", err)
	}

	p, _ = tr.Touch(ctx, "u1")
	if !p.LastVisit.Equal(now) {
		t.Fatalf("LastVisit = %v, want %v", p.LastVisit, now)
	}

	if err := tr.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	p, _ = tr.Load(ctx, "u1")
	if p.Days[0].Mistakes != "" {
		t.Fatalf("Mistakes after reset = %q, want empty", p.Days[0].Mistakes)
	}
}

func TestUnlockedDay(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "before start", now: start.Add(-time.Minute), want: 0},
		{name: "start midnight", now: start, want: 1},
		{name: "late first day", now: start.Add(23*time.Hour + 59*time.Minute), want: 1},
		{name: "second day", now: start.Add(24 * time.Hour), want: 2},
		{name: "day fifteen", now: start.AddDate(0, 0, 14), want: 15},
		{name: "long after", now: start.AddDate(0, 2, 0), want: 15},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := UnlockedDay(start, tc.now); got != tc.want {
				t.Fatalf("UnlockedDay() = %d, want %d", got, tc.want)
			}
		})
	}
}
