// Package playback schedules decoded audio chunks back-to-back on an output
// clock and cuts them off on barge-in.
package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/audio"
)

var ErrClosed = errors.New("playback scheduler closed")

// Item is one chunk placed on the output timeline.
type Item struct {
	Seq      int
	Chunk    audio.Chunk
	StartAt  time.Duration
	Duration time.Duration
}

func (i Item) EndAt() time.Duration { return i.StartAt + i.Duration }

// Sink starts playback of a scheduled item and returns a handle that can cut
// it off.
type Sink interface {
	Start(item Item) (Source, error)
}

// Source is a started playback buffer.
type Source interface {
	Stop()
}

// Stats counts scheduler activity.
type Stats struct {
	Scheduled     int64
	Ended         int64
	Stopped       int64
	Interruptions int64
}

type activeSource struct {
	item  Item
	src   Source
	timer Timer
}

// Scheduler keeps a playback cursor so that chunks arriving in order play
// without gaps or overlap.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	sink    Sink
	cursor  time.Duration
	nextSeq int
	active  map[int]*activeSource
	stats   Stats
	closed  bool
	onEnded func(Item)
}

func NewScheduler(clock Clock, sink Sink) *Scheduler {
	if clock == nil {
		clock = NewMonotonicClock()
	}
	return &Scheduler{
		clock:  clock,
		sink:   sink,
		cursor: clock.Now(),
		active: make(map[int]*activeSource),
	}
}

// SetEndedHook registers f to run after a source finishes naturally.
func (s *Scheduler) SetEndedHook(f func(Item)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = f
}

// Schedule places c at max(now, cursor) and advances the cursor by its
// duration.
func (s *Scheduler) Schedule(c audio.Chunk) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Item{}, ErrClosed
	}

	now := s.clock.Now()
	startAt := s.cursor
	if now > startAt {
		startAt = now
	}
	item := Item{
		Seq:      s.nextSeq,
		Chunk:    c,
		StartAt:  startAt,
		Duration: c.Duration(),
	}

	src, err := s.sink.Start(item)
	if err != nil {
		return Item{}, err
	}
	s.nextSeq++
	s.cursor = item.EndAt()
	s.stats.Scheduled++

	a := &activeSource{item: item, src: src}
	s.active[item.Seq] = a
	a.timer = s.clock.AfterFunc(item.EndAt()-now, func() { s.ended(a) })
	return item, nil
}

func (s *Scheduler) ended(a *activeSource) {
	s.mu.Lock()
	cur, ok := s.active[a.item.Seq]
	if !ok || cur != a {
		s.mu.Unlock()
		return
	}
	delete(s.active, a.item.Seq)
	s.stats.Ended++
	hook := s.onEnded
	s.mu.Unlock()

	if hook != nil {
		hook(a.item)
	}
}

// Interrupt stops every active source, clears the set and resets the cursor
// to the current clock time. It returns the stopped items in sequence order.
func (s *Scheduler) Interrupt() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Interruptions++
	stopped := s.stopAllLocked()
	s.cursor = s.clock.Now()
	return stopped
}

// Close stops all sources and rejects further scheduling.
func (s *Scheduler) Close() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	stopped := s.stopAllLocked()
	s.cursor = s.clock.Now()
	return stopped
}

func (s *Scheduler) stopAllLocked() []Item {
	if len(s.active) == 0 {
		return nil
	}
	stopped := make([]Item, 0, len(s.active))
	for seq, a := range s.active {
		a.timer.Stop()
		a.src.Stop()
		delete(s.active, seq)
		s.stats.Stopped++
		stopped = append(stopped, a.item)
	}
	sortItems(stopped)
	return stopped
}

// Cursor is the earliest time the next chunk may start.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Active reports how many sources are scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func sortItems(items []Item) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Seq < items[j-1].Seq; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
