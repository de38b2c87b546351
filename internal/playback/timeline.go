package playback

import (
	"io"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/audio"
)

// Timeline is a Sink that renders scheduled items onto a single PCM track
// following the clock. A stopped item keeps only the audio that had already
// played when Stop was called.
type Timeline struct {
	mu         sync.Mutex
	clock      Clock
	sampleRate int
	segments   []*segment
}

type segment struct {
	item Item
	cut  time.Duration
}

func NewTimeline(clock Clock, sampleRate int) *Timeline {
	if sampleRate <= 0 {
		sampleRate = audio.PlaybackSampleRate
	}
	return &Timeline{clock: clock, sampleRate: sampleRate}
}

func (t *Timeline) Start(item Item) (Source, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seg := &segment{item: item, cut: item.EndAt()}
	t.segments = append(t.segments, seg)
	return &timelineSource{timeline: t, seg: seg}, nil
}

type timelineSource struct {
	timeline *Timeline
	seg      *segment
}

func (s *timelineSource) Stop() {
	t := s.timeline
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	cut := now
	if cut < s.seg.item.StartAt {
		cut = s.seg.item.StartAt
	}
	if cut < s.seg.cut {
		s.seg.cut = cut
	}
}

// Render returns the mixed PCM16 track from time zero to the end of the last
// audible segment. Silence fills the gaps.
func (t *Timeline) Render() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	var end int
	for _, seg := range t.segments {
		if n := t.offset(seg.cut); n > end {
			end = n
		}
	}
	track := make([]byte, end*audio.BytesPerSample)
	for _, seg := range t.segments {
		from := t.offset(seg.item.StartAt)
		to := t.offset(seg.cut)
		n := to - from
		if n <= 0 {
			continue
		}
		if limit := seg.item.Chunk.Samples(); n > limit {
			n = limit
		}
		copy(track[from*audio.BytesPerSample:], seg.item.Chunk.PCM[:n*audio.BytesPerSample])
	}
	return track
}

// Audible reports how much of each item was (or will be) heard, keyed by
// sequence number.
func (t *Timeline) Audible() map[int]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]time.Duration, len(t.segments))
	for _, seg := range t.segments {
		out[seg.item.Seq] = seg.cut - seg.item.StartAt
	}
	return out
}

// WriteWAV writes the rendered track as a WAV file.
func (t *Timeline) WriteWAV(w io.Writer) error {
	return audio.WriteWAVPCM16LETo(w, t.Render(), t.sampleRate)
}

func (t *Timeline) offset(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d * time.Duration(t.sampleRate) / time.Second)
}
