package live

import (
	"context"
	"io"
	"math"
	"sync"

	"github.com/antoniostano/bootcamp/internal/audio"
)

// MockRemote is a local stand-in used when no Gemini key is configured. After
// every ReplyEvery microphone chunks it answers with a short tone and a
// canned transcript.
type MockRemote struct {
	ReplyEvery int
}

func NewMockRemote() *MockRemote { return &MockRemote{ReplyEvery: 8} }

func (r *MockRemote) Connect(_ context.Context, _ Config) (Stream, error) {
	every := r.ReplyEvery
	if every <= 0 {
		every = 8
	}
	return &mockStream{
		every:  every,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}, nil
}

type mockStream struct {
	mu     sync.Mutex
	every  int
	chunks int
	closed bool
	events chan Event
	done   chan struct{}
}

func (s *mockStream) SendAudio(_ context.Context, _ audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.chunks++
	if s.chunks%s.every != 0 {
		return nil
	}
	reply := []Event{
		{Transcript: &Transcript{Role: RoleUser, Text: "simulated voice input", Final: true}},
	}
	for _, c := range toneChunks(440, 3) {
		c := c
		reply = append(reply, Event{Audio: &c})
	}
	reply = append(reply,
		Event{Transcript: &Transcript{Role: RoleAssistant, Text: "Debit what comes in, credit what goes out.", Final: true}},
		Event{TurnComplete: true},
	)
	for _, ev := range reply {
		select {
		case s.events <- ev:
		default:
		}
	}
	return nil
}

func (s *mockStream) Receive(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.done:
		return Event{}, io.EOF
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// toneChunks returns n 100ms chunks of a sine at freq Hz and playback rate.
func toneChunks(freq float64, n int) []audio.Chunk {
	per := audio.PlaybackSampleRate / 10
	out := make([]audio.Chunk, n)
	for i := range out {
		samples := make([]float32, per)
		for j := range samples {
			t := float64(i*per+j) / audio.PlaybackSampleRate
			samples[j] = float32(0.3 * math.Sin(2*math.Pi*freq*t))
		}
		out[i] = audio.NewChunk(samples, audio.PlaybackSampleRate)
	}
	return out
}
