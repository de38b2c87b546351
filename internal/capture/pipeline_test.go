package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/failure"
)

type collectSender struct {
	mu     sync.Mutex
	chunks []audio.Chunk
	err    error
}

func (s *collectSender) SendAudio(_ context.Context, c audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, c)
	return nil
}

func (s *collectSender) snapshot() []audio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.Chunk(nil), s.chunks...)
}

func ramp(n int, start float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start
	}
	return out
}

func TestPipelineThreeFramesThreeChunks(t *testing.T) {
	sender := &collectSender{}
	p := NewPipeline(sender, Options{QueueFrames: 8})
	p.SetReady(true)

	samples := append(append(ramp(audio.FrameSize, 0.1), ramp(audio.FrameSize, 0.2)...), ramp(audio.FrameSize, 0.3)...)
	stream := NewSliceStream(context.Background(), samples, audio.CaptureSampleRate, audio.FrameSize, false)
	if err := p.Run(context.Background(), stream); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	chunks := sender.snapshot()
	if len(chunks) != 3 {
		t.Fatalf("sent %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c.PCM) != audio.FrameSize*2 {
			t.Fatalf("chunk %d len = %d, want %d", i, len(c.PCM), audio.FrameSize*2)
		}
		if c.SampleRate != audio.CaptureSampleRate {
			t.Fatalf("chunk %d rate = %d, want 16000", i, c.SampleRate)
		}
		got, _ := audio.DecodePCM16(c.PCM[:2])
		want := float32(0.1 * float32(i+1))
		if diff := got[0] - want; diff > 1.0/32768 || diff < -1.0/32768 {
			t.Fatalf("chunk %d first sample = %v, want %v (capture order)", i, got[0], want)
		}
	}
	if st := p.Stats(); st.Captured != 3 || st.Sent != 3 {
		t.Fatalf("Stats() = %+v, want 3 captured, 3 sent", st)
	}
}

func TestPipelineDropsWhenNotReady(t *testing.T) {
	var reasons []string
	p := NewPipeline(&collectSender{}, Options{OnDrop: func(r string) { reasons = append(reasons, r) }})

	p.Push(audio.NewChunk(ramp(4, 0), audio.CaptureSampleRate))
	p.Push(audio.NewChunk(ramp(4, 0), audio.CaptureSampleRate))

	st := p.Stats()
	if st.DroppedNotReady != 2 || st.Captured != 2 {
		t.Fatalf("Stats() = %+v, want 2 captured, 2 dropped not ready", st)
	}
	if len(reasons) != 2 || reasons[0] != DropNotReady {
		t.Fatalf("drop reasons = %v, want not_ready x2", reasons)
	}
}

func TestPipelineQueueFullDropsOldest(t *testing.T) {
	sender := &collectSender{}
	var reasons []string
	p := NewPipeline(sender, Options{QueueFrames: 2, OnDrop: func(r string) { reasons = append(reasons, r) }})
	p.SetReady(true)

	for i := 1; i <= 3; i++ {
		p.Push(audio.NewChunk(ramp(2, float32(i)/10), audio.CaptureSampleRate))
	}
	if st := p.Stats(); st.DroppedQueueFull != 1 {
		t.Fatalf("DroppedQueueFull = %d, want 1", st.DroppedQueueFull)
	}
	if len(reasons) != 1 || reasons[0] != DropQueueFull {
		t.Fatalf("drop reasons = %v, want [queue_full]", reasons)
	}

	empty := NewSliceStream(context.Background(), nil, audio.CaptureSampleRate, audio.FrameSize, false)
	if err := p.Run(context.Background(), empty); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	chunks := sender.snapshot()
	if len(chunks) != 2 {
		t.Fatalf("sent %d chunks, want 2", len(chunks))
	}
	first, _ := audio.DecodePCM16(chunks[0].PCM)
	if diff := first[0] - 0.2; diff > 1.0/32768 || diff < -1.0/32768 {
		t.Fatalf("first sent sample = %v, want 0.2 (oldest dropped)", first[0])
	}
}

func TestPipelineReturnsSendError(t *testing.T) {
	sender := &collectSender{err: failure.ErrConnectivity}
	p := NewPipeline(sender, Options{})
	p.SetReady(true)

	stream := NewSliceStream(context.Background(), ramp(audio.FrameSize, 0.5), audio.CaptureSampleRate, audio.FrameSize, false)
	err := p.Run(context.Background(), stream)
	if !errors.Is(err, failure.ErrConnectivity) {
		t.Fatalf("Run() error = %v, want connectivity failure", err)
	}
}

func TestPipelineStopsOnCancel(t *testing.T) {
	p := NewPipeline(&collectSender{}, Options{})
	p.SetReady(true)
	mic := NewRemoteMicrophone(4)
	mic.SetPermission(true, audio.CaptureSampleRate)
	stream, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, stream) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
}

func TestPipelineResamplesToCaptureRate(t *testing.T) {
	sender := &collectSender{}
	p := NewPipeline(sender, Options{QueueFrames: 64})
	p.SetReady(true)

	stream := NewSliceStream(context.Background(), ramp(48000, 0.25), 48000, audio.FrameSize, false)
	if err := p.Run(context.Background(), stream); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	chunks := sender.snapshot()
	for i, c := range chunks {
		if c.SampleRate != audio.CaptureSampleRate {
			t.Fatalf("chunk %d rate = %d, want 16000", i, c.SampleRate)
		}
		if i < len(chunks)-1 && c.Samples() != audio.FrameSize {
			t.Fatalf("chunk %d samples = %d, want %d", i, c.Samples(), audio.FrameSize)
		}
	}
}
