// Package capture turns microphone frames into PCM16 chunks and forwards them,
// in capture order, to the active remote session.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/failure"
)

// FrameStream delivers mono float frames until it is closed or the source
// runs out.
type FrameStream interface {
	Frames() <-chan []float32
	SampleRate() int
	Close() error
}

// Microphone grants access to a frame stream. Open returns a
// failure.KindPermissionDenied error when access is refused.
type Microphone interface {
	Open(ctx context.Context) (FrameStream, error)
}

// RemoteMicrophone is fed by a browser over the voice websocket. The browser
// reports its permission outcome and sample rate; binary frames are pushed
// with Feed.
type RemoteMicrophone struct {
	mu         sync.Mutex
	granted    bool
	reported   bool
	sampleRate int
	buffer     int
	current    *channelStream
}

func NewRemoteMicrophone(buffer int) *RemoteMicrophone {
	if buffer <= 0 {
		buffer = 32
	}
	return &RemoteMicrophone{buffer: buffer, sampleRate: audio.CaptureSampleRate}
}

// SetPermission records the browser's getUserMedia outcome.
func (m *RemoteMicrophone) SetPermission(granted bool, sampleRate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reported = true
	m.granted = granted
	if sampleRate > 0 {
		m.sampleRate = sampleRate
	}
}

func (m *RemoteMicrophone) Open(_ context.Context) (FrameStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reported {
		return nil, failure.Newf(failure.KindPermissionDenied, "open microphone", "client has not reported microphone access")
	}
	if !m.granted {
		return nil, failure.Newf(failure.KindPermissionDenied, "open microphone", "microphone access denied by client")
	}
	if m.current != nil {
		m.current.closeLocked()
	}
	s := &channelStream{mic: m, frames: make(chan []float32, m.buffer), rate: m.sampleRate}
	m.current = s
	return s, nil
}

// Feed hands a captured frame to the open stream. It reports false when no
// stream is open or the stream buffer is full.
func (m *RemoteMicrophone) Feed(frame []float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return false
	}
	select {
	case m.current.frames <- frame:
		return true
	default:
		return false
	}
}

type channelStream struct {
	mic    *RemoteMicrophone
	frames chan []float32
	rate   int
	closed bool
}

func (s *channelStream) Frames() <-chan []float32 { return s.frames }
func (s *channelStream) SampleRate() int          { return s.rate }

func (s *channelStream) Close() error {
	s.mic.mu.Lock()
	defer s.mic.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *channelStream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
	if s.mic.current == s {
		s.mic.current = nil
	}
}

// FileMicrophone replays a 16-bit WAV file as microphone input. With Realtime
// set, frames are paced at their natural duration.
type FileMicrophone struct {
	Path      string
	FrameSize int
	Realtime  bool
}

func (m FileMicrophone) Open(ctx context.Context) (FrameStream, error) {
	wav, err := audio.ReadWAVPCM16File(m.Path)
	if err != nil {
		return nil, failure.New(failure.KindPermissionDenied, "open microphone", err)
	}
	return NewSliceStream(ctx, wav.Samples, wav.SampleRate, m.FrameSize, m.Realtime), nil
}

type sliceStream struct {
	frames chan []float32
	rate   int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSliceStream emits samples as frames of frameSize from a goroutine.
func NewSliceStream(ctx context.Context, samples []float32, sampleRate, frameSize int, realtime bool) FrameStream {
	if frameSize <= 0 {
		frameSize = audio.FrameSize
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &sliceStream{
		frames: make(chan []float32),
		rate:   sampleRate,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	frameDur := time.Duration(frameSize) * time.Second / time.Duration(sampleRate)

	go func() {
		defer close(s.done)
		defer close(s.frames)
		for off := 0; off < len(samples); off += frameSize {
			end := off + frameSize
			if end > len(samples) {
				end = len(samples)
			}
			select {
			case s.frames <- samples[off:end]:
			case <-ctx.Done():
				return
			}
			if realtime {
				select {
				case <-time.After(frameDur):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return s
}

func (s *sliceStream) Frames() <-chan []float32 { return s.frames }
func (s *sliceStream) SampleRate() int          { return s.rate }

func (s *sliceStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}
