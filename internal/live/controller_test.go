package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/capture"
	"github.com/antoniostano/bootcamp/internal/failure"
	"github.com/antoniostano/bootcamp/internal/playback"
)

type fakeRemote struct {
	mu       sync.Mutex
	connects int
	err      error
	block    bool
	streams  []*fakeStream
}

func (r *fakeRemote) Connect(ctx context.Context, _ Config) (Stream, error) {
	r.mu.Lock()
	r.connects++
	err, block := r.err, r.block
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	s := &fakeStream{events: make(chan Event, 16), errs: make(chan error, 1), done: make(chan struct{})}
	r.mu.Lock()
	r.streams = append(r.streams, s)
	r.mu.Unlock()
	return s, nil
}

func (r *fakeRemote) stream(i int) *fakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[i]
}

func (r *fakeRemote) connectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

type fakeStream struct {
	mu     sync.Mutex
	sent   []audio.Chunk
	closed bool
	events chan Event
	errs   chan error
	done   chan struct{}
}

func (s *fakeStream) SendAudio(_ context.Context, c audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return nil
}

func (s *fakeStream) Receive(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return Event{}, err
	case <-s.done:
		return Event{}, io.EOF
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type sinkRecorder struct {
	mu      sync.Mutex
	started []playback.Item
	stopped []int
}

func (s *sinkRecorder) Start(item playback.Item) (playback.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, item)
	return sourceFunc(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped = append(s.stopped, item.Seq)
	}), nil
}

func (s *sinkRecorder) snapshot() ([]playback.Item, []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]playback.Item(nil), s.started...), append([]int(nil), s.stopped...)
}

type sourceFunc func()

func (f sourceFunc) Stop() { f() }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func grantedMic() *capture.RemoteMicrophone {
	mic := capture.NewRemoteMicrophone(8)
	mic.SetPermission(true, audio.CaptureSampleRate)
	return mic
}

func TestControllerStreamsCaptureAndSchedulesPlayback(t *testing.T) {
	remote := &fakeRemote{}
	mic := grantedMic()
	sink := &sinkRecorder{}
	c := NewController(remote, mic, sink, Options{Clock: playback.NewManualClock()})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()
	if c.State() != StateOpen {
		t.Fatalf("State() = %q, want open", c.State())
	}

	for i := 0; i < 3; i++ {
		if !mic.Feed(make([]float32, audio.FrameSize)) {
			t.Fatalf("Feed(%d) = false", i)
		}
	}
	stream := remote.stream(0)
	waitFor(t, "3 chunks sent", func() bool { return stream.sentCount() == 3 })
	for i, ch := range stream.sent {
		if len(ch.PCM) != audio.FrameSize*2 {
			t.Fatalf("chunk %d len = %d, want %d", i, len(ch.PCM), audio.FrameSize*2)
		}
	}

	tone := audio.NewChunk(make([]float32, audio.PlaybackSampleRate/10), audio.PlaybackSampleRate)
	stream.events <- Event{Audio: &tone}
	stream.events <- Event{Audio: &tone}
	waitFor(t, "2 chunks scheduled", func() bool { started, _ := sink.snapshot(); return len(started) == 2 })

	started, _ := sink.snapshot()
	if started[0].StartAt != 0 || started[1].StartAt != 100*time.Millisecond {
		t.Fatalf("StartAt = %v, %v, want 0s, 100ms", started[0].StartAt, started[1].StartAt)
	}
}

func TestControllerInterruptionStopsPlayback(t *testing.T) {
	remote := &fakeRemote{}
	sink := &sinkRecorder{}
	var (
		mu          sync.Mutex
		interrupted []playback.Item
	)
	c := NewController(remote, grantedMic(), sink, Options{
		Clock: playback.NewManualClock(),
		Hooks: Hooks{OnInterrupted: func(stopped []playback.Item) {
			mu.Lock()
			defer mu.Unlock()
			interrupted = append(interrupted, stopped...)
		}},
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	stream := remote.stream(0)
	tone := audio.NewChunk(make([]float32, 2400), audio.PlaybackSampleRate)
	stream.events <- Event{Audio: &tone}
	stream.events <- Event{Audio: &tone}
	stream.events <- Event{Interrupted: true}

	waitFor(t, "interruption", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(interrupted) == 2
	})
	_, stopped := sink.snapshot()
	if len(stopped) != 2 {
		t.Fatalf("stopped = %v, want both sources", stopped)
	}
	if st := c.Stats(); st.Playback.Interruptions != 1 || st.Playback.Stopped != 2 {
		t.Fatalf("Playback stats = %+v, want 1 interruption, 2 stopped", st.Playback)
	}
}

func TestControllerRejectsConcurrentStartAndToggles(t *testing.T) {
	remote := &fakeRemote{}
	c := NewController(remote, grantedMic(), &sinkRecorder{}, Options{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyActive", err)
	}
	if remote.connectCount() != 1 {
		t.Fatalf("connects = %d, want 1", remote.connectCount())
	}

	if err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("State() after toggle = %q, want idle", c.State())
	}
	if !remote.stream(0).isClosed() {
		t.Fatalf("stream not closed after toggle-to-stop")
	}

	if err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if c.State() != StateOpen || remote.connectCount() != 2 {
		t.Fatalf("state = %q connects = %d, want open with a fresh handle", c.State(), remote.connectCount())
	}
	c.Stop()
}

func TestControllerPermissionDenied(t *testing.T) {
	remote := &fakeRemote{}
	mic := capture.NewRemoteMicrophone(1)
	mic.SetPermission(false, 0)
	c := NewController(remote, mic, &sinkRecorder{}, Options{})

	err := c.Start(context.Background())
	if !errors.Is(err, failure.ErrPermissionDenied) {
		t.Fatalf("Start() error = %v, want permission denied", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("State() = %q, want idle", c.State())
	}
	if remote.connectCount() != 0 {
		t.Fatalf("connects = %d, want 0", remote.connectCount())
	}
}

func TestControllerMissingCredential(t *testing.T) {
	mic := grantedMic()
	c := NewController(NewGeminiRemote(""), mic, &sinkRecorder{}, Options{})

	err := c.Start(context.Background())
	if !errors.Is(err, failure.ErrConfigurationMissing) {
		t.Fatalf("Start() error = %v, want configuration missing", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("State() = %q, want idle", c.State())
	}
	if mic.Feed([]float32{0}) {
		t.Fatalf("microphone stream still open after failed start")
	}
}

func TestControllerRemoteErrorTearsDownBeforeReporting(t *testing.T) {
	remote := &fakeRemote{}
	mic := grantedMic()
	reported := make(chan bool, 1)
	var c *Controller
	c = NewController(remote, mic, &sinkRecorder{}, Options{
		Hooks: Hooks{OnError: func(err error) {
			reported <- errors.Is(err, failure.ErrServerError) &&
				remote.stream(0).isClosed() &&
				!mic.Feed([]float32{0}) &&
				c.State() == StateClosed
		}},
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	remote.stream(0).errs <- failure.Newf(failure.KindServerError, "live receive", "upstream 1011")
	select {
	case ok := <-reported:
		if !ok {
			t.Fatalf("error reported before teardown completed")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnError not called")
	}
}

func TestControllerRemoteCloseThenRestart(t *testing.T) {
	remote := &fakeRemote{}
	c := NewController(remote, grantedMic(), &sinkRecorder{}, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_ = remote.stream(0).Close()
	waitFor(t, "closed state", func() bool { return c.State() == StateClosed })

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() after close error = %v", err)
	}
	if c.State() != StateOpen || remote.connectCount() != 2 {
		t.Fatalf("state = %q connects = %d, want open with 2 connects", c.State(), remote.connectCount())
	}
	c.Stop()
}

func TestControllerStopWhileConnecting(t *testing.T) {
	remote := &fakeRemote{block: true}
	c := NewController(remote, grantedMic(), &sinkRecorder{}, Options{})

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()
	waitFor(t, "connecting", func() bool { return remote.connectCount() == 1 })

	c.Stop()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("Start() error = nil, want cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Start() did not return after Stop")
	}
	if c.State() != StateIdle {
		t.Fatalf("State() = %q, want idle", c.State())
	}
}
