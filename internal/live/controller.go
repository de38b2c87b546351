package live

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/capture"
	"github.com/antoniostano/bootcamp/internal/observability"
	"github.com/antoniostano/bootcamp/internal/playback"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

var (
	ErrAlreadyActive = errors.New("live session already active")
	ErrNotOpen       = errors.New("live session not open")
)

// Hooks receive controller notifications. They run on controller goroutines
// and must not call Start or Stop synchronously.
type Hooks struct {
	OnState        func(State)
	OnError        func(error)
	OnTranscript   func(Transcript)
	OnInterrupted  func(stopped []playback.Item)
	OnTurnComplete func()
}

type Options struct {
	Config      Config
	QueueFrames int
	Clock       playback.Clock
	Metrics     *observability.Metrics
	Hooks       Hooks
}

type Stats struct {
	State    State          `json:"state"`
	Capture  capture.Stats  `json:"capture"`
	Playback playback.Stats `json:"playback"`
}

// Controller owns at most one live handle at a time and drives it through
// Idle -> Connecting -> Open -> Closed.
type Controller struct {
	remote Remote
	mic    capture.Microphone
	sink   playback.Sink
	clock  playback.Clock
	opts   Options

	mu     sync.Mutex
	state  State
	handle *handle
	last   *handle
}

func NewController(remote Remote, mic capture.Microphone, sink playback.Sink, opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = playback.NewMonotonicClock()
	}
	opts.Config = opts.Config.withDefaults()
	return &Controller{
		remote: remote,
		mic:    mic,
		sink:   sink,
		clock:  clock,
		opts:   opts,
		state:  StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the microphone and the remote stream. It fails with
// ErrAlreadyActive while a handle is connecting or open. Any failure tears
// the handle down, returns the controller to Idle and is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	h := c.newHandle(ctx)
	c.handle = h
	c.last = h
	c.state = StateConnecting
	c.mu.Unlock()

	c.event("start")
	c.emitState(StateConnecting)

	stop := context.AfterFunc(ctx, h.cancel)
	defer stop()

	if err := c.connect(h); err != nil {
		c.event("start_failed")
		c.finish(h, StateIdle, nil)
		return err
	}
	return nil
}

// Stop tears down the active handle and returns to Idle. It is a no-op when
// nothing is active.
func (c *Controller) Stop() {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return
	}
	c.event("stop")
	c.finish(h, StateIdle, nil)
}

// Toggle stops an active session or starts a new one.
func (c *Controller) Toggle(ctx context.Context) error {
	switch c.State() {
	case StateConnecting, StateOpen:
		c.Stop()
		return nil
	default:
		return c.Start(ctx)
	}
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	st := Stats{State: c.state}
	h := c.last
	c.mu.Unlock()
	if h != nil {
		st.Capture = h.pipeline.Stats()
		st.Playback = h.scheduler.Stats()
	}
	return st
}

func (c *Controller) newHandle(parent context.Context) *handle {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	h := &handle{
		ctx:       ctx,
		cancel:    cancel,
		scheduler: playback.NewScheduler(c.clock, c.sink),
	}
	m := c.opts.Metrics
	h.pipeline = capture.NewPipeline(capture.SenderFunc(h.send), capture.Options{
		QueueFrames: c.opts.QueueFrames,
		OnDrop: func(reason string) {
			if m != nil {
				m.ObserveCaptureDrop(reason)
			}
		},
		OnSent: func(audio.Chunk) {
			if m != nil {
				m.CaptureChunks.Inc()
			}
		},
	})
	return h
}

func (c *Controller) connect(h *handle) error {
	micStream, err := c.mic.Open(h.ctx)
	if err != nil {
		return err
	}
	if !h.setMic(micStream) {
		_ = micStream.Close()
		return context.Canceled
	}
	go func() {
		if err := h.pipeline.Run(h.ctx, micStream); err != nil {
			log.Printf("live capture: %v", err)
			c.finish(h, StateClosed, err)
		}
	}()

	began := time.Now()
	stream, err := c.remote.Connect(h.ctx, c.opts.Config)
	if err != nil {
		return err
	}
	if err := h.ctx.Err(); err != nil || !h.setStream(stream) {
		_ = stream.Close()
		return context.Canceled
	}

	c.mu.Lock()
	if c.handle != h {
		c.mu.Unlock()
		return context.Canceled
	}
	c.state = StateOpen
	h.counted = true
	if m := c.opts.Metrics; m != nil {
		m.ActiveSessions.Inc()
	}
	c.mu.Unlock()

	h.openedAt = time.Now()
	if m := c.opts.Metrics; m != nil {
		m.ObserveConnectLatency(h.openedAt.Sub(began))
	}
	h.pipeline.SetReady(true)
	c.event("open")
	c.emitState(StateOpen)
	go c.receive(h)
	return nil
}

func (c *Controller) receive(h *handle) {
	for {
		ev, err := h.stream.Receive(h.ctx)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				c.event("remote_close")
				c.finish(h, StateClosed, nil)
				return
			}
			log.Printf("live receive: %v", err)
			c.event("remote_error")
			c.finish(h, StateClosed, err)
			return
		}
		c.apply(h, ev)
	}
}

func (c *Controller) apply(h *handle, ev Event) {
	hooks := c.opts.Hooks
	m := c.opts.Metrics
	switch {
	case ev.Interrupted:
		stopped := h.scheduler.Interrupt()
		if m != nil {
			m.ObserveInterruption()
		}
		if hooks.OnInterrupted != nil {
			hooks.OnInterrupted(stopped)
		}
	case ev.Audio != nil:
		if _, err := h.scheduler.Schedule(*ev.Audio); err != nil {
			if !errors.Is(err, playback.ErrClosed) {
				log.Printf("live playback: %v", err)
			}
			return
		}
		if m != nil {
			m.PlaybackChunks.Inc()
			if !h.heardFirstAudio {
				m.ObserveFirstAudioLatency(time.Since(h.openedAt))
			}
		}
		h.heardFirstAudio = true
	case ev.Transcript != nil:
		if hooks.OnTranscript != nil {
			hooks.OnTranscript(*ev.Transcript)
		}
	case ev.TurnComplete:
		if hooks.OnTurnComplete != nil {
			hooks.OnTurnComplete()
		}
	}
}

// finish tears h down and, if h is still the active handle, moves the
// controller to state. cause is reported through OnError after teardown.
func (c *Controller) finish(h *handle, state State, cause error) {
	h.teardown()

	c.mu.Lock()
	current := c.handle == h
	if current {
		c.handle = nil
		c.state = state
		if m := c.opts.Metrics; m != nil && h.counted {
			m.ActiveSessions.Dec()
		}
	}
	c.mu.Unlock()
	if !current {
		return
	}

	c.emitState(state)
	if cause != nil && c.opts.Hooks.OnError != nil {
		c.opts.Hooks.OnError(cause)
	}
}

func (c *Controller) emitState(s State) {
	if c.opts.Hooks.OnState != nil {
		c.opts.Hooks.OnState(s)
	}
}

func (c *Controller) event(name string) {
	if m := c.opts.Metrics; m != nil {
		m.SessionEvents.WithLabelValues(name).Inc()
	}
}

// handle is one connect attempt and everything it owns.
type handle struct {
	ctx       context.Context
	cancel    context.CancelFunc
	pipeline  *capture.Pipeline
	scheduler *playback.Scheduler

	// counted is guarded by Controller.mu.
	counted bool

	mu     sync.Mutex
	torn   bool
	mic    capture.FrameStream
	stream Stream

	openedAt        time.Time
	heardFirstAudio bool
	once            sync.Once
}

func (h *handle) setMic(s capture.FrameStream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.torn {
		return false
	}
	h.mic = s
	return true
}

func (h *handle) setStream(s Stream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.torn {
		return false
	}
	h.stream = s
	return true
}

func (h *handle) send(ctx context.Context, chunk audio.Chunk) error {
	h.mu.Lock()
	stream := h.stream
	h.mu.Unlock()
	if stream == nil {
		return ErrNotOpen
	}
	return stream.SendAudio(ctx, chunk)
}

// teardown stops capture, clears playback and closes the remote stream, in
// that order. It runs once.
func (h *handle) teardown() {
	h.once.Do(func() {
		h.mu.Lock()
		h.torn = true
		mic, stream := h.mic, h.stream
		h.mu.Unlock()

		h.cancel()
		h.pipeline.SetReady(false)
		if mic != nil {
			_ = mic.Close()
		}
		h.scheduler.Close()
		if stream != nil {
			_ = stream.Close()
		}
	})
}
