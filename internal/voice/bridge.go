// Package voice bridges a browser websocket to a live voice session: it turns
// client messages into microphone frames and controller commands, and
// controller output into websocket messages.
package voice

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/capture"
	"github.com/antoniostano/bootcamp/internal/failure"
	"github.com/antoniostano/bootcamp/internal/live"
	"github.com/antoniostano/bootcamp/internal/memory"
	"github.com/antoniostano/bootcamp/internal/observability"
	"github.com/antoniostano/bootcamp/internal/playback"
	"github.com/antoniostano/bootcamp/internal/policy"
	"github.com/antoniostano/bootcamp/internal/protocol"
	"github.com/antoniostano/bootcamp/internal/session"
)

const (
	sendTimeout     = 250 * time.Millisecond
	micBufferFrames = 64
)

// ErrSessionEnded is reported when a client asks to go live on a session that
// has been ended or expired.
var ErrSessionEnded = errors.New("voice session has ended")

// MicFrame is a binary websocket frame of float32 microphone samples.
type MicFrame struct {
	Samples []float32
}

type Options struct {
	Live        live.Config
	QueueFrames int
	// Clock overrides the per-connection output clock; tests use a manual one.
	Clock       func() playback.Clock
	Transcripts memory.Store
}

// Bridge runs websocket connections against one live Remote.
type Bridge struct {
	remote   live.Remote
	sessions *session.Manager
	metrics  *observability.Metrics
	opts     Options

	mu    sync.Mutex
	conns map[string]*liveConn
}

// liveConn is a running connection: its controller and the cancel func that
// ends RunConnection.
type liveConn struct {
	ctrl   *live.Controller
	cancel context.CancelFunc
}

func NewBridge(remote live.Remote, sessions *session.Manager, metrics *observability.Metrics, opts Options) *Bridge {
	return &Bridge{
		remote:   remote,
		sessions: sessions,
		metrics:  metrics,
		opts:     opts,
		conns:    make(map[string]*liveConn),
	}
}

// Stats returns the controller stats for a connected session.
func (b *Bridge) Stats(sessionID string) (live.Stats, bool) {
	b.mu.Lock()
	c, ok := b.conns[sessionID]
	b.mu.Unlock()
	if !ok {
		return live.Stats{}, false
	}
	return c.ctrl.Stats(), true
}

// Stop stops the live session of a connected session, if any, and ends its
// connection so the client cannot go live again on it.
func (b *Bridge) Stop(sessionID string) {
	b.mu.Lock()
	c, ok := b.conns[sessionID]
	b.mu.Unlock()
	if ok {
		c.ctrl.Stop()
		c.cancel()
	}
}

// RunConnection serves one websocket connection until ctx ends, inbound is
// closed or Stop is called for the session. inbound carries parsed protocol
// messages and MicFrames; every message for the client goes to outbound.
func (b *Bridge) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clock := playback.Clock(playback.NewMonotonicClock())
	if b.opts.Clock != nil {
		clock = b.opts.Clock()
	}
	send := func(msg any) bool { return b.send(ctx, outbound, msg) }
	trySend := func(msg any) bool { return b.trySend(outbound, msg) }

	conn := &connection{
		bridge:     b,
		session:    s,
		clock:      clock,
		send:       send,
		mic:        capture.NewRemoteMicrophone(micBufferFrames),
		transcript: &transcriptBuffer{},
	}
	cfg := b.opts.Live
	if s.Voice != "" {
		cfg.Voice = s.Voice
	}
	ctrl := live.NewController(b.remote, conn.mic, &socketSink{sessionID: s.ID, send: send, trySend: trySend}, live.Options{
		Config:      cfg,
		QueueFrames: b.opts.QueueFrames,
		Clock:       clock,
		Metrics:     b.metrics,
		Hooks: live.Hooks{
			OnState:        conn.onState,
			OnError:        conn.onError,
			OnTranscript:   conn.onTranscript,
			OnInterrupted:  conn.onInterrupted,
			OnTurnComplete: conn.onTurnComplete,
		},
	})
	conn.ctrl = ctrl

	lc := &liveConn{ctrl: ctrl, cancel: cancel}
	b.mu.Lock()
	b.conns[s.ID] = lc
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		if b.conns[s.ID] == lc {
			delete(b.conns, s.ID)
		}
		b.mu.Unlock()
	}()

	conn.onState(ctrl.State())

	var starts sync.WaitGroup
	defer func() {
		ctrl.Stop()
		starts.Wait()
		conn.flushTranscripts(context.WithoutCancel(ctx))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			_ = b.sessions.Touch(s.ID)
			conn.handle(ctx, msg, &starts)
		}
	}
}

// send queues msg for the websocket writer, giving up after sendTimeout or
// when ctx ends.
func (b *Bridge) send(ctx context.Context, outbound chan<- any, msg any) bool {
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.SessionEvents.WithLabelValues("outbound_timeout").Inc()
		}
		return false
	}
}

// trySend queues msg only if the outbound queue has room.
func (b *Bridge) trySend(outbound chan<- any, msg any) bool {
	select {
	case outbound <- msg:
		return true
	default:
		if b.metrics != nil {
			b.metrics.SessionEvents.WithLabelValues("outbound_dropped").Inc()
		}
		return false
	}
}

type connection struct {
	bridge     *Bridge
	session    *session.Session
	clock      playback.Clock
	send       func(any) bool
	mic        *capture.RemoteMicrophone
	ctrl       *live.Controller
	transcript *transcriptBuffer
}

func (c *connection) handle(ctx context.Context, msg any, starts *sync.WaitGroup) {
	switch m := msg.(type) {
	case MicFrame:
		c.feed(m.Samples)
	case protocol.ClientAudioChunk:
		samples, err := audio.DecodeBase64(m.PCM16Base64)
		if err != nil {
			c.sendError(err)
			return
		}
		c.feed(samples)
	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionMicrophone:
			c.mic.SetPermission(m.Granted, m.SampleRate)
		case protocol.ActionStart:
			if !c.active() {
				c.sendError(ErrSessionEnded)
				return
			}
			c.async(ctx, starts, c.ctrl.Start)
		case protocol.ActionToggle:
			if st := c.ctrl.State(); st != live.StateOpen && st != live.StateConnecting && !c.active() {
				c.sendError(ErrSessionEnded)
				return
			}
			c.async(ctx, starts, c.ctrl.Toggle)
		case protocol.ActionStop:
			c.ctrl.Stop()
		case protocol.ActionPing:
			c.onState(c.ctrl.State())
		}
	}
}

// active reports whether the session may still go live.
func (c *connection) active() bool {
	s, err := c.bridge.sessions.Get(c.session.ID)
	return err == nil && s.Status == session.StatusActive
}

// async runs a blocking start so the read loop keeps serving stop and
// microphone messages while the remote connects.
func (c *connection) async(ctx context.Context, starts *sync.WaitGroup, fn func(context.Context) error) {
	starts.Add(1)
	go func() {
		defer starts.Done()
		if err := fn(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.sendError(err)
		}
	}()
}

func (c *connection) feed(samples []float32) {
	if len(samples) == 0 {
		return
	}
	if !c.mic.Feed(samples) && c.bridge.metrics != nil {
		c.bridge.metrics.ObserveCaptureDrop(capture.DropNotReady)
	}
}

func (c *connection) onState(st live.State) {
	_ = c.bridge.sessions.SetLiveState(c.session.ID, string(st))
	c.send(protocol.SessionState{
		Type:      protocol.TypeSessionState,
		SessionID: c.session.ID,
		State:     string(st),
		ClockMS:   c.clock.Now().Milliseconds(),
	})
}

func (c *connection) onError(err error) {
	log.Printf("voice session %s: %v", c.session.ID, err)
	c.sendError(err)
}

func (c *connection) sendError(err error) {
	kind := failure.KindOf(err)
	code := string(kind)
	detail := err.Error()
	switch {
	case kind != failure.KindUnknown:
	case errors.Is(err, live.ErrAlreadyActive):
		detail = "a live session is already active"
	case errors.Is(err, ErrSessionEnded):
		code = "session_ended"
	}
	if c.bridge.metrics != nil {
		c.bridge.metrics.ProviderErrors.WithLabelValues("voice", string(kind)).Inc()
	}
	c.send(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: c.session.ID,
		Code:      code,
		Source:    "live",
		Retryable: failure.Retryable(err),
		Detail:    detail,
	})
}

func (c *connection) onTranscript(t live.Transcript) {
	c.send(protocol.Transcript{
		Type:      protocol.TypeTranscript,
		SessionID: c.session.ID,
		Role:      string(t.Role),
		Text:      t.Text,
		Final:     t.Final,
	})
	if done := c.transcript.add(t); done != "" {
		c.save(context.Background(), t.Role, done)
	}
}

func (c *connection) onInterrupted(stopped []playback.Item) {
	_ = c.bridge.sessions.Interrupt(c.session.ID)
	seqs := make([]int, len(stopped))
	for i, it := range stopped {
		seqs[i] = it.Seq
	}
	c.send(protocol.PlaybackInterrupted{
		Type:      protocol.TypePlaybackInterrupted,
		SessionID: c.session.ID,
		Stopped:   seqs,
	})
	c.flushTranscripts(context.Background())
}

func (c *connection) onTurnComplete() {
	_ = c.bridge.sessions.CompleteTurn(c.session.ID)
	c.send(protocol.AssistantTurnEnd{Type: protocol.TypeAssistantTurnEnd, SessionID: c.session.ID})
	c.flushTranscripts(context.Background())
}

func (c *connection) flushTranscripts(ctx context.Context) {
	for _, role := range []live.Role{live.RoleUser, live.RoleAssistant} {
		if text := c.transcript.flush(role); text != "" {
			c.save(ctx, role, text)
		}
	}
}

func (c *connection) save(ctx context.Context, role live.Role, text string) {
	store := c.bridge.opts.Transcripts
	if store == nil || c.session.UserID == "" {
		return
	}
	content, redacted := policy.Redact(text)
	err := store.SaveTurn(ctx, memory.TurnRecord{
		UserID:      c.session.UserID,
		Channel:     memory.ChannelVoice,
		SessionID:   c.session.ID,
		Role:        string(role),
		Content:     content,
		PIIRedacted: redacted,
	})
	if err != nil {
		log.Printf("voice session %s: save transcript: %v", c.session.ID, err)
	}
}

// transcriptBuffer joins streamed transcript pieces per role until the piece
// is final or the turn ends.
type transcriptBuffer struct {
	mu    sync.Mutex
	parts map[live.Role]*strings.Builder
}

// add appends t and returns the completed text when t is final.
func (b *transcriptBuffer) add(t live.Transcript) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.parts == nil {
		b.parts = make(map[live.Role]*strings.Builder)
	}
	sb, ok := b.parts[t.Role]
	if !ok {
		sb = &strings.Builder{}
		b.parts[t.Role] = sb
	}
	sb.WriteString(t.Text)
	if !t.Final {
		return ""
	}
	delete(b.parts, t.Role)
	return strings.TrimSpace(sb.String())
}

func (b *transcriptBuffer) flush(role live.Role) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	sb, ok := b.parts[role]
	if !ok {
		return ""
	}
	delete(b.parts, role)
	return strings.TrimSpace(sb.String())
}
