package capture

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/antoniostano/bootcamp/internal/audio"
)

const (
	DropNotReady  = "not_ready"
	DropQueueFull = "queue_full"

	DefaultQueueFrames = 8
)

// Sender forwards a chunk to the remote session.
type Sender interface {
	SendAudio(ctx context.Context, chunk audio.Chunk) error
}

type SenderFunc func(ctx context.Context, chunk audio.Chunk) error

func (f SenderFunc) SendAudio(ctx context.Context, chunk audio.Chunk) error { return f(ctx, chunk) }

type Stats struct {
	Captured         int64 `json:"captured"`
	Sent             int64 `json:"sent"`
	DroppedNotReady  int64 `json:"dropped_not_ready"`
	DroppedQueueFull int64 `json:"dropped_queue_full"`
}

type Options struct {
	// QueueFrames bounds the chunks waiting for the sender. When full the
	// oldest chunk is dropped.
	QueueFrames int
	FrameSize   int
	OnDrop      func(reason string)
	OnSent      func(chunk audio.Chunk)
}

// Pipeline queues captured chunks and forwards them from a single sender
// goroutine. Chunks captured while the pipeline is not ready are dropped.
type Pipeline struct {
	sender Sender
	opts   Options

	mu        sync.Mutex
	queue     []audio.Chunk
	ready     bool
	inputDone bool
	stats     Stats
	wake      chan struct{}
}

func NewPipeline(sender Sender, opts Options) *Pipeline {
	if opts.QueueFrames <= 0 {
		opts.QueueFrames = DefaultQueueFrames
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = audio.FrameSize
	}
	return &Pipeline{
		sender: sender,
		opts:   opts,
		wake:   make(chan struct{}, 1),
	}
}

// SetReady opens or closes the gate to the remote session.
func (p *Pipeline) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = ready
	if !ready {
		p.queue = p.queue[:0]
	}
}

// Push enqueues one chunk according to the drop policy.
func (p *Pipeline) Push(c audio.Chunk) {
	p.mu.Lock()
	p.stats.Captured++
	if !p.ready {
		p.stats.DroppedNotReady++
		p.mu.Unlock()
		p.dropped(DropNotReady)
		return
	}
	full := len(p.queue) >= p.opts.QueueFrames
	if full {
		p.queue[0] = audio.Chunk{}
		p.queue = p.queue[1:]
		p.stats.DroppedQueueFull++
	}
	p.queue = append(p.queue, c)
	p.mu.Unlock()

	if full {
		p.dropped(DropQueueFull)
	}
	p.signal()
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run reads stream until it ends or ctx is cancelled. Queued chunks are
// flushed to the sender when the stream ends on its own. Run returns the
// first send error.
func (p *Pipeline) Run(ctx context.Context, stream FrameStream) error {
	f, err := newFramer(stream.SampleRate(), p.opts.FrameSize)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.inputDone = false
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sendErr := make(chan error, 1)
	go func() { sendErr <- p.sendLoop(ctx) }()

	frames := stream.Frames()
	for frames != nil {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			chunks, err := f.push(frame)
			if err != nil {
				cancel()
				<-sendErr
				return err
			}
			for _, c := range chunks {
				p.Push(c)
			}
		case err := <-sendErr:
			return err
		case <-ctx.Done():
			return <-sendErr
		}
	}

	tail, err := f.flush()
	if err != nil {
		log.Printf("capture: %v", err)
	}
	for _, c := range tail {
		p.Push(c)
	}
	p.mu.Lock()
	p.inputDone = true
	p.mu.Unlock()
	p.signal()
	return <-sendErr
}

func (p *Pipeline) sendLoop(ctx context.Context) error {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			done := p.inputDone
			p.mu.Unlock()
			if done {
				return nil
			}
			select {
			case <-p.wake:
				continue
			case <-ctx.Done():
				return nil
			}
		}
		c := p.queue[0]
		p.queue[0] = audio.Chunk{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if err := p.sender.SendAudio(ctx, c); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send audio chunk: %w", err)
		}
		p.mu.Lock()
		p.stats.Sent++
		p.mu.Unlock()
		if p.opts.OnSent != nil {
			p.opts.OnSent(c)
		}
	}
}

func (p *Pipeline) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pipeline) dropped(reason string) {
	if p.opts.OnDrop != nil {
		p.opts.OnDrop(reason)
	}
}
