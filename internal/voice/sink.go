package voice

import (
	"errors"

	"github.com/antoniostano/bootcamp/internal/playback"
	"github.com/antoniostano/bootcamp/internal/protocol"
)

// ErrAudioNotDelivered is returned by the socket sink when a chunk could not
// be queued for the client.
var ErrAudioNotDelivered = errors.New("assistant audio not delivered to client")

// socketSink plays scheduled audio in the browser: starting an item sends
// the chunk with its start time, stopping it sends a stop for its seq.
// Start and Stop run under the scheduler lock. Start may wait up to the send
// timeout; stops never wait.
type socketSink struct {
	sessionID string
	send      func(msg any) bool
	trySend   func(msg any) bool
}

func (s *socketSink) Start(item playback.Item) (playback.Source, error) {
	ok := s.send(protocol.AssistantAudioChunk{
		Type:        protocol.TypeAssistantAudio,
		SessionID:   s.sessionID,
		Seq:         item.Seq,
		PCM16Base64: item.Chunk.Base64(),
		SampleRate:  item.Chunk.SampleRate,
		StartAtMS:   item.StartAt.Milliseconds(),
		DurationMS:  item.Duration.Milliseconds(),
	})
	if !ok {
		return nil, ErrAudioNotDelivered
	}
	return socketSource{sink: s, seq: item.Seq}, nil
}

type socketSource struct {
	sink *socketSink
	seq  int
}

// Stop tells the client to stop seq. If the outbound queue is full the stop
// is dropped; the client drops stale audio on the next state change anyway.
func (s socketSource) Stop() {
	s.sink.trySend(protocol.AssistantAudioStop{
		Type:      protocol.TypeAssistantAudioStop,
		SessionID: s.sink.sessionID,
		Seq:       s.seq,
	})
}
