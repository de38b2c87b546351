// Package live runs a bidirectional voice session against a remote streaming
// model: microphone chunks go up, assistant audio comes down and is scheduled
// for gapless playback.
package live

import (
	"context"

	"github.com/antoniostano/bootcamp/internal/audio"
)

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice = "Zephyr"

	DefaultSystemInstruction = "You are the Elite Accountancy Consultant on a live call. Precise, expert, and professional. Keep spoken answers short and clear."
)

// Config is sent to the remote when a session is opened.
type Config struct {
	Model             string
	Voice             string
	SystemInstruction string
	Temperature       float32
	Transcribe        bool
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.SystemInstruction == "" {
		c.SystemInstruction = DefaultSystemInstruction
	}
	return c
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Transcript struct {
	Role  Role
	Text  string
	Final bool
}

// Event is one inbound message from the remote. Exactly one of Audio,
// Interrupted, TurnComplete or Transcript is set.
type Event struct {
	Audio        *audio.Chunk
	Interrupted  bool
	TurnComplete bool
	Transcript   *Transcript
}

// Stream is an open remote session. Receive returns io.EOF when the remote
// ends the session cleanly.
type Stream interface {
	SendAudio(ctx context.Context, chunk audio.Chunk) error
	Receive(ctx context.Context) (Event, error)
	Close() error
}

// Remote opens streams. Implementations must fail with
// failure.KindConfigurationMissing before any network call when no
// credential is configured.
type Remote interface {
	Connect(ctx context.Context, cfg Config) (Stream, error)
}
