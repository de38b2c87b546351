// Package protocol defines the JSON messages exchanged with the browser over
// the voice websocket. Microphone audio may also arrive as binary frames of
// little-endian float32 samples.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudioChunk    MessageType = "client_audio_chunk"
	TypeClientControl       MessageType = "client_control"
	TypeSessionState        MessageType = "session_state"
	TypeAssistantAudio      MessageType = "assistant_audio_chunk"
	TypeAssistantAudioStop  MessageType = "assistant_audio_stop"
	TypePlaybackInterrupted MessageType = "playback_interrupted"
	TypeTranscript          MessageType = "transcript"
	TypeAssistantTurnEnd    MessageType = "assistant_turn_end"
	TypeErrorEvent          MessageType = "error_event"
)

// Client control actions.
const (
	ActionStart      = "start"
	ActionStop       = "stop"
	ActionToggle     = "toggle"
	ActionMicrophone = "microphone"
	ActionPing       = "ping"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientAudioChunk carries 16-bit PCM captured by the browser.
type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Reason    string      `json:"reason,omitempty"`
	TSMs      int64       `json:"ts_ms,omitempty"`
	// Granted and SampleRate accompany the microphone action.
	Granted    bool `json:"granted,omitempty"`
	SampleRate int  `json:"sample_rate,omitempty"`
}

// SessionState reports a controller state change. ClockMS is the session
// output clock at send time; start_at_ms values are on the same clock.
type SessionState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
	ClockMS   int64       `json:"clock_ms"`
	Detail    string      `json:"detail,omitempty"`
}

// AssistantAudioChunk tells the browser to play PCM at StartAtMS on the
// session's output clock.
type AssistantAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	StartAtMS   int64       `json:"start_at_ms"`
	DurationMS  int64       `json:"duration_ms"`
}

type AssistantAudioStop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Seq       int         `json:"seq"`
}

type PlaybackInterrupted struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Stopped   []int       `json:"stopped_seqs"`
}

type Transcript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Role      string      `json:"role"`
	Text      string      `json:"text"`
	Final     bool        `json:"final"`
}

type AssistantTurnEnd struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionStart, ActionStop, ActionToggle, ActionPing:
		case ActionMicrophone:
			if msg.Granted && msg.SampleRate <= 0 {
				return nil, errors.New("invalid client_control: microphone needs sample_rate")
			}
		default:
			return nil, fmt.Errorf("invalid client_control: unknown action %q", msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
