// Package memory keeps chat transcripts for the tutor widgets and the voice
// bridge.
package memory

import (
	"context"
	"time"
)

// Channels a turn can belong to.
const (
	ChannelConsultant = "consultant"
	ChannelSidekick   = "sidekick"
	ChannelVoice      = "voice"
)

// TurnRecord stores a single user or assistant turn.
type TurnRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Channel     string    `json:"channel"`
	SessionID   string    `json:"session_id,omitempty"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves transcripts.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	// Recent returns up to limit turns of userID in chronological order. An
	// empty channel matches every channel.
	Recent(ctx context.Context, userID, channel string, limit int) ([]TurnRecord, error)
	// DeleteUser forgets every turn of userID and reports how many were removed.
	DeleteUser(ctx context.Context, userID string) (int, error)
	Close() error
}
