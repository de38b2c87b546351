package session

import "time"

// CreateRequest defines payload for creating a voice session.
type CreateRequest struct {
	UserID string `json:"user_id"`
	Voice  string `json:"voice"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Status          Status    `json:"status"`
	Voice           string    `json:"voice"`
	ReplacedSession string    `json:"replaced_session_id,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
