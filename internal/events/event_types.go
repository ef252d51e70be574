package events

import (
	"time"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserLoggedIn   EventType = "user_logged_in"
	EventUserBlocked    EventType = "user_blocked"
	EventTokenRevoked   EventType = "token_revoked"
)

// Actor identifies who caused an event. It is empty for anonymous actions.
type Actor struct {
	UserID string          `json:"user_id,omitempty"`
	Role   domain.UserRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TokenRevokedPayload payload. The raw token is never carried.
type TokenRevokedPayload struct {
	TokenID string        `json:"token_id"`
	TTL     time.Duration `json:"ttl"`
	Reason  string        `json:"reason"`
}

// UserBlockedPayload payload.
type UserBlockedPayload struct {
	SelfBlock bool `json:"self_block"`
}
