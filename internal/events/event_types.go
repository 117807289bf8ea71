package events

import (
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPrincipalRegistered EventType = "principal_registered"
	EventTokenRefreshed      EventType = "token_refreshed"
	EventLoginSucceeded      EventType = "login_succeeded"
)

// Event represents a domain event emitted by services. Events never carry
// credentials or token material, only subject identity.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// PrincipalRegisteredPayload payload.
type PrincipalRegisteredPayload struct {
	PrincipalID string      `json:"principal_id"`
	Role        domain.Role `json:"role"`
}

// TokenRefreshedPayload payload.
type TokenRefreshedPayload struct {
	RotatedJTI string `json:"rotated_jti"`
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	Role domain.Role `json:"role"`
}
