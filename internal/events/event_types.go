package events

import (
	"time"

	"github.com/ibistek-uty/incubation-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventUserLoggedIn           EventType = "user_logged_in"
	EventUserDeleted            EventType = "user_deleted"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordChanged        EventType = "password_changed"
)

// Event represents an auth-domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string `json:"email"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	DeletedBy string `json:"deleted_by"`
}
