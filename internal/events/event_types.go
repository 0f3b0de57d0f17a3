package events

import (
	"time"

	"github.com/spec-kit/user-directory/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserCreated       EventType = "user_created"
	EventUserUpdated       EventType = "user_updated"
	EventUserDeleted       EventType = "user_deleted"
	EventUserStatusChanged EventType = "user_status_changed"
	EventUserRoleChanged   EventType = "user_role_changed"
	EventUserLogin         EventType = "user_login"
)

// Event represents a lifecycle event emitted by the user service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	Username string            `json:"username"`
	Role     domain.Role       `json:"role"`
	Status   domain.UserStatus `json:"status"`
}

// UserStatusChangedPayload payload.
type UserStatusChangedPayload struct {
	OldStatus domain.UserStatus `json:"old_status"`
	NewStatus domain.UserStatus `json:"new_status"`
}

// UserRoleChangedPayload payload.
type UserRoleChangedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	Username string `json:"username"`
}
