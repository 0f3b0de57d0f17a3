package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates the privilege levels a directory account can hold.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
	RoleGuest   Role = "GUEST"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleManager, RoleUser, RoleGuest}

// ParseRole converts a token to a Role, rejecting anything outside the set.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	switch role {
	case RoleAdmin, RoleManager, RoleUser, RoleGuest:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive              UserStatus = "ACTIVE"
	UserStatusInactive            UserStatus = "INACTIVE"
	UserStatusSuspended           UserStatus = "SUSPENDED"
	UserStatusPendingVerification UserStatus = "PENDING_VERIFICATION"
)

// Statuses lists every valid status.
var Statuses = []UserStatus{UserStatusActive, UserStatusInactive, UserStatusSuspended, UserStatusPendingVerification}

// ParseStatus converts a token to a UserStatus, rejecting anything outside the set.
func ParseStatus(value string) (UserStatus, error) {
	status := UserStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended, UserStatusPendingVerification:
		return status, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// User is the domain model for a directory account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	PhoneNumber  *string
	Role         Role
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// FullName returns the concatenation used by name search.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// CanAuthenticate reports whether the account may log in.
func (u *User) CanAuthenticate() bool {
	return u.Status != UserStatusSuspended && u.Status != UserStatusInactive
}

// UserStats is the aggregate snapshot served by the statistics operation.
type UserStats struct {
	Total            int64                `json:"total"`
	ByStatus         map[UserStatus]int64 `json:"by_status"`
	ByRole           map[Role]int64       `json:"by_role"`
	ActivePercentage float64              `json:"active_percentage"`
}
