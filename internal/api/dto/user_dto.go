package dto

import (
	"time"

	"github.com/spec-kit/user-directory/internal/domain"
)

// CreateUserRequest payload for new accounts.
type CreateUserRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Role        string  `json:"role"`
}

// UpdateUserRequest payload replacing an account's mutable fields.
type UpdateUserRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Role        string  `json:"role"`
	Status      string  `json:"status"`
}

// UserResponse is the public view of an account. The password hash never
// leaves the service.
type UserResponse struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	PhoneNumber *string           `json:"phone_number"`
	Role        domain.Role       `json:"role"`
	Status      domain.UserStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	LastLogin   *time.Time        `json:"last_login"`
}

// PageResponse wraps one page of users with totals.
type PageResponse struct {
	Items         []UserResponse `json:"items"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int64          `json:"total_elements"`
	TotalPages    int64          `json:"total_pages"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordResetRequest payload.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirm payload.
type PasswordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
