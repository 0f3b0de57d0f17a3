package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

// Validator enforces field constraints on incoming payloads before any store
// write happens.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a validator instance.
func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks struct tags and reports every violated field at once.
func (vl *Validator) Validate(payload any) error {
	err := vl.v.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperrors.NewInternalError(err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details[fieldErr.Field()] = fmt.Sprintf("failed on the %q rule", fieldErr.Tag())
	}
	return apperrors.NewValidationError("validation failed", details)
}

// CreateUserInput carries the fields accepted by user creation. Constraints
// mirror the store schema.
type CreateUserInput struct {
	Username    string  `validate:"required,min=3,max=20"`
	Email       string  `validate:"required,email,max=50"`
	Password    string  `validate:"required,min=8,max=72"`
	FirstName   string  `validate:"required,max=50"`
	LastName    string  `validate:"required,max=50"`
	PhoneNumber *string `validate:"omitempty,max=15"`
	Role        string  `validate:"omitempty"`
}

// UpdateUserInput carries the full replacement payload for an update. Role
// and Status, when present, overwrite unconditionally; who may send them is
// the authorization matrix's concern.
type UpdateUserInput struct {
	Username    string  `validate:"required,min=3,max=20"`
	Email       string  `validate:"required,email,max=50"`
	FirstName   string  `validate:"required,max=50"`
	LastName    string  `validate:"required,max=50"`
	PhoneNumber *string `validate:"omitempty,max=15"`
	Role        string  `validate:"omitempty"`
	Status      string  `validate:"omitempty"`
}
