package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

func TestValidator_CreateUserInput(t *testing.T) {
	longPhone := "+1234567890123456"

	tests := []struct {
		name       string
		mutate     func(*CreateUserInput)
		wantFields []string
	}{
		{
			name:   "valid payload",
			mutate: func(in *CreateUserInput) {},
		},
		{
			name:       "username too short",
			mutate:     func(in *CreateUserInput) { in.Username = "ab" },
			wantFields: []string{"Username"},
		},
		{
			name:       "username too long",
			mutate:     func(in *CreateUserInput) { in.Username = strings.Repeat("a", 21) },
			wantFields: []string{"Username"},
		},
		{
			name:       "email malformed",
			mutate:     func(in *CreateUserInput) { in.Email = "nope" },
			wantFields: []string{"Email"},
		},
		{
			name:       "email too long",
			mutate:     func(in *CreateUserInput) { in.Email = strings.Repeat("a", 45) + "@example.com" },
			wantFields: []string{"Email"},
		},
		{
			name:       "password too short",
			mutate:     func(in *CreateUserInput) { in.Password = "short" },
			wantFields: []string{"Password"},
		},
		{
			name:       "first name missing",
			mutate:     func(in *CreateUserInput) { in.FirstName = "" },
			wantFields: []string{"FirstName"},
		},
		{
			name:       "last name too long",
			mutate:     func(in *CreateUserInput) { in.LastName = strings.Repeat("x", 51) },
			wantFields: []string{"LastName"},
		},
		{
			name:       "phone too long",
			mutate:     func(in *CreateUserInput) { in.PhoneNumber = &longPhone },
			wantFields: []string{"PhoneNumber"},
		},
		{
			name: "multiple violations reported together",
			mutate: func(in *CreateUserInput) {
				in.Username = ""
				in.Email = "nope"
				in.Password = ""
			},
			wantFields: []string{"Username", "Email", "Password"},
		},
	}

	vl := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := CreateUserInput{
				Username:  "johndoe",
				Email:     "john@example.com",
				Password:  "s3cret-pass",
				FirstName: "John",
				LastName:  "Doe",
			}
			tt.mutate(&input)

			err := vl.Validate(input)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				return
			}

			var domainErr *apperrors.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
			assert.Len(t, domainErr.Details, len(tt.wantFields))
			for _, field := range tt.wantFields {
				assert.Contains(t, domainErr.Details, field)
			}
		})
	}
}

func TestValidator_UpdateUserInputOptionalFields(t *testing.T) {
	vl := NewValidator()

	// role, status and phone may all be absent
	err := vl.Validate(UpdateUserInput{
		Username:  "johndoe",
		Email:     "john@example.com",
		FirstName: "John",
		LastName:  "Doe",
	})
	require.NoError(t, err)

	err = vl.Validate(UpdateUserInput{
		Email:     "john@example.com",
		FirstName: "John",
		LastName:  "Doe",
	})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Details, "Username")
}
