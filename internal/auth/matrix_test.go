package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-directory/internal/domain"
	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

func principalWith(role domain.Role, id string) *Principal {
	return &Principal{User: &domain.User{ID: id, Username: "caller", Role: role}}
}

func TestAuthorize_RoleMatrix(t *testing.T) {
	adminManager := map[domain.Role]bool{
		domain.RoleAdmin:   true,
		domain.RoleManager: true,
		domain.RoleUser:    false,
		domain.RoleGuest:   false,
	}
	adminOnly := map[domain.Role]bool{
		domain.RoleAdmin:   true,
		domain.RoleManager: false,
		domain.RoleUser:    false,
		domain.RoleGuest:   false,
	}

	tests := []struct {
		action  Action
		allowed map[domain.Role]bool
	}{
		{ActionListUsers, adminManager},
		{ActionListAllUsers, adminOnly},
		{ActionGetUserByUsername, adminManager},
		{ActionGetUserByEmail, adminManager},
		{ActionCreateUser, adminManager},
		{ActionDeleteUser, adminOnly},
		{ActionListByRole, adminManager},
		{ActionListByStatus, adminManager},
		{ActionSearchUsers, adminManager},
		{ActionActivateUser, adminManager},
		{ActionDeactivateUser, adminManager},
		{ActionSuspendUser, adminOnly},
		{ActionChangeRole, adminOnly},
		{ActionViewStatistics, adminManager},
	}

	for _, tt := range tests {
		for role, want := range tt.allowed {
			t.Run(string(tt.action)+"/"+string(role), func(t *testing.T) {
				err := Authorize(principalWith(role, "caller-id"), tt.action, "other-id")
				if want {
					assert.NoError(t, err)
				} else {
					requireForbidden(t, err)
				}
			})
		}
	}
}

func TestAuthorize_OwnershipException(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		role    domain.Role
		target  string
		allowed bool
	}{
		{"user gets own record", ActionGetUser, domain.RoleUser, "self-id", true},
		{"guest gets own record", ActionGetUser, domain.RoleGuest, "self-id", true},
		{"user gets other record", ActionGetUser, domain.RoleUser, "other-id", false},
		{"user updates own record", ActionUpdateUser, domain.RoleUser, "self-id", true},
		{"user updates other record", ActionUpdateUser, domain.RoleUser, "other-id", false},
		{"user deletes own record", ActionDeleteUser, domain.RoleUser, "self-id", false},
		{"user deletes other record", ActionDeleteUser, domain.RoleUser, "other-id", false},
		{"manager gets other record", ActionGetUser, domain.RoleManager, "other-id", true},
		{"ownership needs a target", ActionGetUser, domain.RoleUser, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(principalWith(tt.role, "self-id"), tt.action, tt.target)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				requireForbidden(t, err)
			}
		})
	}
}

func TestAuthorize_FailsClosed(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		err := Authorize(nil, ActionListUsers, "")
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, http.StatusUnauthorized, domainErr.HTTPStatus)
	})

	t.Run("unknown action", func(t *testing.T) {
		err := Authorize(principalWith(domain.RoleAdmin, "x"), Action("users.unknown"), "")
		requireForbidden(t, err)
	})
}

func requireForbidden(t *testing.T, err error) {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, http.StatusForbidden, domainErr.HTTPStatus)
}
