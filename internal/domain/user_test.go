package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("manager")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, role)

	role, err = ParseRole(" ADMIN ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("SUPERUSER")
	assert.Error(t, err)

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("pending_verification")
	require.NoError(t, err)
	assert.Equal(t, UserStatusPendingVerification, status)

	_, err = ParseStatus("DELETED")
	assert.Error(t, err)
}

func TestUserFullName(t *testing.T) {
	user := User{FirstName: "John", LastName: "Doe"}
	assert.Equal(t, "John Doe", user.FullName())
}

func TestCanAuthenticate(t *testing.T) {
	assert.True(t, (&User{Status: UserStatusActive}).CanAuthenticate())
	assert.True(t, (&User{Status: UserStatusPendingVerification}).CanAuthenticate())
	assert.False(t, (&User{Status: UserStatusSuspended}).CanAuthenticate())
	assert.False(t, (&User{Status: UserStatusInactive}).CanAuthenticate())
}
