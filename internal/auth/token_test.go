package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-directory/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, exp, err := tm.GenerateToken("user-1", domain.RoleManager)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, domain.RoleManager, claims.Role)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 30).GenerateToken("user-1", domain.RoleUser)
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 30).ParseToken(token)
	assert.Error(t, err)
}
