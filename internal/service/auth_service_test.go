package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-directory/internal/config"
	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/events"
)

func authTestConfig() config.Config {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTLMinutes = 15
	return cfg
}

func newTestAuthService(repo *MockUserRepository) *AuthService {
	return NewAuthService(authTestConfig(), AuthDependencies{
		UserRepo:   repo,
		Dispatcher: events.NewInMemoryDispatcher(),
	})
}

func seedUser(t *testing.T, repo *MockUserRepository, username, password string) *domain.User {
	t.Helper()
	svc := newTestService(repo)
	input := validCreate(username, username+"@example.com")
	input.Password = password
	user, err := svc.Create(context.Background(), "", input)
	require.NoError(t, err)
	return user
}

func TestAuthService_Login(t *testing.T) {
	repo := NewMockUserRepository()
	seedUser(t, repo, "johndoe", "s3cret-pass")
	authSvc := newTestAuthService(repo)

	user, token, exp, err := authSvc.Login(context.Background(), "johndoe", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.False(t, exp.IsZero())
	assert.Equal(t, "johndoe", user.Username)

	// last_login was stamped
	stored, err := repo.GetByUsername(context.Background(), "johndoe")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	claims, err := authSvc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestAuthService_LoginRejections(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.UserStatus
		username string
		password string
		wantMsg  string
	}{
		{
			name:     "wrong password",
			status:   domain.UserStatusActive,
			username: "johndoe",
			password: "wrong-pass-123",
			wantMsg:  "invalid credentials",
		},
		{
			name:     "unknown username",
			status:   domain.UserStatusActive,
			username: "nobody",
			password: "s3cret-pass",
			wantMsg:  "invalid credentials",
		},
		{
			name:     "suspended account",
			status:   domain.UserStatusSuspended,
			username: "johndoe",
			password: "s3cret-pass",
			wantMsg:  "account disabled",
		},
		{
			name:     "inactive account",
			status:   domain.UserStatusInactive,
			username: "johndoe",
			password: "s3cret-pass",
			wantMsg:  "account disabled",
		},
		{
			name:     "pending verification may log in",
			status:   domain.UserStatusPendingVerification,
			username: "johndoe",
			password: "s3cret-pass",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			user := seedUser(t, repo, "johndoe", "s3cret-pass")
			if tt.status != domain.UserStatusActive {
				user.Status = tt.status
				require.NoError(t, repo.Update(context.Background(), user))
			}

			authSvc := newTestAuthService(repo)
			_, _, _, err := authSvc.Login(context.Background(), tt.username, tt.password)

			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	repo := NewMockUserRepository()
	user := seedUser(t, repo, "johndoe", "s3cret-pass")
	authSvc := newTestAuthService(repo)

	err := authSvc.ChangePassword(context.Background(), user.ID, "wrong-pass-123", "new-pass-456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")

	err = authSvc.ChangePassword(context.Background(), user.ID, "s3cret-pass", "short")
	require.Error(t, err)

	require.NoError(t, authSvc.ChangePassword(context.Background(), user.ID, "s3cret-pass", "new-pass-456"))

	_, _, _, err = authSvc.Login(context.Background(), "johndoe", "s3cret-pass")
	require.Error(t, err)
	_, _, _, err = authSvc.Login(context.Background(), "johndoe", "new-pass-456")
	require.NoError(t, err)
}

func TestAuthService_EnsureBootstrapAdmin(t *testing.T) {
	repo := NewMockUserRepository()

	cfg := authTestConfig()
	cfg.Auth.BootstrapAdminUsername = "root"
	cfg.Auth.BootstrapAdminEmail = "root@example.com"
	cfg.Auth.BootstrapAdminPassword = "bootstrap-pass"

	authSvc := NewAuthService(cfg, AuthDependencies{UserRepo: repo})
	require.NoError(t, authSvc.EnsureBootstrapAdmin(context.Background()))

	admin, err := repo.GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.Equal(t, domain.UserStatusActive, admin.Status)

	// second boot is a no-op, not a conflict
	require.NoError(t, authSvc.EnsureBootstrapAdmin(context.Background()))

	// not configured means not created
	unconfigured := NewAuthService(authTestConfig(), AuthDependencies{UserRepo: NewMockUserRepository()})
	require.NoError(t, unconfigured.EnsureBootstrapAdmin(context.Background()))
}
