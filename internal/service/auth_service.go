package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/config"
	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/repository"
	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

const resetKeyPrefix = "user-directory:pwreset:"

// AuthService coordinates login, password management and admin bootstrap.
type AuthService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	redis      *redis.Client
	tokenMgr   *auth.TokenManager
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	bootstrap  config.AuthConfig
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Redis      *redis.Client
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		redis:      deps.Redis,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		bootstrap:  cfg.Auth,
	}
}

// Login authenticates by username and issues a token. Suspended and inactive
// accounts are rejected. A successful login stamps last_login.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.CanAuthenticate() {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account disabled")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	if err := s.users.RecordLogin(ctx, user.Username); err != nil {
		s.logger.Warn("failed to record login", zap.String("username", username), zap.Error(err))
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventUserLogin,
			UserID:    user.ID,
			ActorID:   user.ID,
			Timestamp: time.Now(),
		})
	}
	return user, token, exp, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "new_password"})
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// RequestPasswordReset issues a single-use reset token held in redis for the
// configured TTL. The token maps back to the user id.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if s.redis == nil {
		return "", apperrors.NewInternalError(errors.New("reset token store unavailable"))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("user", map[string]any{"email": email})
		}
		return "", apperrors.MapError(err)
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, resetKeyPrefix+token, user.ID, s.resetTTL).Err(); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
	return token, nil
}

// ConfirmPasswordReset consumes the token and updates the password. GetDel
// makes the token single use even under concurrent confirmation attempts.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if s.redis == nil {
		return apperrors.NewInternalError(errors.New("reset token store unavailable"))
	}
	if len(newPassword) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "new_password"})
	}

	userID, err := s.redis.GetDel(ctx, resetKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperrors.NewUnauthorized("reset token expired or used")
		}
		return apperrors.NewInternalError(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("password reset confirmed", zap.String("user_id", user.ID))
	return nil
}

// EnsureBootstrapAdmin creates the configured admin account when it does not
// exist yet. Without it nobody could ever reach the admin-gated create
// operation.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context) error {
	username := s.bootstrap.BootstrapAdminUsername
	if username == "" {
		return nil
	}
	if s.bootstrap.BootstrapAdminPassword == "" || s.bootstrap.BootstrapAdminEmail == "" {
		return fmt.Errorf("bootstrap admin requires BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD")
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(s.bootstrap.BootstrapAdminPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	admin := &domain.User{
		Username:     username,
		Email:        s.bootstrap.BootstrapAdminEmail,
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("username", username))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
