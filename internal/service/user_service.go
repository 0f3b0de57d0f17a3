package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/config"
	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/repository"
	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

const statsCacheKey = "user-directory:stats"

// UserService orchestrates validation, store access, status and role
// transitions, and statistics aggregation.
type UserService struct {
	users      repository.UserRepository
	validator  *Validator
	dispatcher events.Dispatcher
	cache      *redis.Client
	logger     *zap.Logger
	bcryptCost int
	statsTTL   time.Duration
}

// UserDependencies encapsulates collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Validator  *Validator
	Dispatcher events.Dispatcher
	Cache      *redis.Client
	Logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		statsTTL:   time.Duration(cfg.Stats.CacheTTLSeconds) * time.Second,
	}
}

// ListInput carries pagination parameters as received from the caller.
type ListInput struct {
	Page     int
	Size     int
	SortBy   string
	SortDesc bool
}

// UserPage is one page of results with total counts.
type UserPage struct {
	Items         []domain.User
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int64
}

// Create validates the candidate, checks uniqueness, hashes the secret and
// persists. Status is forced to ACTIVE; role defaults to USER.
func (s *UserService) Create(ctx context.Context, actorID string, input CreateUserInput) (*domain.User, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if input.Role != "" {
		parsed, err := domain.ParseRole(input.Role)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "role"})
		}
		role = parsed
	}

	if err := s.checkUnique(ctx, input.Username, input.Email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PhoneNumber:  input.PhoneNumber,
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.invalidateStats(ctx)
	s.publish(ctx, events.EventUserCreated, user.ID, actorID, events.UserCreatedPayload{
		Username: user.Username,
		Role:     user.Role,
		Status:   user.Status,
	})
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Update loads the record, re-checks uniqueness for changed username or
// email (excluding the record itself), applies the field changes and
// persists. No write happens if any check fails.
func (s *UserService) Update(ctx context.Context, actorID, id string, input UpdateUserInput) (*domain.User, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	var role *domain.Role
	if input.Role != "" {
		parsed, err := domain.ParseRole(input.Role)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "role"})
		}
		role = &parsed
	}
	var status *domain.UserStatus
	if input.Status != "" {
		parsed, err := domain.ParseStatus(input.Status)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
		}
		status = &parsed
	}

	user, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != user.Username || input.Email != user.Email {
		if err := s.checkUnique(ctx, input.Username, input.Email, user.ID); err != nil {
			return nil, err
		}
	}

	user.Username = input.Username
	user.Email = input.Email
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	user.PhoneNumber = input.PhoneNumber
	if role != nil {
		user.Role = *role
	}
	if status != nil {
		user.Status = *status
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.mapStoreErr(err, id)
	}

	s.invalidateStats(ctx)
	s.publish(ctx, events.EventUserUpdated, user.ID, actorID, nil)
	return user, nil
}

// Delete removes the record irreversibly.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	user, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return s.mapStoreErr(err, id)
	}

	s.invalidateStats(ctx)
	s.publish(ctx, events.EventUserDeleted, id, actorID, events.UserDeletedPayload{Username: user.Username})
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actorID))
	return nil
}

// GetByID fetches one user.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getByID(ctx, id)
}

// GetByUsername fetches one user by its login identity.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GetByEmail fetches one user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns a page of users with total counts.
func (s *UserService) List(ctx context.Context, input ListInput) (*UserPage, error) {
	sortBy := input.SortBy
	if sortBy == "" {
		sortBy = "id"
	}
	column, ok := repository.SortColumns[sortBy]
	if !ok {
		return nil, apperrors.NewValidationError("unsupported sort field", map[string]any{"field": "sort_by", "value": input.SortBy})
	}
	if input.Page < 0 {
		return nil, apperrors.NewValidationError("page must not be negative", map[string]any{"field": "page"})
	}
	size := input.Size
	if size <= 0 {
		size = 10
	}

	items, total, err := s.users.List(ctx, repository.ListParams{
		Page:       input.Page,
		Size:       size,
		SortColumn: column,
		Descending: input.SortDesc,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &UserPage{
		Items:         items,
		Page:          input.Page,
		Size:          size,
		TotalElements: total,
		TotalPages:    int64(math.Ceil(float64(total) / float64(size))),
	}, nil
}

// ListAll returns every user without pagination.
func (s *UserService) ListAll(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListByRole returns users holding the given role token.
func (s *UserService) ListByRole(ctx context.Context, roleToken string) ([]domain.User, error) {
	role, err := domain.ParseRole(roleToken)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "role"})
	}
	users, listErr := s.users.ListByRole(ctx, role)
	if listErr != nil {
		return nil, apperrors.MapError(listErr)
	}
	return users, nil
}

// ListByStatus returns users in the given status token.
func (s *UserService) ListByStatus(ctx context.Context, statusToken string) ([]domain.User, error) {
	status, err := domain.ParseStatus(statusToken)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
	}
	users, listErr := s.users.ListByStatus(ctx, status)
	if listErr != nil {
		return nil, apperrors.MapError(listErr)
	}
	return users, nil
}

// SearchByName matches the term case-insensitively against "first last".
func (s *UserService) SearchByName(ctx context.Context, name string) ([]domain.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	users, err := s.users.SearchByName(ctx, name)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Activate moves the user to ACTIVE.
func (s *UserService) Activate(ctx context.Context, actorID, id string) (*domain.User, error) {
	return s.setStatus(ctx, actorID, id, domain.UserStatusActive)
}

// Deactivate moves the user to INACTIVE.
func (s *UserService) Deactivate(ctx context.Context, actorID, id string) (*domain.User, error) {
	return s.setStatus(ctx, actorID, id, domain.UserStatusInactive)
}

// Suspend moves the user to SUSPENDED.
func (s *UserService) Suspend(ctx context.Context, actorID, id string) (*domain.User, error) {
	return s.setStatus(ctx, actorID, id, domain.UserStatusSuspended)
}

// setStatus overwrites the status label. Transitions are idempotent: setting
// the current status again succeeds and only bumps updated_at.
func (s *UserService) setStatus(ctx context.Context, actorID, id string, status domain.UserStatus) (*domain.User, error) {
	user, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := user.Status
	user.Status = status

	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.mapStoreErr(err, id)
	}

	s.invalidateStats(ctx)
	if oldStatus != status {
		s.publish(ctx, events.EventUserStatusChanged, user.ID, actorID, events.UserStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
		})
	}
	return user, nil
}

// ChangeRole overwrites the role. Gating belongs to the authorization matrix.
func (s *UserService) ChangeRole(ctx context.Context, actorID, id, roleToken string) (*domain.User, error) {
	role, err := domain.ParseRole(roleToken)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "role"})
	}

	user, getErr := s.getByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	oldRole := user.Role
	user.Role = role

	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.mapStoreErr(err, id)
	}

	s.invalidateStats(ctx)
	if oldRole != role {
		s.publish(ctx, events.EventUserRoleChanged, user.ID, actorID, events.UserRoleChangedPayload{
			OldRole: oldRole,
			NewRole: role,
		})
	}
	return user, nil
}

// Statistics serves the aggregate snapshot, preferring the cached copy.
func (s *UserService) Statistics(ctx context.Context) (*domain.UserStats, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var stats domain.UserStats
			if json.Unmarshal(cached, &stats) == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.users.Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.cache != nil && s.statsTTL > 0 {
		if encoded, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, encoded, s.statsTTL).Err(); err != nil {
				s.logger.Warn("failed to cache statistics", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func (s *UserService) getByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapStoreErr(err, id)
	}
	return user, nil
}

// mapStoreErr translates store errors for by-id operations. A malformed id
// can never match a row, so the 22P02 the uuid cast raises reads as not found
// rather than a server fault.
func (s *UserService) mapStoreErr(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}

// checkUnique fails with a conflict when username or email belongs to another
// record. excludeID skips the record being updated.
func (s *UserService) checkUnique(ctx context.Context, username, email, excludeID string) error {
	taken, err := s.users.ExistsByUsername(ctx, username, excludeID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if taken {
		return apperrors.NewConflict("username already exists", map[string]any{"field": "username", "value": username})
	}

	taken, err = s.users.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if taken {
		return apperrors.NewConflict("email already exists", map[string]any{"field": "email", "value": email})
	}
	return nil
}

func (s *UserService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, userID, actorID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
