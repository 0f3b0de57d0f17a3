package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-directory/internal/domain"
	apperrors "github.com/spec-kit/user-directory/pkg/util"
)

const userColumns = `id, username, email, password_hash, first_name, last_name,
        phone_number, role, status, created_at, updated_at, last_login`

// SortColumns whitelists the fields a listing may be ordered by, mapped to
// their column names.
var SortColumns = map[string]string{
	"id":         "id",
	"username":   "username",
	"email":      "email",
	"firstName":  "first_name",
	"lastName":   "last_name",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"lastLogin":  "last_login",
	"first_name": "first_name",
	"last_name":  "last_name",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

// ListParams carries pagination and ordering for user listings. Page is
// 0-based; SortColumn must come from SortColumns.
type ListParams struct {
	Page       int
	Size       int
	SortColumn string
	Descending bool
}

// UserRepository defines persistence access for directory accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, params ListParams) ([]domain.User, int64, error)
	ListAll(ctx context.Context) ([]domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	ListByStatus(ctx context.Context, status domain.UserStatus) ([]domain.User, error)
	SearchByName(ctx context.Context, name string) ([]domain.User, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	RecordLogin(ctx context.Context, username string) error
	Stats(ctx context.Context) (*domain.UserStats, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// mapUniqueViolation turns the store's unique-constraint errors into
// conflicts. The constraints are the final guard against races between the
// uniqueness pre-checks and the write.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return apperrors.NewConflict("username already exists", map[string]any{"field": "username"})
		case "users_email_key":
			return apperrors.NewConflict("email already exists", map[string]any{"field": "email"})
		}
		return apperrors.NewConflict("duplicate value", nil)
	}
	return err
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, password_hash, first_name, last_name, phone_number, role, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.PhoneNumber,
		user.Role,
		user.Status,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users
        SET username=$1, email=$2, password_hash=$3, first_name=$4, last_name=$5,
            phone_number=$6, role=$7, status=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.PhoneNumber,
		user.Role,
		user.Status,
		user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "id=$1", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "username=$1", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email=$1", email)
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s`, userColumns, where)

	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, arg), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, params ListParams) ([]domain.User, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := SortColumns[params.SortColumn]
	if !ok {
		column = "id"
	}
	direction := "ASC"
	if params.Descending {
		direction = "DESC"
	}

	size := params.Size
	if size <= 0 {
		size = 10
	}
	page := params.Page
	if page < 0 {
		page = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY %s %s LIMIT %d OFFSET %d`,
		userColumns, column, direction, size, page*size)

	users, err := r.queryUsers(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) ListAll(ctx context.Context) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY created_at DESC`, userColumns)
	return r.queryUsers(ctx, query)
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE role=$1 ORDER BY created_at DESC`, userColumns)
	return r.queryUsers(ctx, query, role)
}

func (r *userRepository) ListByStatus(ctx context.Context, status domain.UserStatus) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE status=$1 ORDER BY created_at DESC`, userColumns)
	return r.queryUsers(ctx, query, status)
}

func (r *userRepository) SearchByName(ctx context.Context, name string) ([]domain.User, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM users
        WHERE LOWER(first_name || ' ' || last_name) LIKE '%%' || LOWER($1) || '%%'
        ORDER BY created_at DESC`, userColumns)
	return r.queryUsers(ctx, query, name)
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	return r.exists(ctx, "username", username, excludeID)
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

func (r *userRepository) exists(ctx context.Context, column, value, excludeID string) (bool, error) {
	query := fmt.Sprintf(`
        SELECT EXISTS (
            SELECT 1 FROM users WHERE %s=$1 AND ($2 = '' OR id::text <> $2)
        )`, column)

	var found bool
	if err := r.pool.QueryRow(ctx, query, value, excludeID).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (r *userRepository) RecordLogin(ctx context.Context, username string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE users SET last_login=NOW() WHERE username=$1`, username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Stats aggregates role and status counts in one pass so the snapshot is
// internally consistent.
func (r *userRepository) Stats(ctx context.Context) (*domain.UserStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, status, COUNT(*) FROM users GROUP BY role, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.UserStats{
		ByStatus: make(map[domain.UserStatus]int64, len(domain.Statuses)),
		ByRole:   make(map[domain.Role]int64, len(domain.Roles)),
	}
	for rows.Next() {
		var role domain.Role
		var status domain.UserStatus
		var count int64
		if err := rows.Scan(&role, &status, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByRole[role] += count
		stats.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.ActivePercentage = float64(stats.ByStatus[domain.UserStatusActive]) / float64(stats.Total) * 100
	}
	return stats, nil
}

func (r *userRepository) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, user *domain.User) error {
	return row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.PhoneNumber,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
}
