package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/order-processing/models"
	"github.com/upb/order-processing/repositories"
	"go.uber.org/zap"
)

const (
	selectUserColumns = `
		SELECT id, email, user_name, password_hash, active, locked_out, created_at, updated_at
		FROM users
	`

	selectUserRoles = `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	selectUserClaims = `
		SELECT claim_key, claim_value
		FROM user_claims
		WHERE user_id = $1
		ORDER BY claim_key, claim_value
	`
)

// UserRepository implements repositories.UserRepository
type UserRepository struct {
	db     *DB
	tx     repositories.TransactionManager
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, tx repositories.TransactionManager, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		tx:     tx,
		logger: logger,
	}
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.load(ctx, selectUserColumns+" WHERE lower(email) = lower($1)", email)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.load(ctx, selectUserColumns+" WHERE id = $1", id)
}

// load reads the user row, roles and claims in one read-only transaction so
// the three reads see the same snapshot
func (r *UserRepository) load(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user *models.User
	err := r.tx.InTransaction(ctx, repositories.TxOptions{ReadOnly: true}, func(ctx context.Context) error {
		u, err := r.scanUser(ctx, query, arg)
		if err != nil {
			return err
		}
		if u.Roles, err = r.roles(ctx, u.ID); err != nil {
			return err
		}
		if u.Claims, err = r.claims(ctx, u.ID); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("user loaded",
		zap.Int64("id", user.ID),
		zap.Int("roles", len(user.Roles)),
		zap.Int("claims", len(user.Claims)))
	return user, nil
}

func (r *UserRepository) scanUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	executor := GetExecutor(ctx, r.db)
	user := &models.User{}

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.UserName,
		&user.PasswordHash,
		&user.Active,
		&user.LockedOut,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) roles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, selectUserRoles, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user roles: %w", err)
	}
	return roles, nil
}

func (r *UserRepository) claims(ctx context.Context, userID int64) ([]models.UserClaim, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, selectUserClaims, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user claims: %w", err)
	}
	defer rows.Close()

	var claims []models.UserClaim
	for rows.Next() {
		var c models.UserClaim
		if err := rows.Scan(&c.Key, &c.Value); err != nil {
			return nil, fmt.Errorf("failed to scan user claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user claims: %w", err)
	}
	return claims, nil
}
