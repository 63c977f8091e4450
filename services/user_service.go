package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/upb/order-processing/auth"
	"github.com/upb/order-processing/models"
	"github.com/upb/order-processing/repositories"
	"github.com/upb/order-processing/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService resolves accounts from the user repository. It is the
// credential store behind basic authentication.
type UserService struct {
	users  repositories.UserRepository
	logger *zap.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

var _ auth.CredentialStore = (*UserService)(nil)

// NewUserService creates a new user service
func NewUserService(users repositories.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// Authenticate checks an email/password pair. Unknown accounts and wrong
// passwords both yield a nil principal and nil error; repository failures
// are returned wrapped so context errors stay detectable.
func (s *UserService) Authenticate(ctx context.Context, identifier, secret string) (*auth.Principal, error) {
	email := strings.TrimSpace(identifier)
	if err := utils.ValidateEmail(email); err != nil {
		s.logger.Debug("rejecting malformed login identifier")
		return nil, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Keep unknown accounts as slow as wrong passwords
			_ = bcrypt.CompareHashAndPassword(s.placeholderHash(), []byte(secret))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Warn("stored password hash is unusable",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		}
		return nil, nil
	}

	return toPrincipal(user), nil
}

// GetUser returns the account with the given ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, ErrInvalidInput.WithDetail("id", id)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound.WithDetail("id", id)
		}
		if storeUnreachable(err) {
			s.logger.Warn("credential store unreachable", zap.Int64("id", id), zap.Error(err))
			return nil, WrapError(ErrorTypeUnavailable, ErrStoreUnavailable.Message, err)
		}
		s.logger.Error("failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, WrapInternal("failed to get user", err)
	}
	return user, nil
}

// storeUnreachable reports whether err means the database could not answer,
// as opposed to answering with a failure
func storeUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (s *UserService) placeholderHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("failed to generate placeholder hash", zap.Error(err))
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func toPrincipal(u *models.User) *auth.Principal {
	return &auth.Principal{
		ID:          strconv.FormatInt(u.ID, 10),
		DisplayName: u.DisplayName(),
		Roles:       u.Roles,
		Permissions: u.PermissionEntries(),
		Email:       u.Email,
		Authorized:  u.CanAuthenticate(),
	}
}
