package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upb/order-processing/middleware"
	"github.com/upb/order-processing/models"
	"github.com/upb/order-processing/services"
	"github.com/upb/order-processing/tokens"
	"github.com/upb/order-processing/utils"
	"go.uber.org/zap"
)

// ProfileResponse is the authenticated caller as seen by the API
type ProfileResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	Roles       []string        `json:"roles"`
	Permissions map[string]bool `json:"permissions"`
}

// UserResponse is an account record returned to administrators
type UserResponse struct {
	ID        int64              `json:"id"`
	Email     string             `json:"email"`
	UserName  string             `json:"user_name"`
	Active    bool               `json:"active"`
	LockedOut bool               `json:"locked_out"`
	Roles     []string           `json:"roles"`
	Claims    []models.UserClaim `json:"claims"`
}

// UserGetter loads accounts by ID
type UserGetter interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// UserHandler serves the user endpoints
type UserHandler struct {
	users  UserGetter
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserGetter, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleAuthenticate handles POST /api/users/authenticate
// The auth middleware has already validated the caller; a basic login gets
// its new token in the X-Token response header.
func (h *UserHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r)
}

// HandleMe handles GET /api/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r)
}

// HandleGetUser handles GET /api/users/{id}
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		HandleServiceError(w, services.ErrInvalidInput.WithDetail("id", chi.URLParam(r, "id")), h.logger)
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, toUserResponse(user)); err != nil {
		h.logger.Error("failed to write user response", zap.Error(err))
	}
}

func (h *UserHandler) writeProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.IdentityFromContext(r.Context())
	if claims == nil {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	if err := utils.WriteOK(w, toProfile(claims)); err != nil {
		h.logger.Error("failed to write profile response", zap.Error(err))
	}
}

func toProfile(c *tokens.ClaimSet) ProfileResponse {
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}
	perms := c.Permissions
	if perms == nil {
		perms = map[string]bool{}
	}
	return ProfileResponse{
		ID:          c.SubjectID,
		Name:        c.DisplayName,
		Email:       c.Email,
		Roles:       roles,
		Permissions: perms,
	}
}

func toUserResponse(u *models.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := u.Claims
	if claims == nil {
		claims = []models.UserClaim{}
	}
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		UserName:  u.UserName,
		Active:    u.Active,
		LockedOut: u.LockedOut,
		Roles:     roles,
		Claims:    claims,
	}
}
