package middleware

import (
	"context"
	"net/http"

	"github.com/upb/order-processing/auth"
	"github.com/upb/order-processing/utils"
	"go.uber.org/zap"
)

// RequestAuthenticator authenticates a request from its headers
type RequestAuthenticator interface {
	Authenticate(ctx context.Context, h http.Header) (*auth.Outcome, error)
}

// AuthorizationRecorder receives role and permission check results
type AuthorizationRecorder interface {
	RecordAuthorization(gate string, allowed bool)
}

// AuthMiddleware installs the request identity and gates routes on it
type AuthMiddleware struct {
	authenticator RequestAuthenticator
	logger        *zap.Logger
	recorder      AuthorizationRecorder
	tokenHeader   string
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator RequestAuthenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
		tokenHeader:   auth.TokenHeader,
	}
}

// WithRecorder sets the recorder for role and permission checks
func (m *AuthMiddleware) WithRecorder(r AuthorizationRecorder) *AuthMiddleware {
	m.recorder = r
	return m
}

// WithTokenHeader sets the response header used for newly issued tokens
func (m *AuthMiddleware) WithTokenHeader(name string) *AuthMiddleware {
	if name != "" {
		m.tokenHeader = name
	}
	return m
}

// RequireAuth authenticates the request and installs the identity on its
// context. A token minted on the basic path is written to the token header
// before the next handler runs.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		outcome, err := m.authenticator.Authenticate(ctx, r.Header)
		if err != nil {
			m.writeFailure(w, requestID, err)
			return
		}

		if outcome.IssuedToken != "" {
			w.Header().Set(m.tokenHeader, outcome.IssuedToken)
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("scheme", string(outcome.Scheme)),
			zap.String("sub", outcome.Claims.SubjectID))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, outcome.Claims)))
	})
}

func (m *AuthMiddleware) writeFailure(w http.ResponseWriter, requestID string, err error) {
	reason := auth.ReasonOf(err)
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("reason", string(reason)),
	}

	switch reason {
	case auth.ReasonTimeout, auth.ReasonStoreUnavailable:
		m.logger.Error("authentication unavailable", append(fields, zap.Error(err))...)
		_ = utils.WriteServiceUnavailable(w, "Authentication temporarily unavailable")
	case auth.ReasonIssuanceFailure, "":
		m.logger.Error("authentication failed", append(fields, zap.Error(err))...)
		_ = utils.WriteInternalServerError(w, "Unable to complete authentication")
	case auth.ReasonMalformedPresentation:
		m.logger.Warn("malformed credentials", fields...)
		_ = utils.WriteUnauthorized(w, "Malformed credentials")
	case auth.ReasonMissingCredentials:
		m.logger.Debug("missing credentials", fields...)
		_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
	case auth.ReasonInvalidToken:
		_ = utils.WriteUnauthorized(w, "Invalid or expired token")
	default:
		m.logger.Warn("authentication rejected", fields...)
		_ = utils.WriteUnauthorized(w, "Invalid credentials")
	}
}

// RequireRole allows the request when the identity holds any of roles.
// Matching is exact and case-sensitive.
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := IdentityFromContext(ctx)
			if claims == nil {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			allowed := claims.HasAnyRole(roles...)
			m.record("role", allowed)
			if !allowed {
				m.logger.Warn("insufficient role",
					zap.String("request_id", requestID),
					zap.Strings("required_roles", roles),
					zap.Strings("user_roles", claims.Roles))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission allows the request when the identity's permission key
// is granted
func (m *AuthMiddleware) RequirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := IdentityFromContext(ctx)
			if claims == nil {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			allowed := claims.Allows(key)
			m.record("permission", allowed)
			if !allowed {
				m.logger.Warn("permission denied",
					zap.String("request_id", requestID),
					zap.String("permission", key))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *AuthMiddleware) record(gate string, allowed bool) {
	if m.recorder != nil {
		m.recorder.RecordAuthorization(gate, allowed)
	}
}
