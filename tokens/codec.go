package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is the only validation error callers see. Signature,
	// issuer, audience and expiry failures all collapse into it.
	ErrInvalidToken = errors.New("invalid token")

	// ErrIssuance is returned when a token cannot be signed
	ErrIssuance = errors.New("token issuance failed")
)

// Validation causes. They are wrapped behind ErrInvalidToken and only meant
// for server-side diagnostics.
var (
	ErrBadSignature    = errors.New("signature verification failed")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrMalformedToken  = errors.New("malformed token")
)

// validationError keeps the diagnostic cause while matching ErrInvalidToken
type validationError struct {
	cause error
}

func (e *validationError) Error() string {
	return ErrInvalidToken.Error()
}

func (e *validationError) Is(target error) bool {
	return target == ErrInvalidToken
}

func (e *validationError) Unwrap() error {
	return e.cause
}

// Cause returns the diagnostic reason behind an ErrInvalidToken, for logs
func Cause(err error) error {
	var ve *validationError
	if errors.As(err, &ve) {
		return ve.cause
	}
	return err
}

// Codec signs and verifies HS256 tokens. It holds no mutable state and is
// safe for concurrent use.
type Codec struct {
	now func() time.Time
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the time source, used to test expiry
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a token codec
func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs claims into a token that expires after the policy's effective
// lifetime. An invalid policy or incomplete claim set fails closed.
func (c *Codec) Issue(claims *ClaimSet, policy *Policy) (string, error) {
	if err := policy.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIssuance, err)
	}
	if err := claims.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIssuance, err)
	}

	now := c.now()
	payload := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    policy.Issuer,
			Subject:   claims.SubjectID,
			Audience:  jwt.ClaimStrings{policy.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(policy.EffectiveLifetime())),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Name:        claims.DisplayName,
		Email:       claims.Email,
		Roles:       NormalizeRoles(claims.Roles),
		Permissions: FormatPermissions(claims.Permissions),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(policy.SigningSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIssuance, err)
	}
	return signed, nil
}

// Validate verifies signature, issuer, audience and expiry and returns the
// embedded claims with the token echoed back. Every failure matches
// ErrInvalidToken; use Cause for the specific reason.
func (c *Codec) Validate(tokenString string, policy *Policy) (*ClaimSet, error) {
	if err := policy.Validate(); err != nil {
		return nil, &validationError{cause: err}
	}
	if tokenString == "" {
		return nil, &validationError{cause: ErrMalformedToken}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(policy.Issuer),
		jwt.WithAudience(policy.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	payload := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, payload, func(*jwt.Token) (interface{}, error) {
		return policy.SigningSecret, nil
	})
	if err != nil {
		return nil, &validationError{cause: classify(err)}
	}
	if !token.Valid {
		return nil, &validationError{cause: ErrMalformedToken}
	}

	set, err := payload.toClaimSet()
	if err != nil {
		return nil, &validationError{cause: err}
	}
	set.IssuedToken = tokenString
	return set, nil
}

// classify maps jwt library errors onto our diagnostic causes
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrInvalidIssuer, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrInvalidAudience, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
