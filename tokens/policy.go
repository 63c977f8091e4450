package tokens

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultSafetyMargin is subtracted from the nominal token lifetime at issuance
// so a token never looks valid for its full window on a host with a skewed clock.
const DefaultSafetyMargin = 5 * time.Minute

var (
	// ErrInvalidPolicy is returned when a policy is missing a required field
	ErrInvalidPolicy = errors.New("invalid token policy")
)

// Policy governs token issuance and validation. A Policy value is never
// mutated after construction; reloads build a new one and swap it in.
type Policy struct {
	Issuer        string
	Audience      string
	SigningSecret []byte
	TokenLifetime time.Duration
	SafetyMargin  time.Duration
}

// NewPolicy builds a validated policy. The secret is copied so later changes
// to the caller's slice are not observed.
func NewPolicy(issuer, audience string, secret []byte, lifetime, margin time.Duration) (*Policy, error) {
	p := &Policy{
		Issuer:        issuer,
		Audience:      audience,
		SigningSecret: append([]byte(nil), secret...),
		TokenLifetime: lifetime,
		SafetyMargin:  margin,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that every field needed to sign or verify a token is set
func (p *Policy) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil policy", ErrInvalidPolicy)
	}
	if p.Issuer == "" {
		return fmt.Errorf("%w: issuer is empty", ErrInvalidPolicy)
	}
	if p.Audience == "" {
		return fmt.Errorf("%w: audience is empty", ErrInvalidPolicy)
	}
	if len(p.SigningSecret) == 0 {
		return fmt.Errorf("%w: signing secret is empty", ErrInvalidPolicy)
	}
	if p.TokenLifetime <= 0 {
		return fmt.Errorf("%w: token lifetime must be positive", ErrInvalidPolicy)
	}
	if p.SafetyMargin < 0 {
		return fmt.Errorf("%w: safety margin must not be negative", ErrInvalidPolicy)
	}
	if p.TokenLifetime <= p.SafetyMargin {
		return fmt.Errorf("%w: token lifetime %s does not exceed safety margin %s",
			ErrInvalidPolicy, p.TokenLifetime, p.SafetyMargin)
	}
	return nil
}

// EffectiveLifetime is the window a freshly issued token is accepted for
func (p *Policy) EffectiveLifetime() time.Duration {
	return p.TokenLifetime - p.SafetyMargin
}

// String never includes the signing secret.
func (p *Policy) String() string {
	if p == nil {
		return "<nil policy>"
	}
	return fmt.Sprintf("Policy{issuer=%q audience=%q lifetime=%s margin=%s secret=[redacted]}",
		p.Issuer, p.Audience, p.TokenLifetime, p.SafetyMargin)
}

// MarshalLogObject lets the policy be logged with zap.Object without the secret.
func (p *Policy) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if p == nil {
		return nil
	}
	enc.AddString("issuer", p.Issuer)
	enc.AddString("audience", p.Audience)
	enc.AddDuration("lifetime", p.TokenLifetime)
	enc.AddDuration("safety_margin", p.SafetyMargin)
	return nil
}

// PolicyStore holds the process-wide policy snapshot. Readers always see a
// complete snapshot; Swap replaces the whole thing in one atomic store.
type PolicyStore struct {
	current atomic.Pointer[Policy]
}

// NewPolicyStore creates a store seeded with an initial validated policy
func NewPolicyStore(initial *Policy) (*PolicyStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &PolicyStore{}
	s.current.Store(initial)
	return s, nil
}

// Current returns the snapshot active at call time
func (s *PolicyStore) Current() *Policy {
	return s.current.Load()
}

// Swap validates next and atomically makes it the active snapshot. The
// previous snapshot is returned. An invalid policy leaves the store untouched.
func (s *PolicyStore) Swap(next *Policy) (*Policy, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return s.current.Swap(next), nil
}
