package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/upb/order-processing/tokens"
	"go.uber.org/zap"
)

// Outcome is the result of a successful authentication
type Outcome struct {
	Claims *tokens.ClaimSet
	// IssuedToken is non-empty only on the basic path and must be written to
	// the X-Token response header
	IssuedToken string
	Scheme      Scheme
}

// Recorder receives authentication metrics
type Recorder interface {
	RecordAuthentication(scheme, outcome string)
	RecordTokenIssued()
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthentication(string, string) {}
func (nopRecorder) RecordTokenIssued()                  {}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(a *Authenticator) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithExtractor replaces the default X-Token extractor
func WithExtractor(e *Extractor) Option {
	return func(a *Authenticator) {
		if e != nil {
			a.extractor = e
		}
	}
}

// Authenticator runs the per-request authentication flow. It holds no
// per-request state and is safe for concurrent use.
type Authenticator struct {
	policies  *tokens.PolicyStore
	codec     *tokens.Codec
	basic     *BasicValidator
	extractor *Extractor
	recorder  Recorder
	logger    *zap.Logger
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(policies *tokens.PolicyStore, codec *tokens.Codec, basic *BasicValidator, logger *zap.Logger, opts ...Option) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Authenticator{
		policies:  policies,
		codec:     codec,
		basic:     basic,
		extractor: defaultExtractor,
		recorder:  nopRecorder{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate extracts one presentation from the headers and validates it.
// Token presentations are verified without touching the credential store;
// basic presentations are checked against the store and a new token is
// issued. Every error returned is a *Failure.
func (a *Authenticator) Authenticate(ctx context.Context, h http.Header) (*Outcome, error) {
	// One snapshot for the whole request
	policy := a.policies.Current()

	presentation, err := a.extractor.Extract(h)
	if err != nil {
		a.record(SchemeNone, err)
		return nil, err
	}

	var outcome *Outcome
	var scheme Scheme
	switch p := presentation.(type) {
	case TokenPresentation:
		scheme = p.Source
		outcome, err = a.authenticateToken(p, policy)
	case BasicPresentation:
		scheme = SchemeBasic
		outcome, err = a.authenticateBasic(ctx, p, policy)
	case NoPresentation:
		scheme = SchemeNone
		err = fail(ReasonMissingCredentials, nil)
	default:
		scheme = SchemeNone
		err = fail(ReasonMalformedPresentation, fmt.Errorf("unsupported presentation %T", presentation))
	}

	a.record(scheme, err)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (a *Authenticator) authenticateToken(p TokenPresentation, policy *tokens.Policy) (*Outcome, error) {
	claims, err := a.codec.Validate(p.Raw, policy)
	if err != nil {
		a.logger.Warn("token rejected",
			zap.String("scheme", string(p.Source)),
			zap.NamedError("cause", tokens.Cause(err)))
		return nil, fail(ReasonInvalidToken, err)
	}
	return &Outcome{Claims: claims, Scheme: p.Source}, nil
}

func (a *Authenticator) authenticateBasic(ctx context.Context, p BasicPresentation, policy *tokens.Policy) (*Outcome, error) {
	principal, err := a.basic.Validate(ctx, p.Identifier, p.Secret)
	if err != nil {
		return nil, err
	}

	claims, err := BuildClaims(principal)
	if err != nil {
		a.logger.Error("failed to build claims",
			zap.String("subject", principal.ID),
			zap.Error(err))
		return nil, fail(ReasonIssuanceFailure, err)
	}

	token, err := a.codec.Issue(claims, policy)
	if err != nil {
		a.logger.Error("failed to issue token",
			zap.String("subject", principal.ID),
			zap.Object("policy", policy),
			zap.Error(err))
		return nil, fail(ReasonIssuanceFailure, err)
	}
	a.recorder.RecordTokenIssued()

	return &Outcome{
		Claims:      claims.WithIssuedToken(token),
		IssuedToken: token,
		Scheme:      SchemeBasic,
	}, nil
}

func (a *Authenticator) record(scheme Scheme, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(ReasonOf(err))
	}
	a.recorder.RecordAuthentication(string(scheme), outcome)
}
