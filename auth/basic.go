package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultStoreTimeout bounds a single credential store round-trip
const DefaultStoreTimeout = 5 * time.Second

// Principal is the identity record returned by a credential store
type Principal struct {
	ID          string
	DisplayName string
	Roles       []string
	// Permissions are "key:bool" entries
	Permissions []string
	Email       string
	// Authorized is false for disabled or locked-out accounts
	Authorized bool
}

// CredentialStore verifies an identifier/secret pair. It returns a nil
// principal and nil error when the identifier is unknown.
type CredentialStore interface {
	Authenticate(ctx context.Context, identifier, secret string) (*Principal, error)
}

// BasicValidator resolves basic credentials into a principal through a
// CredentialStore, bounded by a timeout
type BasicValidator struct {
	store   CredentialStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewBasicValidator creates a validator. A non-positive timeout uses
// DefaultStoreTimeout.
func NewBasicValidator(store CredentialStore, timeout time.Duration, logger *zap.Logger) *BasicValidator {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BasicValidator{store: store, timeout: timeout, logger: logger}
}

type storeResult struct {
	principal *Principal
	err       error
}

// Validate returns the authorized principal for the credentials. The store
// is called once; its errors are not retried.
func (v *BasicValidator) Validate(ctx context.Context, identifier, secret string) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// Buffered so the store goroutine never blocks after we stop waiting
	done := make(chan storeResult, 1)
	go func() {
		p, err := v.store.Authenticate(ctx, identifier, secret)
		done <- storeResult{principal: p, err: err}
	}()

	var res storeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fail(ReasonTimeout, ctx.Err())
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
			return nil, fail(ReasonTimeout, res.err)
		}
		v.logger.Error("credential store failed", zap.Error(res.err))
		return nil, fail(ReasonStoreUnavailable, res.err)
	}
	if res.principal == nil {
		return nil, fail(ReasonInvalidCredentials, errors.New("unknown identifier or wrong secret"))
	}
	if !res.principal.Authorized {
		return nil, fail(ReasonInvalidCredentials, errors.New("principal is not authorized"))
	}
	return res.principal, nil
}
