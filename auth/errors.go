package auth

import (
	"errors"
	"fmt"
)

// Reason classifies why an authentication attempt failed
type Reason string

const (
	ReasonMalformedPresentation Reason = "malformed_presentation"
	ReasonMissingCredentials    Reason = "missing_credentials"
	ReasonInvalidCredentials    Reason = "invalid_credentials"
	ReasonInvalidToken          Reason = "invalid_token"
	ReasonTimeout               Reason = "timeout"
	ReasonStoreUnavailable      Reason = "store_unavailable"
	ReasonIssuanceFailure       Reason = "issuance_failure"
)

// Failure is the terminal error of an authentication attempt. Two failures
// match under errors.Is when they share a Reason.
type Failure struct {
	Reason Reason
	Err    error
}

// Error implements the error interface
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authentication failed: %s (%v)", f.Reason, f.Err)
	}
	return fmt.Sprintf("authentication failed: %s", f.Reason)
}

// Unwrap implements errors.Unwrap
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is implements errors.Is
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return f.Reason == t.Reason
}

func fail(reason Reason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// Sentinels for errors.Is checks
var (
	ErrMalformedPresentation = &Failure{Reason: ReasonMalformedPresentation}
	ErrMissingCredentials    = &Failure{Reason: ReasonMissingCredentials}
	ErrInvalidCredentials    = &Failure{Reason: ReasonInvalidCredentials}
	ErrInvalidToken          = &Failure{Reason: ReasonInvalidToken}
	ErrTimeout               = &Failure{Reason: ReasonTimeout}
	ErrStoreUnavailable      = &Failure{Reason: ReasonStoreUnavailable}
	ErrIssuanceFailure       = &Failure{Reason: ReasonIssuanceFailure}
)

// ReasonOf returns the failure reason carried by err, or "" if err is not a Failure
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}
