package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	// TokenHeader carries a previously issued token on requests and the newly
	// issued token on responses
	TokenHeader = "X-Token"

	// AuthorizationHeader is the standard credentials header
	AuthorizationHeader = "Authorization"

	bearerScheme = "Bearer "
	basicScheme  = "Basic "
)

// Scheme names the credential form a request used
type Scheme string

const (
	SchemeCustomHeader Scheme = "x-token"
	SchemeBearer       Scheme = "bearer"
	SchemeBasic        Scheme = "basic"
	SchemeNone         Scheme = "none"
)

// Presentation is the credential form a request used. The set of
// implementations is closed: TokenPresentation, BasicPresentation and
// NoPresentation.
type Presentation interface {
	presentation()
}

// TokenPresentation is a raw signed token from X-Token or Authorization: Bearer
type TokenPresentation struct {
	Raw string
	// Source is SchemeCustomHeader or SchemeBearer
	Source Scheme
}

// BasicPresentation is an identifier/secret pair from Authorization: Basic
type BasicPresentation struct {
	Identifier string
	Secret     string
}

// NoPresentation means the request carried no recognised credentials
type NoPresentation struct{}

func (TokenPresentation) presentation() {}
func (BasicPresentation) presentation() {}
func (NoPresentation) presentation()    {}

var (
	errEmptyToken      = errors.New("empty token")
	errInvalidBase64   = errors.New("basic credentials are not valid base64")
	errInvalidUTF8     = errors.New("basic credentials are not valid UTF-8")
	errMissingSep      = errors.New("basic credentials have no ':' separator")
	errEmptyIdentifier = errors.New("basic credentials have an empty identifier")
)

// Extractor picks exactly one presentation from a request's headers. It is
// the only place headers are inspected for credentials.
type Extractor struct {
	tokenHeader string
}

// NewExtractor creates an extractor reading tokens from tokenHeader
// (X-Token when empty)
func NewExtractor(tokenHeader string) *Extractor {
	if tokenHeader == "" {
		tokenHeader = TokenHeader
	}
	return &Extractor{tokenHeader: http.CanonicalHeaderKey(tokenHeader)}
}

// Extract returns the presentation selected by header precedence: the custom
// token header, then Authorization: Bearer, then Authorization: Basic.
// A malformed presentation is a hard failure and never falls through.
func (e *Extractor) Extract(h http.Header) (Presentation, error) {
	if values, ok := h[e.tokenHeader]; ok && len(values) > 0 {
		raw := strings.TrimLeft(values[0], " \t")
		if hasScheme(raw, bearerScheme) {
			raw = raw[len(bearerScheme):]
		} else if hasScheme(raw, basicScheme) {
			raw = raw[len(basicScheme):]
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, fail(ReasonMalformedPresentation, errEmptyToken)
		}
		return TokenPresentation{Raw: raw, Source: SchemeCustomHeader}, nil
	}

	authHeader := strings.TrimSpace(h.Get(AuthorizationHeader))
	switch {
	case hasScheme(authHeader, bearerScheme):
		raw := strings.TrimSpace(authHeader[len(bearerScheme):])
		if raw == "" {
			return nil, fail(ReasonMalformedPresentation, errEmptyToken)
		}
		return TokenPresentation{Raw: raw, Source: SchemeBearer}, nil

	case hasScheme(authHeader, basicScheme):
		return decodeBasic(strings.TrimSpace(authHeader[len(basicScheme):]))

	case strings.EqualFold(authHeader, strings.TrimSpace(bearerScheme)),
		strings.EqualFold(authHeader, strings.TrimSpace(basicScheme)):
		// scheme with no credentials after it
		return nil, fail(ReasonMalformedPresentation, errEmptyToken)
	}

	return NoPresentation{}, nil
}

var defaultExtractor = NewExtractor(TokenHeader)

// Extract selects a presentation using the default X-Token header
func Extract(h http.Header) (Presentation, error) {
	return defaultExtractor.Extract(h)
}

func decodeBasic(payload string) (Presentation, error) {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fail(ReasonMalformedPresentation, errInvalidBase64)
	}
	if !utf8.Valid(decoded) {
		return nil, fail(ReasonMalformedPresentation, errInvalidUTF8)
	}
	identifier, secret, found := strings.Cut(string(decoded), ":")
	if !found {
		return nil, fail(ReasonMalformedPresentation, errMissingSep)
	}
	if identifier == "" {
		return nil, fail(ReasonMalformedPresentation, errEmptyIdentifier)
	}
	return BasicPresentation{Identifier: identifier, Secret: secret}, nil
}

// hasScheme reports whether value starts with scheme, ignoring scheme case
func hasScheme(value, scheme string) bool {
	return len(value) >= len(scheme) && strings.EqualFold(value[:len(scheme)], scheme)
}
