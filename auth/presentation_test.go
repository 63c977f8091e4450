package auth

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicHeader(userpass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(userpass))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    Presentation
		reason  Reason
	}{
		{
			name:    "custom header token",
			headers: map[string]string{"X-Token": "abc.def.ghi"},
			want:    TokenPresentation{Raw: "abc.def.ghi", Source: SchemeCustomHeader},
		},
		{
			name:    "custom header strips bearer prefix",
			headers: map[string]string{"X-Token": "Bearer abc.def.ghi"},
			want:    TokenPresentation{Raw: "abc.def.ghi", Source: SchemeCustomHeader},
		},
		{
			name:    "custom header strips basic prefix case-insensitively",
			headers: map[string]string{"x-token": "basic abc.def.ghi"},
			want:    TokenPresentation{Raw: "abc.def.ghi", Source: SchemeCustomHeader},
		},
		{
			name:    "empty custom header is malformed",
			headers: map[string]string{"X-Token": "   "},
			reason:  ReasonMalformedPresentation,
		},
		{
			name:    "custom header with only a prefix is malformed",
			headers: map[string]string{"X-Token": "Bearer "},
			reason:  ReasonMalformedPresentation,
		},
		{
			name:    "bearer token",
			headers: map[string]string{"Authorization": "Bearer abc.def.ghi"},
			want:    TokenPresentation{Raw: "abc.def.ghi", Source: SchemeBearer},
		},
		{
			name:    "bearer scheme is case-insensitive",
			headers: map[string]string{"Authorization": "bearer   abc.def.ghi "},
			want:    TokenPresentation{Raw: "abc.def.ghi", Source: SchemeBearer},
		},
		{
			name:    "empty bearer is malformed",
			headers: map[string]string{"Authorization": "Bearer"},
			reason:  ReasonMalformedPresentation,
		},
		{
			name:    "basic credentials",
			headers: map[string]string{"Authorization": basicHeader("alice@example.com:correct-pw")},
			want:    BasicPresentation{Identifier: "alice@example.com", Secret: "correct-pw"},
		},
		{
			name:    "basic secret keeps later colons",
			headers: map[string]string{"Authorization": basicHeader("alice:pa:ss")},
			want:    BasicPresentation{Identifier: "alice", Secret: "pa:ss"},
		},
		{
			name:    "basic empty secret is allowed",
			headers: map[string]string{"Authorization": basicHeader("alice:")},
			want:    BasicPresentation{Identifier: "alice", Secret: ""},
		},
		{
			name:    "basic invalid base64",
			headers: map[string]string{"Authorization": "Basic not-base64!!"},
			reason:  ReasonMalformedPresentation,
		},
		{
			name:    "basic without separator",
			headers: map[string]string{"Authorization": basicHeader("alice")},
			reason:  ReasonMalformedPresentation,
		},
		{
			name:    "basic with empty identifier",
			headers: map[string]string{"Authorization": basicHeader(":secret")},
			reason:  ReasonMalformedPresentation,
		},
		{
			name:    "basic with invalid utf-8",
			headers: map[string]string{"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, ':', 'x'})},
			reason:  ReasonMalformedPresentation,
		},
		{
			name:    "unknown scheme",
			headers: map[string]string{"Authorization": "Digest username=alice"},
			want:    NoPresentation{},
		},
		{
			name:    "no headers",
			headers: map[string]string{},
			want:    NoPresentation{},
		},
		{
			name: "custom header wins over basic",
			headers: map[string]string{
				"X-Token":       "abc.def.ghi",
				"Authorization": basicHeader("alice:pw"),
			},
			want: TokenPresentation{Raw: "abc.def.ghi", Source: SchemeCustomHeader},
		},
		{
			name: "malformed custom header does not fall through to basic",
			headers: map[string]string{
				"X-Token":       "",
				"Authorization": basicHeader("alice:pw"),
			},
			reason: ReasonMalformedPresentation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			got, err := Extract(h)
			if tt.reason != "" {
				require.Error(t, err)
				assert.Equal(t, tt.reason, ReasonOf(err))
				assert.ErrorIs(t, err, ErrMalformedPresentation)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractorCustomHeaderName(t *testing.T) {
	e := NewExtractor("x-auth-token")

	h := http.Header{}
	h.Set("X-Auth-Token", "abc")
	got, err := e.Extract(h)
	require.NoError(t, err)
	assert.Equal(t, TokenPresentation{Raw: "abc", Source: SchemeCustomHeader}, got)

	h = http.Header{}
	h.Set("X-Token", "abc")
	got, err = e.Extract(h)
	require.NoError(t, err)
	assert.Equal(t, NoPresentation{}, got)
}
