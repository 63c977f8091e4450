package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/order-processing/tokens"
	"go.uber.org/zap"
)

// MockRecorder is a mock implementation of Recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordAuthentication(scheme, outcome string) {
	m.Called(scheme, outcome)
}

func (m *MockRecorder) RecordTokenIssued() {
	m.Called()
}

type testEnv struct {
	store    *MockCredentialStore
	policies *tokens.PolicyStore
	codec    *tokens.Codec
	auth     *Authenticator
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	policy, err := tokens.NewPolicy("order-api", "order-web", []byte("authenticator-test-secret"), time.Hour, tokens.DefaultSafetyMargin)
	require.NoError(t, err)
	policies, err := tokens.NewPolicyStore(policy)
	require.NoError(t, err)

	store := new(MockCredentialStore)
	codec := tokens.NewCodec()
	logger := zap.NewNop()
	a := NewAuthenticator(policies, codec, NewBasicValidator(store, time.Second, logger), logger, opts...)
	return &testEnv{store: store, policies: policies, codec: codec, auth: a}
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestAuthenticateBasic(t *testing.T) {
	t.Run("alice with correct password gets a token", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.On("Authenticate", mock.Anything, "alice@example.com", "correct-pw").Return(alice(), nil)

		out, err := env.auth.Authenticate(context.Background(), headers("Authorization", basicHeader("alice@example.com:correct-pw")))
		require.NoError(t, err)
		assert.Equal(t, SchemeBasic, out.Scheme)
		assert.NotEmpty(t, out.IssuedToken)
		assert.Equal(t, out.IssuedToken, out.Claims.IssuedToken)
		assert.Equal(t, "1", out.Claims.SubjectID)
		assert.Equal(t, "alice", out.Claims.DisplayName)
		assert.True(t, out.Claims.HasRole("Customer"))
		assert.True(t, out.Claims.Allows("CanOrder"))

		// The issued token validates under the same policy
		replayed, err := env.codec.Validate(out.IssuedToken, env.policies.Current())
		require.NoError(t, err)
		assert.Equal(t, out.Claims, replayed)
		env.store.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.On("Authenticate", mock.Anything, "alice@example.com", "wrong-pw").Return(nil, nil)

		out, err := env.auth.Authenticate(context.Background(), headers("Authorization", basicHeader("alice@example.com:wrong-pw")))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, out)
	})

	t.Run("malformed basic payload never reaches the store", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.auth.Authenticate(context.Background(), headers("Authorization", "Basic not-base64!!"))
		assert.ErrorIs(t, err, ErrMalformedPresentation)
		env.store.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad permission from the store is an issuance failure", func(t *testing.T) {
		env := newTestEnv(t)
		broken := alice()
		broken.Permissions = []string{"CanOrder:maybe"}
		env.store.On("Authenticate", mock.Anything, "alice@example.com", "correct-pw").Return(broken, nil)

		_, err := env.auth.Authenticate(context.Background(), headers("Authorization", basicHeader("alice@example.com:correct-pw")))
		assert.ErrorIs(t, err, ErrIssuanceFailure)
	})

	t.Run("store failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.On("Authenticate", mock.Anything, "alice@example.com", "correct-pw").Return(nil, errors.New("db down"))

		_, err := env.auth.Authenticate(context.Background(), headers("Authorization", basicHeader("alice@example.com:correct-pw")))
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestAuthenticateToken(t *testing.T) {
	issue := func(t *testing.T, env *testEnv) string {
		token, err := env.codec.Issue(&tokens.ClaimSet{
			SubjectID:   "1",
			DisplayName: "alice",
			Roles:       []string{"Customer"},
		}, env.policies.Current())
		require.NoError(t, err)
		return token
	}

	t.Run("bearer replay returns claims without a new token", func(t *testing.T) {
		env := newTestEnv(t)
		token := issue(t, env)

		out, err := env.auth.Authenticate(context.Background(), headers("Authorization", "Bearer "+token))
		require.NoError(t, err)
		assert.Equal(t, SchemeBearer, out.Scheme)
		assert.Empty(t, out.IssuedToken)
		assert.Equal(t, "alice", out.Claims.DisplayName)
		assert.Equal(t, token, out.Claims.IssuedToken)
		env.store.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("custom header token", func(t *testing.T) {
		env := newTestEnv(t)
		token := issue(t, env)

		out, err := env.auth.Authenticate(context.Background(), headers("X-Token", token))
		require.NoError(t, err)
		assert.Equal(t, SchemeCustomHeader, out.Scheme)
		assert.Empty(t, out.IssuedToken)
	})

	t.Run("valid token plus basic never calls the store", func(t *testing.T) {
		env := newTestEnv(t)
		token := issue(t, env)

		out, err := env.auth.Authenticate(context.Background(), headers(
			"X-Token", token,
			"Authorization", basicHeader("alice@example.com:correct-pw"),
		))
		require.NoError(t, err)
		assert.Empty(t, out.IssuedToken)
		env.store.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid token does not fall back to basic", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.auth.Authenticate(context.Background(), headers(
			"X-Token", "garbage",
			"Authorization", basicHeader("alice@example.com:correct-pw"),
		))
		assert.ErrorIs(t, err, ErrInvalidToken)
		env.store.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("token from a rotated policy is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		token := issue(t, env)

		rotated, err := tokens.NewPolicy("order-api", "order-web", []byte("rotated-secret"), time.Hour, tokens.DefaultSafetyMargin)
		require.NoError(t, err)
		_, err = env.policies.Swap(rotated)
		require.NoError(t, err)

		_, err = env.auth.Authenticate(context.Background(), headers("Authorization", "Bearer "+token))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthenticateNoCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Authenticate(context.Background(), http.Header{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = env.auth.Authenticate(context.Background(), headers("Authorization", "Negotiate abc"))
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthenticateRecordsMetrics(t *testing.T) {
	recorder := new(MockRecorder)
	env := newTestEnv(t, WithRecorder(recorder))
	env.store.On("Authenticate", mock.Anything, "alice@example.com", "correct-pw").Return(alice(), nil)

	recorder.On("RecordAuthentication", "basic", "success").Once()
	recorder.On("RecordTokenIssued").Once()
	recorder.On("RecordAuthentication", "none", "missing_credentials").Once()
	recorder.On("RecordAuthentication", "bearer", "invalid_token").Once()

	_, err := env.auth.Authenticate(context.Background(), headers("Authorization", basicHeader("alice@example.com:correct-pw")))
	require.NoError(t, err)
	_, err = env.auth.Authenticate(context.Background(), http.Header{})
	require.Error(t, err)
	_, err = env.auth.Authenticate(context.Background(), headers("Authorization", "Bearer nope"))
	require.Error(t, err)

	recorder.AssertExpectations(t)
}
