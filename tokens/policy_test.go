package tokens

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicy(t *testing.T) {
	secret := []byte("secret")

	t.Run("valid policy", func(t *testing.T) {
		p, err := NewPolicy("iss", "aud", secret, time.Hour, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 55*time.Minute, p.EffectiveLifetime())
	})

	t.Run("copies the secret", func(t *testing.T) {
		raw := []byte("mutable")
		p, err := NewPolicy("iss", "aud", raw, time.Hour, 0)
		require.NoError(t, err)
		raw[0] = 'X'
		assert.Equal(t, []byte("mutable"), p.SigningSecret)
	})

	tests := []struct {
		name     string
		issuer   string
		audience string
		secret   []byte
		lifetime time.Duration
		margin   time.Duration
	}{
		{"empty issuer", "", "aud", secret, time.Hour, 0},
		{"empty audience", "iss", "", secret, time.Hour, 0},
		{"empty secret", "iss", "aud", nil, time.Hour, 0},
		{"zero lifetime", "iss", "aud", secret, 0, 0},
		{"negative margin", "iss", "aud", secret, time.Hour, -time.Minute},
		{"margin swallows lifetime", "iss", "aud", secret, 5 * time.Minute, 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.issuer, tt.audience, tt.secret, tt.lifetime, tt.margin)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestPolicyStringRedactsSecret(t *testing.T) {
	p, err := NewPolicy("iss", "aud", []byte("do-not-print-me"), time.Hour, time.Minute)
	require.NoError(t, err)

	assert.NotContains(t, p.String(), "do-not-print-me")
	assert.NotContains(t, fmt.Sprintf("%v", p), "do-not-print-me")
	assert.Contains(t, p.String(), "redacted")
}

func TestPolicyStore(t *testing.T) {
	first, err := NewPolicy("iss-1", "aud-1", []byte("secret-1"), time.Hour, time.Minute)
	require.NoError(t, err)
	second, err := NewPolicy("iss-2", "aud-2", []byte("secret-2"), time.Hour, time.Minute)
	require.NoError(t, err)

	t.Run("rejects invalid initial policy", func(t *testing.T) {
		_, err := NewPolicyStore(&Policy{})
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})

	t.Run("swap replaces the whole snapshot", func(t *testing.T) {
		store, err := NewPolicyStore(first)
		require.NoError(t, err)
		assert.Same(t, first, store.Current())

		prev, err := store.Swap(second)
		require.NoError(t, err)
		assert.Same(t, first, prev)
		assert.Same(t, second, store.Current())
	})

	t.Run("invalid swap keeps the current snapshot", func(t *testing.T) {
		store, err := NewPolicyStore(first)
		require.NoError(t, err)

		_, err = store.Swap(&Policy{Issuer: "half-configured"})
		assert.ErrorIs(t, err, ErrInvalidPolicy)
		assert.Same(t, first, store.Current())
	})

	t.Run("readers never observe a mixed snapshot", func(t *testing.T) {
		store, err := NewPolicyStore(first)
		require.NoError(t, err)

		var wg sync.WaitGroup
		stop := make(chan struct{})
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					p := store.Current()
					switch p.Issuer {
					case "iss-1":
						assert.Equal(t, []byte("secret-1"), p.SigningSecret)
					case "iss-2":
						assert.Equal(t, []byte("secret-2"), p.SigningSecret)
					default:
						t.Errorf("unexpected issuer %q", p.Issuer)
					}
				}
			}()
		}
		for i := 0; i < 1000; i++ {
			next := first
			if i%2 == 0 {
				next = second
			}
			_, err := store.Swap(next)
			require.NoError(t, err)
		}
		close(stop)
		wg.Wait()
	})
}
