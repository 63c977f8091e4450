package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/order-processing/tokens"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeEnvFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "test-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.True(t, cfg.IsDevelopment())
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "order-api", cfg.JWT.Issuer)
				assert.Equal(t, "order-web", cfg.JWT.Audience)
				assert.Equal(t, time.Hour, cfg.JWT.TokenLifetime)
				assert.Equal(t, tokens.DefaultSafetyMargin, cfg.JWT.SafetyMargin)
				assert.Equal(t, 5*time.Second, cfg.Auth.StoreTimeout)
				assert.Equal(t, "X-Token", cfg.Auth.TokenHeader)
				assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins())
				assert.Equal(t, "info", cfg.Observability.LogLevel)
			},
		},
		{
			name: "jwt and auth settings",
			envVars: map[string]string{
				"JWT_ISSUER":                "https://orders.example.com",
				"JWT_AUDIENCE":              "order-mobile",
				"JWT_SECRET_KEY":            "another-secret",
				"AUTH_TOKEN_EXPIRY_SECONDS": "7200",
				"JWT_SAFETY_MARGIN":         "1m",
				"AUTH_STORE_TIMEOUT":        "2s",
				"AUTH_TOKEN_HEADER":         "X-Auth-Token",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://orders.example.com", cfg.JWT.Issuer)
				assert.Equal(t, 2*time.Hour, cfg.JWT.TokenLifetime)
				assert.Equal(t, time.Minute, cfg.JWT.SafetyMargin)
				assert.Equal(t, 2*time.Second, cfg.Auth.StoreTimeout)
				assert.Equal(t, "X-Auth-Token", cfg.Auth.TokenHeader)

				policy, err := cfg.JWT.Policy()
				require.NoError(t, err)
				assert.Equal(t, 119*time.Minute, policy.EffectiveLifetime())
			},
		},
		{
			name: "database url takes precedence",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "test-secret",
				"DATABASE_URL":   "postgres://orders:pw@db.internal:6543/orders?sslmode=require",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://orders:pw@db.internal:6543/orders?sslmode=require", cfg.Database.DSN())
				assert.Equal(t, "host=db.internal port=6543 database=orders", cfg.Database.LogString())
				assert.NotContains(t, cfg.Database.LogString(), "pw")
			},
		},
		{
			name: "allowed hosts list",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "test-secret",
				"ALLOWED_HOSTS":  "https://shop.example.com; https://admin.example.com;",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins())
			},
		},
		{
			name:    "missing signing secret",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "lifetime not longer than margin",
			envVars: map[string]string{
				"JWT_SECRET_KEY":            "test-secret",
				"AUTH_TOKEN_EXPIRY_SECONDS": "300",
				"JWT_SAFETY_MARGIN":         "5m",
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "test-secret",
				"LOG_LEVEL":      "loud",
			},
			wantErr: true,
		},
		{
			name: "tls enabled without files",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "test-secret",
				"TLS_ENABLED":    "true",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET_KEY", "")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("file values are used", func(t *testing.T) {
		t.Setenv("JWT_SECRET_KEY", "")
		path := writeEnvFile(t, t.TempDir(), "JWT_SECRET_KEY=file-secret\nJWT_AUDIENCE=file-audience\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "file-secret", cfg.JWT.SecretKey)
		assert.Equal(t, "file-audience", cfg.JWT.Audience)
	})

	t.Run("process environment wins", func(t *testing.T) {
		t.Setenv("JWT_SECRET_KEY", "env-secret")
		path := writeEnvFile(t, t.TempDir(), "JWT_SECRET_KEY=file-secret\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "env-secret", cfg.JWT.SecretKey)
	})

	t.Run("unreadable file is an error", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}

func TestWatcher(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("JWT_ISSUER", "")
	dir := t.TempDir()
	path := writeEnvFile(t, dir, "JWT_SECRET_KEY=first\nJWT_ISSUER=first-issuer\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	core, logs := observer.New(zap.ErrorLevel)
	w := NewWatcher(path, zap.New(core))
	w.debounce = 10 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(cfg *Config) error {
			reloaded <- cfg
			return nil
		})
	}()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)

	t.Run("invalid file is skipped", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET_KEY=\n"), 0o600))
		select {
		case cfg := <-reloaded:
			t.Fatalf("unexpected reload with issuer %q", cfg.JWT.Issuer)
		case <-time.After(300 * time.Millisecond):
		}

		rejected := logs.FilterMessage("config reload rejected").All()
		require.NotEmpty(t, rejected)
		fields, ok := rejected[0].ContextMap()["fields"].(map[string]string)
		require.True(t, ok, "validation fields should be logged")
		assert.Contains(t, fields, "Config.JWT.SecretKey")
	})

	t.Run("valid change is delivered", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET_KEY=second\nJWT_ISSUER=second-issuer\n"), 0o600))
		select {
		case cfg := <-reloaded:
			assert.Equal(t, "second-issuer", cfg.JWT.Issuer)
			assert.Equal(t, "second", cfg.JWT.SecretKey)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for reload")
		}
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
