package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/order-processing/tokens"
	"github.com/upb/order-processing/utils"
)

// DefaultEnvFile is read by New when present
const DefaultEnvFile = ".env"

// Config represents the complete application configuration
type Config struct {
	Environment   string `validate:"required"`
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int           `validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	TLS             TLSConfig
}

// TLSConfig holds optional TLS settings
type TLSConfig struct {
	Enabled  bool
	CertFile string `validate:"required_if=Enabled true"`
	KeyFile  string `validate:"required_if=Enabled true"`
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string `validate:"required_without=ConnectionString"`
	Port             int
	User             string `validate:"required_without=ConnectionString"`
	Password         string
	Database         string `validate:"required_without=ConnectionString"`
	SSLMode          string
	MaxOpenConns     int `validate:"gte=0"`
	MaxIdleConns     int `validate:"gte=0"`
	ConnMaxLifetime  time.Duration
	// InitSchema creates the credential tables at startup
	InitSchema       bool
}

// JWTConfig holds the token signing policy settings
type JWTConfig struct {
	Issuer        string        `validate:"required"`
	Audience      string        `validate:"required"`
	SecretKey     string        `validate:"required"`
	TokenLifetime time.Duration `validate:"gt=0,gtfield=SafetyMargin"`
	SafetyMargin  time.Duration `validate:"gte=0"`
}

// AuthConfig holds request authentication settings
type AuthConfig struct {
	StoreTimeout time.Duration `validate:"gt=0"`
	TokenHeader  string        `validate:"required"`
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	// AllowedHosts is a ';'-separated origin list, "*" allows any origin
	AllowedHosts string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string `validate:"required,oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json text"`
	MetricsEnabled bool
}

// New loads configuration from the process environment and DefaultEnvFile
func New() (*Config, error) {
	return Load(DefaultEnvFile)
}

// Load reads the given env files (missing files are skipped) and overlays
// the process environment, which always wins over file values
func Load(files ...string) (*Config, error) {
	src := source{}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		for k, v := range values {
			src[k] = v
		}
	}
	// Empty variables count as unset, as in getEnv
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && v != "" {
			src[k] = v
		}
	}

	cfg := src.build()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (s source) build() *Config {
	return &Config{
		Environment: s.getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            s.getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            s.getPort(),
			ReadTimeout:     s.getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    s.getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:  s.getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: s.getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: TLSConfig{
				Enabled:  s.getEnvAsBool("TLS_ENABLED", false),
				CertFile: s.getEnv("TLS_CERT_FILE", ""),
				KeyFile:  s.getEnv("TLS_KEY_FILE", ""),
			},
		},
		Database: s.loadDatabaseConfig(),
		JWT: JWTConfig{
			Issuer:        s.getEnv("JWT_ISSUER", "order-api"),
			Audience:      s.getEnv("JWT_AUDIENCE", "order-web"),
			SecretKey:     s.getEnv("JWT_SECRET_KEY", ""),
			TokenLifetime: time.Duration(s.getEnvAsInt("AUTH_TOKEN_EXPIRY_SECONDS", 3600)) * time.Second,
			SafetyMargin:  s.getEnvAsDuration("JWT_SAFETY_MARGIN", tokens.DefaultSafetyMargin),
		},
		Auth: AuthConfig{
			StoreTimeout: s.getEnvAsDuration("AUTH_STORE_TIMEOUT", 5*time.Second),
			TokenHeader:  s.getEnv("AUTH_TOKEN_HEADER", "X-Token"),
		},
		CORS: CORSConfig{
			AllowedHosts: s.getEnv("ALLOWED_HOSTS", "*"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       strings.ToLower(s.getEnv("LOG_LEVEL", "info")),
			LogFormat:      strings.ToLower(s.getEnv("LOG_FORMAT", "json")),
			MetricsEnabled: s.getEnvAsBool("METRICS_ENABLED", true),
		},
	}
}

// Validate checks struct constraints on every section
func (c *Config) Validate() error {
	return utils.ValidateStruct(c)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Policy builds the validated signing policy snapshot for these settings
func (c *JWTConfig) Policy() (*tokens.Policy, error) {
	return tokens.NewPolicy(c.Issuer, c.Audience, []byte(c.SecretKey), c.TokenLifetime, c.SafetyMargin)
}

// AllowedOrigins splits AllowedHosts into CORS origins
func (c *CORSConfig) AllowedOrigins() []string {
	var origins []string
	for _, host := range strings.Split(c.AllowedHosts, ";") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if host == "*" {
			return []string{"*"}
		}
		origins = append(origins, host)
	}
	return origins
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* vars
func (s source) loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    s.getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    s.getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: s.getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      s.getEnvAsBool("DB_INIT_SCHEMA", false),
	}
	if dbURL := s.getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = s.getEnv("DB_HOST", "localhost")
	cfg.Port = s.getEnvAsInt("DB_PORT", 5432)
	cfg.User = s.getEnv("DB_USER", "orders")
	cfg.Password = s.getEnv("DB_PASSWORD", "")
	cfg.Database = s.getEnv("DB_NAME", "orders")
	cfg.SSLMode = s.getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Helper functions

// source is the merged view of env files and the process environment
type source map[string]string

// getPort returns the server port from PORT or SERVER_PORT (default: 8080)
func (s source) getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if p, err := strconv.Atoi(s[key]); err == nil {
			return p
		}
	}
	return 8080
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s[key]; value != "" {
		return value
	}
	return defaultValue
}

func (s source) getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(s[key])
	if err != nil {
		return defaultValue
	}
	return value
}

func (s source) getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(s[key])
	if err != nil {
		return defaultValue
	}
	return value
}

func (s source) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(s[key])
	if err != nil {
		return defaultValue
	}
	return value
}
