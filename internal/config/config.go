// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreBackendAuto      = ""
	StoreBackendMemory    = "memory"
	StoreBackendPostgres  = "postgres"
	StoreBackendPostgREST = "postgrest"
)

// Auth providers accepted by AUTH_PROVIDER.
const (
	AuthProviderAuto   = ""
	AuthProviderLocal  = "local"
	AuthProviderGoTrue = "gotrue"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// AppBaseURL is the origin used to build OAuth and password-reset redirect targets.
	AppBaseURL string `mapstructure:"APP_BASE_URL"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// StoreBackend selects the remote store implementation; empty picks one from the settings below.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// DatabaseURL is the Postgres DSN for the postgres store backend and migrations.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SupabaseURL is the hosted backend base URL (PostgREST under /rest/v1, GoTrue under /auth/v1).
	SupabaseURL string `mapstructure:"SUPABASE_URL"`
	// SupabaseAnonKey is the public API key sent as the apikey header.
	SupabaseAnonKey string `mapstructure:"SUPABASE_ANON_KEY"`
	// RemoteTimeout bounds every remote store and auth call (e.g. "10s").
	RemoteTimeout string `mapstructure:"REMOTE_TIMEOUT"`

	// AuthProvider selects the auth subsystem; empty picks one from the settings.
	AuthProvider string `mapstructure:"AUTH_PROVIDER"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file for the local provider.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim of local session tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim of local session tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	GoogleClientID     string `mapstructure:"OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"OAUTH_GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string `mapstructure:"OAUTH_GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"OAUTH_GITHUB_CLIENT_SECRET"`

	// StateFile is the JSON file holding persisted client state (selected organization, auth session).
	StateFile string `mapstructure:"STATE_FILE"`
	// RedisURL, when set, stores client state in Redis instead of StateFile.
	RedisURL string `mapstructure:"REDIS_URL"`
	// StateKeyPrefix namespaces Redis state keys.
	StateKeyPrefix string `mapstructure:"STATE_KEY_PREFIX"`

	// RoutePolicyFile is an optional Rego module replacing the built-in route decision table.
	RoutePolicyFile string `mapstructure:"ROUTE_POLICY_FILE"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "")
	v.SetDefault("APP_BASE_URL", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", StoreBackendAuto)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_ANON_KEY", "")
	v.SetDefault("REMOTE_TIMEOUT", "10s")
	v.SetDefault("AUTH_PROVIDER", AuthProviderAuto)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "greenline-auth")
	v.SetDefault("JWT_AUDIENCE", "greenline-app")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OAUTH_GOOGLE_CLIENT_ID", "")
	v.SetDefault("OAUTH_GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_GITHUB_CLIENT_ID", "")
	v.SetDefault("OAUTH_GITHUB_CLIENT_SECRET", "")
	v.SetDefault("STATE_FILE", ".greenline/state.json")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("STATE_KEY_PREFIX", "greenline:")
	v.SetDefault("ROUTE_POLICY_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "greenline-core")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case StoreBackendAuto, StoreBackendMemory, StoreBackendPostgres, StoreBackendPostgREST:
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	cfg.AuthProvider = strings.ToLower(strings.TrimSpace(cfg.AuthProvider))
	switch cfg.AuthProvider {
	case AuthProviderAuto, AuthProviderLocal, AuthProviderGoTrue:
	default:
		return nil, fmt.Errorf("config: unknown AUTH_PROVIDER %q", cfg.AuthProvider)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if d, err := time.ParseDuration(cfg.RemoteTimeout); err != nil || d <= 0 {
		return nil, fmt.Errorf("config: invalid REMOTE_TIMEOUT %q", cfg.RemoteTimeout)
	}

	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")

	return &cfg, nil
}

// ResolvedStoreBackend returns the effective store backend: the explicit STORE_BACKEND, else
// postgres when DATABASE_URL is set, else postgrest when SUPABASE_URL is set. Empty means not configured.
func (c *Config) ResolvedStoreBackend() string {
	if c.StoreBackend != StoreBackendAuto {
		return c.StoreBackend
	}
	if c.DatabaseURL != "" {
		return StoreBackendPostgres
	}
	if c.SupabaseURL != "" {
		return StoreBackendPostgREST
	}
	return ""
}

// ResolvedAuthProvider returns the effective auth provider: the explicit AUTH_PROVIDER, else gotrue
// when SUPABASE_URL is set, else local when both JWT keys are set. Empty means not configured.
func (c *Config) ResolvedAuthProvider() string {
	if c.AuthProvider != AuthProviderAuto {
		return c.AuthProvider
	}
	if c.SupabaseURL != "" {
		return AuthProviderGoTrue
	}
	if c.JWTPrivateKey != "" && c.JWTPublicKey != "" {
		return AuthProviderLocal
	}
	return ""
}

// Timeout parses RemoteTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RemoteTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// RedirectURL joins path onto AppBaseURL (e.g. "/dashboard").
func (c *Config) RedirectURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.AppBaseURL + path
}
