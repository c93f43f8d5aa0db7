package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/provisioner/pkg/profiles"
	"github.com/platinummonkey/provisioner/pkg/supabase"
)

// ConfigFileEnv names the optional YAML file loaded before the environment
const ConfigFileEnv = "PROVISIONER_CONFIG_FILE"

// Auth modes for the admin route
const (
	AuthModeSharedSecret = "shared-secret"
	AuthModeBearerRole   = "bearer-role"
)

// Token verifiers for bearer-role mode
const (
	VerifierRemote = "remote"
	VerifierHS256  = "hs256"
	VerifierJWKS   = "jwks"
)

// Profile store backends
const (
	ProfileStoreREST     = "rest"
	ProfileStorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Auth          AuthConfig          `yaml:"auth"`
	Provisioning  ProvisioningConfig  `yaml:"provisioning"`
	Profiles      ProfilesConfig      `yaml:"profiles"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Submissions   SubmissionsConfig   `yaml:"submissions"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	StaticDir       string        `yaml:"static_dir"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// BackendConfig locates the hosted backend
type BackendConfig struct {
	URL        string        `yaml:"url"`
	ServiceKey string        `yaml:"service_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate reports missing backend settings. It is not part of
// Config.Validate: a server without them still starts and answers 500.
func (b BackendConfig) Validate() error {
	return b.Client(false).Validate()
}

// Client converts the settings to a hosted backend client configuration
func (b BackendConfig) Client(tracing bool) supabase.Config {
	return supabase.Config{
		URL:        b.URL,
		ServiceKey: b.ServiceKey,
		Timeout:    b.Timeout,
		Tracing:    tracing,
	}
}

// AuthConfig selects how admin callers are authorized
type AuthConfig struct {
	Mode          string `yaml:"mode"`
	AdminToken    string `yaml:"admin_token"`
	TokenVerifier string `yaml:"token_verifier"`
	JWTSecret     string `yaml:"jwt_secret"`
	JWKSURL       string `yaml:"jwks_url"`
}

// JWKSEndpoint returns the configured JWKS URL or the hosted default
func (a AuthConfig) JWKSEndpoint(backendURL string) string {
	if a.JWKSURL != "" {
		return a.JWKSURL
	}
	if backendURL == "" {
		return ""
	}
	return strings.TrimRight(backendURL, "/") + "/auth/v1/.well-known/jwks.json"
}

// Issuer returns the issuer the hosted auth server puts on its tokens
func (a AuthConfig) Issuer(backendURL string) string {
	if backendURL == "" {
		return ""
	}
	return strings.TrimRight(backendURL, "/") + "/auth/v1"
}

// ProvisioningConfig tunes the provisioning workflow
type ProvisioningConfig struct {
	WriteMode    string `yaml:"write_mode"`
	Compensate   bool   `yaml:"compensate"`
	EmailConfirm bool   `yaml:"email_confirm"`
}

// ProfilesConfig selects the profile store backend
type ProfilesConfig struct {
	Store       string `yaml:"store"`
	DatabaseURL string `yaml:"database_url"`
}

// RateLimitConfig limits the admin route
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	RedisURL          string  `yaml:"redis_url"`
}

// SubmissionsConfig configures the form-to-document-store bridge
type SubmissionsConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Collection      string `yaml:"collection"`
}

// Enabled reports whether the bridge route should be registered
func (s SubmissionsConfig) Enabled() bool {
	return s.ProjectID != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	AuditEnabled   bool   `yaml:"audit_enabled"`
	AuditLogFile   string `yaml:"audit_log_file"` // empty writes the audit trail to stdout

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			HealthPort:      "9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			CORSOrigins:     []string{"*"},
		},
		Backend: BackendConfig{
			Timeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Mode:          AuthModeSharedSecret,
			TokenVerifier: VerifierRemote,
		},
		Provisioning: ProvisioningConfig{
			WriteMode:    string(profiles.WriteUpsert),
			Compensate:   true,
			EmailConfirm: true,
		},
		Profiles: ProfilesConfig{
			Store: ProfileStoreREST,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             5,
		},
		Submissions: SubmissionsConfig{
			Collection: "submissions",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			AuditEnabled:       true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "provisioner",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads configuration from the file named by PROVISIONER_CONFIG_FILE
// (if any) and the environment
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(ConfigFileEnv))
}

// Load applies defaults, then the YAML file at path (if non-empty), then
// environment variables, and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides every setting whose environment variable is set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("PROVISIONER_HOST", s.Host)
	s.Port = getEnv("PROVISIONER_PORT", s.Port)
	s.HealthPort = getEnv("PROVISIONER_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("PROVISIONER_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("PROVISIONER_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("PROVISIONER_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("PROVISIONER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("PROVISIONER_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.CORSOrigins = getEnvList("PROVISIONER_CORS_ORIGINS", s.CORSOrigins)
	s.StaticDir = getEnv("PROVISIONER_STATIC_DIR", s.StaticDir)

	b := &c.Backend
	b.URL = getEnv("SUPABASE_URL", b.URL)
	b.ServiceKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", b.ServiceKey)
	b.Timeout = getEnvDuration("PROVISIONER_UPSTREAM_TIMEOUT", b.Timeout)

	a := &c.Auth
	a.Mode = getEnv("PROVISIONER_AUTH_MODE", a.Mode)
	a.AdminToken = getEnv("ADMIN_CREATE_USER_TOKEN", a.AdminToken)
	a.TokenVerifier = getEnv("PROVISIONER_TOKEN_VERIFIER", a.TokenVerifier)
	a.JWTSecret = getEnv("SUPABASE_JWT_SECRET", a.JWTSecret)
	a.JWKSURL = getEnv("SUPABASE_JWKS_URL", a.JWKSURL)

	p := &c.Provisioning
	p.WriteMode = getEnv("PROVISIONER_PROFILE_WRITE_MODE", p.WriteMode)
	p.Compensate = getEnvBool("PROVISIONER_COMPENSATE", p.Compensate)
	p.EmailConfirm = getEnvBool("PROVISIONER_EMAIL_CONFIRM", p.EmailConfirm)

	c.Profiles.Store = getEnv("PROVISIONER_PROFILE_STORE", c.Profiles.Store)
	c.Profiles.DatabaseURL = getEnv("PROFILES_DATABASE_URL", c.Profiles.DatabaseURL)

	r := &c.RateLimit
	r.RequestsPerSecond = getEnvFloat("PROVISIONER_RATE_LIMIT_RPS", r.RequestsPerSecond)
	r.Burst = getEnvInt("PROVISIONER_RATE_LIMIT_BURST", r.Burst)
	r.RedisURL = getEnv("PROVISIONER_REDIS_URL", r.RedisURL)

	f := &c.Submissions
	f.ProjectID = getEnv("FIREBASE_PROJECT_ID", f.ProjectID)
	f.CredentialsFile = getEnv("FIREBASE_CREDENTIALS_FILE", f.CredentialsFile)
	f.Collection = getEnv("SUBMISSIONS_COLLECTION", f.Collection)

	o := &c.Observability
	o.LogLevel = getEnv("PROVISIONER_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("PROVISIONER_METRICS_ENABLED", o.MetricsEnabled)
	o.AuditEnabled = getEnvBool("PROVISIONER_AUDIT_ENABLED", o.AuditEnabled)
	o.AuditLogFile = getEnv("PROVISIONER_AUDIT_LOG_FILE", o.AuditLogFile)
	o.OTelEnabled = getEnvBool("PROVISIONER_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("PROVISIONER_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("PROVISIONER_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("PROVISIONER_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("PROVISIONER_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid. Backend settings and
// secrets are checked separately by BackendConfig.Validate and
// ValidateSecrets.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}

	switch c.Auth.Mode {
	case AuthModeSharedSecret:
	case AuthModeBearerRole:
		switch c.Auth.TokenVerifier {
		case VerifierRemote, VerifierJWKS, VerifierHS256:
		default:
			return fmt.Errorf("invalid token verifier: %s (must be remote, hs256, or jwks)", c.Auth.TokenVerifier)
		}
	default:
		return fmt.Errorf("invalid auth mode: %s (must be shared-secret or bearer-role)", c.Auth.Mode)
	}

	if _, err := profiles.ParseWriteMode(c.Provisioning.WriteMode); err != nil {
		return err
	}

	switch c.Profiles.Store {
	case ProfileStoreREST, ProfileStorePostgres:
	default:
		return fmt.Errorf("invalid profile store: %s (must be rest or postgres)", c.Profiles.Store)
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit settings must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ValidateSecrets checks the credentials provisioning needs besides the
// backend ones. A failure disables the create-user route, not the server.
func (c *Config) ValidateSecrets() error {
	if c.Auth.Mode == AuthModeBearerRole && c.Auth.TokenVerifier == VerifierHS256 && c.Auth.JWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is required for the hs256 token verifier")
	}
	if c.Profiles.Store == ProfileStorePostgres && c.Profiles.DatabaseURL == "" {
		return errors.New("PROFILES_DATABASE_URL is required for the postgres profile store")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
