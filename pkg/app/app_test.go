package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/provisioner/pkg/config"
	"github.com/platinummonkey/provisioner/pkg/observability"
	"github.com/platinummonkey/provisioner/pkg/provisioning"
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Backend.URL = url
	cfg.Backend.ServiceKey = "service-key"
	cfg.Auth.AdminToken = "admin-secret"
	cfg.Observability.AuditEnabled = false
	return cfg
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(context.Background(), Deps{Cfg: config.Default()})
	assert.ErrorContains(t, err, "not configured")

	_, err = New(context.Background(), Deps{})
	assert.Error(t, err)
}

func TestNewAuthModes(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{name: "shared secret", modify: func(c *config.Config) {}},
		{name: "bearer remote", modify: func(c *config.Config) {
			c.Auth.Mode = config.AuthModeBearerRole
		}},
		{name: "bearer hs256", modify: func(c *config.Config) {
			c.Auth.Mode = config.AuthModeBearerRole
			c.Auth.TokenVerifier = config.VerifierHS256
			c.Auth.JWTSecret = "jwt-secret"
		}},
		{name: "bearer hs256 without secret", modify: func(c *config.Config) {
			c.Auth.Mode = config.AuthModeBearerRole
			c.Auth.TokenVerifier = config.VerifierHS256
		}, wantErr: "SUPABASE_JWT_SECRET"},
		{name: "bearer jwks", modify: func(c *config.Config) {
			c.Auth.Mode = config.AuthModeBearerRole
			c.Auth.TokenVerifier = config.VerifierJWKS
		}},
		{name: "unknown mode", modify: func(c *config.Config) {
			c.Auth.Mode = "oauth"
		}, wantErr: "unknown auth mode"},
		{name: "unknown verifier", modify: func(c *config.Config) {
			c.Auth.Mode = config.AuthModeBearerRole
			c.Auth.TokenVerifier = "magic"
		}, wantErr: "unknown token verifier"},
		{name: "unknown write mode", modify: func(c *config.Config) {
			c.Provisioning.WriteMode = "replace"
		}, wantErr: "replace"},
		{name: "postgres without dsn", modify: func(c *config.Config) {
			c.Profiles.Store = config.ProfileStorePostgres
		}, wantErr: "PROFILES_DATABASE_URL"},
		{name: "unknown store", modify: func(c *config.Config) {
			c.Profiles.Store = "mongo"
		}, wantErr: "unknown profile store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("https://project.supabase.co")
			tt.modify(cfg)

			a, err := New(context.Background(), Deps{Cfg: cfg})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, a.Workflow)
			assert.Nil(t, a.ProfilesDB)
			assert.NoError(t, a.Close())
		})
	}
}

func TestNewWorkflowProvisions(t *testing.T) {
	var paths []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/auth/v1/admin/users":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"U1","email":"new@test.com"}`))
		default:
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer backend.Close()

	a, err := New(context.Background(), Deps{
		Cfg:        testConfig(backend.URL),
		Metrics:    observability.NewMetrics(prometheus.NewRegistry()),
		Authorizer: provisioning.NoAuthorizer{},
	})
	require.NoError(t, err)

	result, err := a.Workflow.Provision(context.Background(), provisioning.Credentials{},
		provisioning.Request{Email: "new@test.com", Password: "Secret123!"})
	require.NoError(t, err)

	assert.Equal(t, "U1", result.UserID)
	assert.Equal(t, []string{"POST /auth/v1/admin/users", "POST /rest/v1/profiles"}, paths)
}

func newIdentityBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/admin/users" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"U1","email":"new@test.com"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(backend.Close)
	return backend
}

func TestAuditTrailUsesItsOwnLogger(t *testing.T) {
	backend := newIdentityBackend(t)

	cfg := testConfig(backend.URL)
	cfg.Observability.AuditEnabled = true

	var operational, trail bytes.Buffer
	a, err := New(context.Background(), Deps{
		Cfg:         cfg,
		Logger:      observability.NewLogger(logrus.ErrorLevel, &operational),
		Authorizer:  provisioning.NoAuthorizer{},
		AuditOutput: &trail,
	})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Workflow.Provision(context.Background(), provisioning.Credentials{},
		provisioning.Request{Email: "new@test.com", Password: "Secret123!"})
	require.NoError(t, err)

	assert.Contains(t, trail.String(), `"audit":true`)
	assert.Contains(t, trail.String(), "user.provisioned")
	assert.NotContains(t, operational.String(), "user.provisioned")
}

func TestAuditTrailToFile(t *testing.T) {
	backend := newIdentityBackend(t)

	cfg := testConfig(backend.URL)
	cfg.Observability.AuditEnabled = true
	cfg.Observability.AuditLogFile = filepath.Join(t.TempDir(), "audit.log")

	a, err := New(context.Background(), Deps{Cfg: cfg, Authorizer: provisioning.NoAuthorizer{}})
	require.NoError(t, err)

	_, err = a.Workflow.Provision(context.Background(), provisioning.Credentials{},
		provisioning.Request{Email: "new@test.com", Password: "Secret123!"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	data, err := os.ReadFile(cfg.Observability.AuditLogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "user.provisioned")
}

func TestAuditLogFileUnwritable(t *testing.T) {
	cfg := testConfig("https://project.supabase.co")
	cfg.Observability.AuditEnabled = true
	cfg.Observability.AuditLogFile = filepath.Join(t.TempDir(), "missing", "audit.log")

	_, err := New(context.Background(), Deps{Cfg: cfg})
	assert.ErrorContains(t, err, "open audit log")
}
