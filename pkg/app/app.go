// Package app wires the provisioning workflow from configuration. It is
// shared by the HTTP server and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/provisioner/pkg/audit"
	"github.com/platinummonkey/provisioner/pkg/config"
	"github.com/platinummonkey/provisioner/pkg/identity"
	"github.com/platinummonkey/provisioner/pkg/observability"
	"github.com/platinummonkey/provisioner/pkg/profiles"
	"github.com/platinummonkey/provisioner/pkg/provisioning"
	"github.com/platinummonkey/provisioner/pkg/supabase"
)

// Deps holds what main() provides
type Deps struct {
	Cfg     *config.Config
	Logger  *logrus.Logger
	Metrics *observability.Metrics // optional

	// Authorizer replaces the one selected by Cfg.Auth, e.g. NoAuthorizer
	// for operator tooling
	Authorizer provisioning.Authorizer

	// AuditOutput overrides Cfg.Observability.AuditLogFile
	AuditOutput io.Writer
}

// App is the wired provisioning stack
type App struct {
	Workflow *provisioning.Workflow
	Backend  *supabase.Client

	// ProfilesDB is set when profiles live in Postgres
	ProfilesDB *sql.DB

	auditFile *os.File
}

// New builds the workflow. It fails when the hosted backend or a required
// secret is not configured; servers keep running and report the error per
// request.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	if err := cfg.Backend.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateSecrets(); err != nil {
		return nil, err
	}

	var clientOpts []supabase.Option
	if deps.Metrics != nil {
		clientOpts = append(clientOpts, supabase.WithObserver(deps.Metrics))
	}
	client, err := supabase.NewClient(cfg.Backend.Client(cfg.Observability.OTelEnabled), clientOpts...)
	if err != nil {
		return nil, err
	}

	a := &App{Backend: client}
	provider := identity.NewGoTrueClient(client)

	store, err := a.profileStore(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer, err = newAuthorizer(ctx, cfg, provider, store)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	writeMode, err := profiles.ParseWriteMode(cfg.Provisioning.WriteMode)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []provisioning.Option{
		provisioning.WithOptions(provisioning.Options{
			EmailConfirm:               cfg.Provisioning.EmailConfirm,
			WriteMode:                  writeMode,
			CompensateOnProfileFailure: cfg.Provisioning.Compensate,
		}),
	}
	if deps.Metrics != nil {
		opts = append(opts, provisioning.WithRecorder(deps.Metrics))
	}
	if cfg.Observability.AuditEnabled {
		auditLogger, err := a.auditLogger(cfg.Observability, deps.AuditOutput)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, provisioning.WithAuditLogger(audit.NewLogrusLogger(auditLogger)))
	}

	a.Workflow = provisioning.NewWorkflow(provider, store, authorizer, opts...)

	deps.Logger.WithFields(logrus.Fields{
		"auth_mode":     cfg.Auth.Mode,
		"profile_store": cfg.Profiles.Store,
		"write_mode":    writeMode,
		"compensate":    cfg.Provisioning.Compensate,
	}).Info("Provisioning workflow configured")

	return a, nil
}

func (a *App) profileStore(ctx context.Context, cfg *config.Config, client *supabase.Client) (profiles.Store, error) {
	switch cfg.Profiles.Store {
	case config.ProfileStorePostgres:
		db, err := profiles.Open(ctx, cfg.Profiles.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.ProfilesDB = db
		return profiles.NewPostgresStore(db), nil
	case config.ProfileStoreREST, "":
		return profiles.NewRESTStore(client), nil
	default:
		return nil, fmt.Errorf("unknown profile store %q", cfg.Profiles.Store)
	}
}

func newAuthorizer(ctx context.Context, cfg *config.Config, provider identity.Provider, store profiles.Store) (provisioning.Authorizer, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeSharedSecret, "":
		return provisioning.NewSharedSecretAuthorizer(cfg.Auth.AdminToken), nil
	case config.AuthModeBearerRole:
		resolver, err := newResolver(ctx, cfg, provider)
		if err != nil {
			return nil, err
		}
		return provisioning.NewBearerRoleAuthorizer(resolver, store), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

func newResolver(ctx context.Context, cfg *config.Config, provider identity.Provider) (identity.TokenResolver, error) {
	switch cfg.Auth.TokenVerifier {
	case config.VerifierRemote, "":
		return identity.NewRemoteResolver(provider), nil
	case config.VerifierHS256:
		return identity.NewHS256Resolver(cfg.Auth.JWTSecret, identity.DefaultAudience)
	case config.VerifierJWKS:
		return identity.NewJWKSResolver(ctx,
			cfg.Auth.JWKSEndpoint(cfg.Backend.URL),
			cfg.Auth.Issuer(cfg.Backend.URL),
			identity.DefaultAudience)
	default:
		return nil, fmt.Errorf("unknown token verifier %q", cfg.Auth.TokenVerifier)
	}
}

// auditLogger builds the logger that carries the audit trail. It logs at
// info regardless of the operational log level.
func (a *App) auditLogger(cfg config.ObservabilityConfig, out io.Writer) (*logrus.Logger, error) {
	if out == nil && cfg.AuditLogFile != "" {
		f, err := os.OpenFile(cfg.AuditLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.auditFile = f
		out = f
	}
	return observability.NewLogger(logrus.InfoLevel, out), nil
}

// Close releases the profiles database and the audit log file, if any
func (a *App) Close() error {
	var errs []error
	if a.ProfilesDB != nil {
		errs = append(errs, a.ProfilesDB.Close())
	}
	if a.auditFile != nil {
		errs = append(errs, a.auditFile.Close())
	}
	return errors.Join(errs...)
}
