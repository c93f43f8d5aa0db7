package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/provisioner/pkg/api"
	"github.com/platinummonkey/provisioner/pkg/app"
	"github.com/platinummonkey/provisioner/pkg/config"
	"github.com/platinummonkey/provisioner/pkg/middleware"
	"github.com/platinummonkey/provisioner/pkg/observability"
	"github.com/platinummonkey/provisioner/pkg/submissions"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(logger.GetLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// A missing backend is reported per request, not at startup
	provisioner, configErr := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger, Metrics: metrics})
	if configErr != nil {
		logger.WithError(configErr).Error("Provisioning is not configured; create-user requests will fail with 500")
	}

	limiter, redisClient, err := newLimiter(ctx, cfg.RateLimit, logger)
	if err != nil {
		return err
	}

	var (
		submissionsHandler http.Handler
		firestoreWriter    *submissions.FirestoreWriter
	)
	if cfg.Submissions.Enabled() {
		firestoreWriter, err = submissions.NewFirestoreWriter(ctx, submissions.FirestoreConfig{
			ProjectID:       cfg.Submissions.ProjectID,
			CredentialsFile: cfg.Submissions.CredentialsFile,
			Collection:      cfg.Submissions.Collection,
		})
		if err != nil {
			return err
		}
		submissionsHandler = submissions.NewHandler(submissions.NewService(firestoreWriter), metrics)
		logger.WithField("collection", cfg.Submissions.Collection).Info("Form submissions enabled")
	}

	apiOpts := api.Options{
		Logger:       logger,
		Metrics:      metrics,
		ConfigError:  configErr,
		Limiter:      limiter,
		Submissions:  submissionsHandler,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		StaticDir:    cfg.Server.StaticDir,
		Tracing:      cfg.Observability.OTelEnabled,
	}
	if provisioner != nil {
		apiOpts.Provisioner = provisioner.Workflow
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(apiOpts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var profilesDB *sql.DB
	if provisioner != nil {
		profilesDB = provisioner.ProfilesDB
	}
	checker := observability.NewHealthChecker(profilesDB, redisClient)
	checker.SetVersion(version)
	checker.AddCheck("hosted_backend", true, func(context.Context) error {
		return cfg.Backend.Validate()
	})
	checker.AddCheck("provisioning", true, func(context.Context) error {
		return configErr
	})

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthMux,
		ReadTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	if provisioner != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return provisioner.Close() })
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	if firestoreWriter != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return firestoreWriter.Close() })
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting API server")
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return listen(healthServer)
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	return nil
}

// newLimiter returns a Redis limiter when a Redis URL is configured and an
// in-process one otherwise
func newLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *logrus.Logger) (middleware.Limiter, *redis.Client, error) {
	if cfg.RequestsPerSecond == 0 && cfg.Burst == 0 {
		logger.Warn("Rate limiting disabled")
		return nil, nil, nil
	}

	limits := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Window:            time.Minute,
	}

	if cfg.RedisURL == "" {
		local := middleware.NewLocalLimiter(limits)
		local.StartCleanup(ctx, 5*time.Minute)
		return local, nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The limiter fails open, so keep serving
		logger.WithError(err).Warn("Redis is unreachable; rate limiting will fail open until it recovers")
	}

	return middleware.NewRedisLimiter(client, limits, "provisioner:ratelimit"), client, nil
}
