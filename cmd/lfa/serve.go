// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lfa-academy/lfa-server/internal/access"
	accesspg "github.com/lfa-academy/lfa-server/internal/access/postgres"
	"github.com/lfa-academy/lfa-server/internal/auth"
	authpg "github.com/lfa-academy/lfa-server/internal/auth/postgres"
	"github.com/lfa-academy/lfa-server/internal/config"
	"github.com/lfa-academy/lfa-server/internal/httpapi"
	"github.com/lfa-academy/lfa-server/internal/logging"
	"github.com/lfa-academy/lfa-server/internal/observability"
	"github.com/lfa-academy/lfa-server/internal/store"
)

const (
	serviceName            = "lfa"
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// serveConfig holds the flags local to the serve command.
type serveConfig struct {
	autoMigrate     bool
	shutdownTimeout time.Duration
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and observability servers",
		Long: `Start the authentication API together with the metrics and health
server. Shuts down gracefully on SIGINT or SIGTERM.

Requires JWT_ACCESS_SECRET, JWT_REFRESH_SECRET and DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.autoMigrate, "auto-migrate", false, "apply pending migrations before serving")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "grace period for in-flight requests")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveConfig) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("DATABASE_URL or --database-url is required")
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.autoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	pool, err := store.Connect(ctx, cfg.Database.URL,
		store.WithConnectTimeout(cfg.Database.ConnectTimeoutDuration),
		store.WithConnectLogger(logger),
	)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	var ready atomic.Bool
	obs := observability.NewServer(cfg.HTTP.MetricsAddr, ready.Load)
	auth.RegisterMetrics(obs.Registry())
	access.RegisterMetrics(obs.Registry())

	revocations := auth.NewRevocationRegistry(revocationStore(cfg, pool),
		auth.WithRetention(cfg.Revocation.RetentionDuration),
		auth.WithRegistryLogger(logger),
	)
	revocations.StartSweeper(cfg.Revocation.SweepIntervalDuration)
	defer revocations.Close()

	api, err := buildAPI(cfg, pool, revocations, obs, logger)
	if err != nil {
		return err
	}

	// Cancelled by a signal or by either server failing.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.HTTP.MetricsAddr != "" {
		obsErrCh, err := obs.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		logger.Info("observability server started", "addr", obs.Addr())
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obs, opts.shutdownTimeout)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
		}
	}()
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	ready.Store(true)
	cmd.Println("LFA server started")
	logger.Info("api server listening",
		"addr", listener.Addr().String(),
		"env", cfg.Env,
		"revocation_backend", cfg.Revocation.Backend,
	)

	<-ctx.Done()
	ready.Store(false)
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obs, opts.shutdownTimeout)

	logger.Info("shutdown complete")
	return nil
}

// buildAPI wires the session manager, evaluator and HTTP surface.
func buildAPI(
	cfg *config.Config,
	pool *pgxpool.Pool,
	revocations *auth.RevocationRegistry,
	obs *observability.Server,
	logger *slog.Logger,
) (*httpapi.API, error) {
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
	})
	if err != nil {
		return nil, err
	}

	decoy, err := auth.DecoyHash(cfg.Password.DecoyScheme)
	if err != nil {
		return nil, err
	}
	identities := authpg.NewIdentityRepository(pool)
	sessionOpts := []auth.SessionOption{
		auth.WithSessionLogger(logger),
		auth.WithDecoyHash(decoy),
	}
	if cfg.Password.Upgrade {
		sessionOpts = append(sessionOpts, auth.WithPasswordUpgrade(auth.NewArgon2idHasher(), identities))
	}
	sessions, err := auth.NewSessionManager(identities, auth.NewVerifier(), codec, revocations, sessionOpts...)
	if err != nil {
		return nil, err
	}

	evaluator, err := access.NewEvaluator(
		accesspg.NewRelationshipStore(pool),
		access.WithEvaluatorLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return httpapi.New(sessions, evaluator, httpapi.ConfigFrom(cfg),
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(obs.Metrics()),
		httpapi.WithRateLimiter(auth.NewRateLimiter(auth.WithLimiterRegistry(obs.Registry(), "http"))),
	)
}

// revocationStore selects the configured backend. Validate has already
// rejected unknown names.
func revocationStore(cfg *config.Config, db store.Querier) auth.RevocationStore {
	if cfg.Revocation.Backend == config.RevocationPostgres {
		return authpg.NewRevocationStore(db)
	}
	return auth.NewMemoryRevocationStore()
}

func stopObservability(obs *observability.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when errCh delivers an error. A closed
// channel means the server stopped cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
