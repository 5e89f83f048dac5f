package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	adapthttp "markme/internal/adapter/http"
	"markme/internal/adapter/memory"
	"markme/internal/adapter/postgres"
	adaptredis "markme/internal/adapter/redis"
	"markme/internal/app"
	"markme/internal/clock"
	"markme/internal/config"
	"markme/internal/logging"
	"markme/internal/worker"
)

const (
	loginAttempts = 10
	loginWindow   = 15 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("markme stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	resolver := clock.NewResolver(nil)
	authSessions := postgres.NewAuthSessionRepo(db)

	attendanceSvc := app.NewAttendanceService(db, db, resolver, cfg.DefaultTimezone, logger)
	summarySvc := app.NewSummaryService(attendanceSvc, db, resolver)
	adminSvc := app.NewAdminService(db, db, resolver, cfg.DefaultTimezone, logger)
	sweeper := app.NewAbsenceSweeper(db, db, resolver, cfg.AbsenceFallbackTimezone, logger)
	authSvc := app.NewAuthService(db, authSessions)

	if cfg.AdminEmail != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("bootstrap admin created", "email", cfg.AdminEmail)
		}
	}

	srv := adapthttp.New(adapthttp.Services{
		Attendance: attendanceSvc,
		Summary:    summarySvc,
		Admin:      adminSvc,
		Sweeper:    sweeper,
		Auth:       authSvc,
		Resolver:   resolver,
	}, logger).WithHealthCheck("postgres", db.Ping)

	if cfg.ForwardAuthHeader != "" {
		srv.WithForwardAuth(cfg.ForwardAuthHeader, cfg.TrustedProxies)
		logger.Info("forward auth enabled", "header", cfg.ForwardAuthHeader, "trusted_proxies", len(cfg.TrustedProxies))
	}

	if cfg.OIDC.Enabled() {
		oidcCfg, err := adapthttp.NewOIDCConfig(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		if err != nil {
			return err
		}
		srv.WithOIDC(oidcCfg)
		logger.Info("sso enabled", "issuer", cfg.OIDC.Issuer)
	}

	var stopFuncs []func()
	if cfg.RedisURL != "" {
		rdb, err := adaptredis.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		srv.WithHealthCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		srv.WithLoginLimiter(adaptredis.NewFixedWindowLimiter(rdb, "markme:login", loginAttempts, loginWindow))

		stopWorker, err := worker.Start(cfg, sweeper, logger)
		if err != nil {
			return err
		}
		stopFuncs = append(stopFuncs, stopWorker)
		stopScheduler, err := worker.StartScheduler(cfg, logger)
		if err != nil {
			stopWorker()
			return err
		}
		stopFuncs = append(stopFuncs, stopScheduler)
	} else {
		srv.WithLoginLimiter(memory.NewLimiter(loginAttempts, loginWindow))
		stopLocal, err := worker.StartLocal(cfg, sweeper, logger)
		if err != nil {
			return err
		}
		stopFuncs = append(stopFuncs, stopLocal)
	}
	defer func() {
		for i := len(stopFuncs) - 1; i >= 0; i-- {
			stopFuncs[i]()
		}
	}()

	go purgeExpiredLogins(ctx, authSessions, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func purgeExpiredLogins(ctx context.Context, sessions *postgres.AuthSessionRepo, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				logger.Warn("purge expired logins failed", "error", err)
			}
		}
	}
}
