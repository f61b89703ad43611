package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/ratelimit"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/server"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func runServer(ctx context.Context) error {
	app, err := openApplication()
	if err != nil {
		return err
	}
	defer app.close()
	logger := app.logger

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, err := auth.NewSessionManager(auth.SessionManagerConfig{
		SigningSecret: []byte(app.config.SigningSecret),
		CookieName:    app.config.CookieName,
		TokenTTL:      app.config.SessionTTL,
		SecureCookies: !app.config.IsDevelopment(),
	})
	if err != nil {
		return err
	}

	var loginLimiter *ratelimit.Limiter
	if app.config.LoginPerMinute > 0 {
		loginLimiter, err = ratelimit.New(signalCtx, ratelimit.Config{
			Limit:     app.config.LoginPerMinute,
			Period:    time.Minute,
			RedisAddr: app.config.RateLimitRedisAddr,
			Logger:    logger.Named("ratelimit"),
			OnLimited: app.metrics.ObserveRateLimited,
		})
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := loginLimiter.Close(); closeErr != nil {
				logger.Warn("rate limiter close failed", zap.Error(closeErr))
			}
		}()
	}

	deps := server.Dependencies{
		Sessions:         sessions,
		Access:           app.access,
		Users:            app.users,
		Catalog:          app.catalog,
		Collections:      app.collections,
		Previews:         app.fetcher,
		Backfiller:       app.backfiller,
		Metrics:          app.metrics,
		CORSOrigins:      app.config.CORSOrigins,
		StaticDir:        app.config.StaticDir,
		RecheckAdminRole: app.config.RecheckAdminRole,
		Logger:           logger.Named("http"),
	}
	if loginLimiter != nil {
		deps.LoginLimiter = loginLimiter.Middleware()
	}
	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:              app.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}}
	if app.config.MetricsAddress != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", app.metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              app.config.MetricsAddress,
			Handler:           metricsMux,
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	for _, httpServer := range servers {
		group.Go(func() error {
			logger.Info("server starting", zap.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var shutdownErr error
		for _, httpServer := range servers {
			shutdownErr = errors.Join(shutdownErr, httpServer.Shutdown(shutdownCtx))
		}
		logger.Info("server stopped")
		return shutdownErr
	})

	return group.Wait()
}
