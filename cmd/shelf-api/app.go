package main

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/access"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/collections"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/config"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/database"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/linkpreview"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
)

// application holds the services shared by the serve, users, seed and backfill commands.
type application struct {
	config      config.AppConfig
	logger      *zap.Logger
	db          *gorm.DB
	metrics     *metrics.Recorder
	users       *users.Service
	access      *access.Service
	catalog     *catalog.Service
	collections *collections.Service
	fetcher     *linkpreview.Fetcher
	backfiller  *linkpreview.Backfiller
}

func openApplication() (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.IsDevelopment())
	if err != nil {
		return nil, err
	}
	if appConfig.UsingFallbackSecret {
		logger.Warn("using the built-in development signing secret; set SHELF_AUTH_SIGNING_SECRET outside development")
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, database.Options{BusyTimeoutMillis: appConfig.BusyTimeoutMillis}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	app := &application{config: appConfig, logger: logger, db: db, metrics: metrics.NewRecorder()}
	if err := app.buildServices(); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (a *application) buildServices() error {
	var err error
	a.users, err = users.NewService(users.ServiceConfig{
		Database:      a.db,
		AllowedDomain: a.config.AllowedDomain,
		Logger:        a.logger.Named("users"),
	})
	if err != nil {
		return err
	}
	a.access, err = access.NewService(access.ServiceConfig{
		Database:      a.db,
		AllowedDomain: a.config.AllowedDomain,
		DeniedPolicy:  a.config.DeniedPolicy,
		Logger:        a.logger.Named("access"),
	})
	if err != nil {
		return err
	}
	a.catalog, err = catalog.NewService(catalog.ServiceConfig{
		Database:             a.db,
		CategoryDeletePolicy: a.config.CategoryDeletePolicy,
		Logger:               a.logger.Named("catalog"),
	})
	if err != nil {
		return err
	}
	a.collections, err = collections.NewService(collections.ServiceConfig{
		Database: a.db,
		Logger:   a.logger.Named("collections"),
	})
	if err != nil {
		return err
	}

	a.fetcher = linkpreview.NewFetcher(linkpreview.FetcherConfig{
		Timeout:  a.config.PreviewTimeout,
		Logger:   a.logger.Named("linkpreview"),
		OnResult: a.metrics.ObservePreview,
	})
	a.backfiller = linkpreview.NewBackfiller(linkpreview.BackfillConfig{
		Fetcher:     a.fetcher,
		Concurrency: a.config.BackfillConcurrency,
		Pacing:      a.config.BackfillPacing,
		Logger:      a.logger.Named("backfill"),
	})
	return nil
}

func (a *application) close() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
