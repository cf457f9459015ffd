// Package app wires configuration, storage, cache, workers and the HTTP
// server into one runnable service.
package app

import (
	"context"
	"log/slog"

	cfg "github.com/hoteldex/hotel-admin/config"
	"github.com/hoteldex/hotel-admin/internal/artifact"
	"github.com/hoteldex/hotel-admin/internal/auth"
	"github.com/hoteldex/hotel-admin/internal/cache"
	rediscache "github.com/hoteldex/hotel-admin/internal/cache/redis"
	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/export"
	handler "github.com/hoteldex/hotel-admin/internal/handler/http"
	"github.com/hoteldex/hotel-admin/internal/metrics"
	"github.com/hoteldex/hotel-admin/internal/permission"
	"github.com/hoteldex/hotel-admin/internal/server"
	"github.com/hoteldex/hotel-admin/internal/store"
	"github.com/hoteldex/hotel-admin/internal/store/postgres"
)

type App struct {
	Config         *cfg.AppConfig
	exitCh         chan error
	Store          store.Store
	Cache          cache.Cache
	Artifacts      *artifact.Store
	Sweeper        *artifact.Sweeper
	Metrics        *metrics.Metrics
	Orchestrator   *export.Orchestrator
	sessionManager auth.Manager
	server         *server.Server

	workerCancel context.CancelFunc
	workersDone  chan struct{}
}

// New creates a fully initialized App.
func New(config *cfg.AppConfig) (*App, error) {
	app := &App{
		Config: config,
		exitCh: make(chan error),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		return nil, err
	}
	if err := app.initArtifacts(); err != nil {
		return nil, err
	}
	app.initMetrics()
	app.initSessionManager()
	app.initOrchestrator()
	if err := app.initServer(); err != nil {
		return nil, err
	}

	return app, nil
}

// --------- Private init methods ---------

func (app *App) initStore() error {
	if app.Config.Database == nil {
		return errors.New("database config is nil")
	}
	app.Store = postgres.New(app.Config.Database)
	return nil
}

func (app *App) initRedis() error {
	redisCache, err := rediscache.NewRedisCache(app.Config.Redis.Addr, app.Config.Redis.Password, app.Config.Redis.DB)
	if err != nil {
		return errors.New("unable to initialize Redis", errors.WithCause(err))
	}
	app.Cache = redisCache
	return nil
}

func (app *App) initArtifacts() error {
	artifacts, err := artifact.NewStore(app.Config.Export.ArtifactDir)
	if err != nil {
		return err
	}
	app.Artifacts = artifacts
	app.Sweeper = artifact.NewSweeper(artifacts, app.Store.Job(), app.Config.Export.SweepSchedule, func(n int) {
		if app.Metrics != nil {
			app.Metrics.SweptArtifacts.Add(float64(n))
		}
	})
	return nil
}

func (app *App) initMetrics() {
	app.Metrics = metrics.New()
}

func (app *App) initSessionManager() {
	app.sessionManager = auth.NewHeaderManager()
}

func (app *App) initOrchestrator() {
	app.Orchestrator = export.NewOrchestrator(
		app.Store.Job(),
		app.Store.Catalog(),
		permission.NewResolver(app.Store.Source()),
		app.Cache,
		app.Artifacts,
		newLogLedger(),
		newLogAudit(),
		app.Metrics,
		export.Options{
			BatchSize:      app.Config.Export.BatchSize,
			AsyncThreshold: app.Config.Export.AsyncThreshold,
			MaxRecords:     app.Config.Export.MaxRecords,
			Retention:      app.Config.Export.Retention,
		},
	)
}

func (app *App) initServer() error {
	srv, err := server.BuildServer(app.Config.Consul, app.exitCh)
	if err != nil {
		return errors.New("failed to build server", errors.WithCause(err))
	}
	handler.NewExportHandler(app.Orchestrator, app.sessionManager).Register(srv.Engine)
	app.server = srv
	return nil
}

// Start runs DB, HTTP server, sweeper and background workers. It blocks
// until a component reports a fatal error.
func (app *App) Start() error {
	if err := app.Store.Open(); err != nil {
		return errors.New("failed to open store", errors.WithCause(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.workerCancel = cancel

	if err := app.Sweeper.Start(ctx); err != nil {
		cancel()
		return err
	}

	go app.server.Start()
	app.StartExportWorkers(ctx)

	return <-app.exitCh
}

// Stop gracefully shuts down all services.
func (app *App) Stop() error {
	slog.Info("hotel_admin.main.stop_starting")

	if app.server != nil {
		app.server.Stop()
		slog.Info("server stopped")
	}

	if app.workerCancel != nil {
		app.workerCancel()
	}
	if app.workersDone != nil {
		<-app.workersDone
		slog.Info("export workers stopped")
	}

	if app.Sweeper != nil {
		app.Sweeper.Stop()
	}

	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			slog.Error("redis cache close error", "err", err)
		} else {
			slog.Info("redis cache closed")
		}
	}

	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			slog.Error("store close error", "err", err)
		} else {
			slog.Info("store closed")
		}
	}

	slog.Info("hotel_admin.main.stop_complete")
	return nil
}
