package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"datapulse/internal/audit"
	"datapulse/internal/cache"
	"datapulse/internal/config"
	"datapulse/internal/infrastructure"
	"datapulse/internal/project"
	"datapulse/internal/services"
	transport "datapulse/internal/transport/http"
)

// Application owns every long-lived component and the HTTP server.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Server *http.Server

	scanStore *audit.Store
}

// New wires the full application from configuration: storage, cache, engine,
// services, and the HTTP router.
func New(cfg *config.Config) (*Application, error) {
	logger := infrastructure.NewLogger(cfg.Logging, os.Stdout)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	store, err := project.NewStore(filepath.Join(cfg.Paths.DataDir, "projects"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}
	datasetCache := cache.New(store, cfg.Cache.TTL, logger)
	engine := project.NewEngine(store, datasetCache, cfg.Engine.OptimizeRowLimit, logger)

	scanStore, err := audit.OpenStore(cfg.Paths.ScanDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan store: %w", err)
	}

	data := services.NewDatasetService(store, engine, datasetCache, cfg.Engine.MaxUploadBytes, logger)
	export := services.NewExportService(store, datasetCache, logger)
	auditSvc := services.NewAuditService(store, datasetCache, scanStore, logger)

	rps := cfg.RateLimit.RPS
	if !cfg.RateLimit.Enabled {
		rps = 0
	}
	router := transport.NewRouter(transport.RouterConfig{
		Data:           data,
		Export:         export,
		Audit:          auditSvc,
		Logger:         logger,
		RateLimitRPS:   rps,
		RateLimitBurst: cfg.RateLimit.Burst,
	})

	return &Application{
		Config: cfg,
		Logger: logger,
		Server: &http.Server{
			Addr:         cfg.ListenAddr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		scanStore: scanStore,
	}, nil
}

// Run serves HTTP until the context is cancelled or a signal arrives, then
// shuts down gracefully within the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.String("data_dir", a.Config.Paths.DataDir))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		if err := a.scanStore.Close(); err != nil {
			a.Logger.Warn("scan store close failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}
