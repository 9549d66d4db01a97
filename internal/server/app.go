// Package server initializes and runs the GenoVault server: it opens the
// database, runs migrations, wires the storage, ledger, and service layers,
// and serves the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/ratelimit"
	"github.com/genovault/genovault/internal/server/config"
	"github.com/genovault/genovault/internal/server/httpapi"
	"github.com/genovault/genovault/internal/server/ledger"
	"github.com/genovault/genovault/internal/server/notify"
	"github.com/genovault/genovault/internal/server/repositories/repomanager"
	"github.com/genovault/genovault/internal/server/services"
	"github.com/genovault/genovault/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	api    *httpapi.API
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	blobs, err := storage.NewS3BlobStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store init: %w", err)
	}

	var anchor ledger.Anchor = ledger.Disabled{}
	if cfg.LedgerBaseEndpoint != "" {
		anchor = ledger.NewHTTPAnchor(cfg.LedgerBaseEndpoint, cfg.LedgerTopicID)
	} else {
		logger.Warn(ctx, "no ledger endpoint configured, digests will not be anchored")
	}

	limiter := ratelimit.NewFixedWindow()
	notifier := notify.NewLogNotifier(logger)

	api := httpapi.NewAPI(
		services.NewIngestService(db, rm, cfg, logger, limiter, blobs, anchor),
		services.NewRetrieveService(db, rm, cfg, logger, limiter, blobs, anchor),
		services.NewGrantService(db, rm, cfg, logger, limiter, notifier),
		services.NewFileService(db, rm, logger, blobs),
		services.NewAnalyticsService(db, rm, logger),
		cfg, logger,
	)

	return &App{config: cfg, logger: logger, db: db, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves the HTTP API until ctx is cancelled or a signal arrives, then
// drains in-flight requests and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.api.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close failed", "error", err)
	}

	return nil
}
