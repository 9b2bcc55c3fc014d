// Package server wires the Big Data Keeper application: configuration,
// the metadata database, the object store, the services and the HTTP and
// gRPC servers. Run blocks until a signal or a server failure.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/health"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/rest"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/services"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/storage"

	gs "github.com/dmitrijs2005/bigdatakeeper/internal/server/grpc"
)

const healthTimeout = 3 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	store      storage.ObjectStore
	checker    *health.Checker
	reconciler *services.Reconciler
	handler    http.Handler
}

// NewApp loads configuration from args and environ, connects to the
// database and the object store and builds the HTTP API.
func NewApp(ctx context.Context, args []string, environ map[string]string, out io.Writer) (*App, error) {

	cfg, err := config.LoadConfig(args, environ)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger, err := logging.New(out, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := repomanager.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := NewStore(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	app := &App{config: cfg, logger: logger, db: db, store: store}
	app.build(rm)
	return app, nil
}

// NewStore returns the configured object store, creating its bucket or
// root directory when missing.
func NewStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	var store storage.ObjectStore

	switch cfg.StorageBackend {
	case config.StorageDisk:
		store = storage.NewDiskStore(cfg.DiskRoot)
	default:
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		store = s3
	}

	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (app *App) build(rm repomanager.RepositoryManager) {
	cfg := app.config
	tx := dbx.NewSQLTransactor(app.db)

	tokens := auth.NewJWTManager([]byte(cfg.JWTSecret), cfg.JWTValidity)
	cache := services.NewPrincipalCache(cfg.PrincipalCacheSize, cfg.PrincipalCacheTTL)

	app.checker = health.NewChecker(healthTimeout).
		Add("database", app.db.PingContext).
		Add("storage", app.store.Ping)

	app.reconciler = services.NewReconciler(tx, rm, app.store, cfg.ReconcileInterval, cfg.ReconcileGrace, app.logger)

	app.handler = rest.NewRouter(rest.Deps{
		Auth:    services.NewAuthService(tx, rm, tokens, cache, cfg, app.logger),
		Folders: services.NewFolderService(tx, rm, app.logger),
		Files:   services.NewFileService(tx, rm, app.store, cfg, app.logger),
		Users:   services.NewUserAdminService(tx, rm, app.store, cache, cfg, app.logger),
		Health:  app.checker,
		Config:  cfg,
		Logger:  app.logger,
	}, rest.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewServer(app.config.HTTPAddr, app.handler,
		app.config.ReadHeaderTimeout, app.config.IdleTimeout, app.config.ShutdownTimeout, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if app.config.GRPCAddr == "" {
		return
	}
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.checker, 0)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until a termination signal arrives, ctx ends or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	app.reconciler.Start(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.reconciler.Stop()
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "close database", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
