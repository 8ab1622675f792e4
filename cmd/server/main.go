package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"darkhaven/internal/config"
	"darkhaven/internal/db"
	"darkhaven/internal/db/mock"
	applog "darkhaven/internal/log"
	"darkhaven/internal/server"
	"darkhaven/internal/store"
	"darkhaven/internal/upload"
)

type serverLifecycle interface {
	Start() error
	Stop() error
}

// Indirections so run can be exercised without real dependencies.
var (
	loadConfigFunc      = config.Load
	setLogLevelFunc     = applog.SetLevel
	newMockDatabaseFunc = mock.New
	configureDatabase   = db.Configure
	openStoreFunc       = openFileStore
	newServerFunc       = func(cfg server.Config) (serverLifecycle, error) {
		return server.New(cfg)
	}
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		return sigCh, func() { signal.Stop(sigCh) }
	}
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "failed to load configuration", "error", err)
		return 1
	}

	if err := setLogLevelFunc(cfg.Logging.Level); err != nil {
		applog.Error(ctx, "invalid log level", "level", cfg.Logging.Level, "error", err)
		return 1
	}

	var database *gorm.DB
	if cfg.Database.UseMock {
		applog.Info(ctx, "using in-memory mock database")
		database, err = newMockDatabaseFunc(ctx)
	} else {
		database, err = configureDatabase(cfg.Database)
	}
	if err != nil {
		applog.Error(ctx, "failed to configure database", "error", err)
		return 1
	}

	siteStore, err := openStoreFunc(cfg.Store)
	if err != nil {
		applog.Error(ctx, "failed to open site store", "path", cfg.Store.Path, "error", err)
		return 1
	}
	defer func() {
		if err := siteStore.Close(); err != nil {
			applog.Error(ctx, "failed to close site store", "error", err)
		}
	}()

	uploads := upload.NewFileStorage(cfg.Upload.Dir, cfg.Upload.PublicBaseURL)

	srv, err := newServerFunc(server.Config{
		Addr: cfg.Server.Addr,
		Session: server.SessionConfig{
			Lifetime:     cfg.Session.Lifetime,
			CookieName:   cfg.Session.CookieName,
			CookieDomain: cfg.Session.CookieDomain,
			CookieSecure: cfg.Session.CookieSecure,
		},
		Database: database,
		Store:    siteStore,
		Uploads:  uploads,
	})
	if err != nil {
		applog.Error(ctx, "failed to build server", "error", err)
		return 1
	}

	errCh := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr)
		errCh <- srv.Start()
	}()

	sigCh, unsubscribe := subscribeShutdownSig()
	defer unsubscribe()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
	case sig := <-sigCh:
		applog.Info(ctx, "shutting down http server", "signal", sig.String())
		if err := srv.Stop(); err != nil {
			applog.Error(ctx, "graceful shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}

func openFileStore(cfg config.StoreConfig) (*store.Store, error) {
	backend, err := store.NewFileBackend(cfg.Path, cfg.Backup)
	if err != nil {
		return nil, err
	}
	return store.Open(backend)
}
