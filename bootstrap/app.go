package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ruleguard/api"
	"ruleguard/config"
	"ruleguard/storage"
	"ruleguard/util/goroutine"

	"go.uber.org/zap"
)

const (
	apiShutdownTimeout = 10 * time.Second
	serviceWaitTimeout = 15 * time.Second
)

// App represents the ruleguard service with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	SQLite      *storage.SQLite
	RuleStorage *storage.SQLiteRuleStorage
	APIServer   *api.API

	serviceWg    sync.WaitGroup
	serverErrCh  chan error
	shutdownOnce sync.Once
}

// NewApp loads configuration, builds the logger at the configured level and
// opens storage. The API server is created but not started.
func NewApp(ctx context.Context) (*App, error) {
	_, bootSugar, err := InitLogger("info")
	if err != nil {
		return nil, err
	}

	cfg, err := InitConfig(bootSugar)
	if err != nil {
		return nil, err
	}

	logger, sugar, err := InitLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	app, err := newAppWithConfig(cfg, logger, sugar)
	if err != nil {
		return nil, err
	}
	return app, ctx.Err()
}

func newAppWithConfig(cfg *config.Config, logger *zap.Logger, sugar *zap.SugaredLogger) (*App, error) {
	sqlite, rules, err := InitStorage(cfg, sugar)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Sugar:       sugar,
		SQLite:      sqlite,
		RuleStorage: rules,
		APIServer:   api.NewAPI(rules, cfg, sugar),
		serverErrCh: make(chan error, 1),
	}, nil
}

// Start runs the API server in the background. Listen failures are reported
// through WaitForShutdown.
func (a *App) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := a.Config.API.Addr()
	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		defer goroutine.Recover("api-server", a.Sugar)

		a.Sugar.Infow("Starting API server", "addr", addr, "tls", a.Config.API.TLS)
		var err error
		if a.Config.API.TLS {
			err = a.APIServer.StartTLS(addr, a.Config.API.CertFile, a.Config.API.KeyFile)
		} else {
			err = a.APIServer.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			printFatal("API Server Failed", ClassifyListenError(err, addr))
			a.serverErrCh <- fmt.Errorf("API server: %w", err)
		}
	}()
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received or the API
// server fails. The server error, if any, is returned.
func (a *App) WaitForShutdown() error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		a.Sugar.Infow("Received signal", "signal", sig.String())
		return nil
	case err := <-a.serverErrCh:
		return err
	}
}

// Shutdown stops the API server, waits for service goroutines and closes
// storage. It is safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(serviceWaitTimeout):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			a.Sugar.Errorw("Failed to close SQLite", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}
