// Package server wires the davkeeper server together: database, session
// store, storage backend, services, the HTTP API and the gRPC health
// endpoint. It handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/cryptox"
	"github.com/dmitrijs2005/davkeeper/internal/logging"
	"github.com/dmitrijs2005/davkeeper/internal/server/config"
	"github.com/dmitrijs2005/davkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/davkeeper/internal/server/services"
	"github.com/dmitrijs2005/davkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/davkeeper/internal/server/storage"

	gs "github.com/dmitrijs2005/davkeeper/internal/server/grpc"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
	healthCheckTimeout  = 5 * time.Second
)

// healthCheck probes one dependency the server cannot work without.
type healthCheck func(ctx context.Context) error

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []io.Closer
	checks  []healthCheck

	handler     http.Handler
	appSessions *services.AppSessionService
	grpcServer  *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, closers: []io.Closer{db}, checks: []healthCheck{db.PingContext}}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	backend, err := storage.New(ctx, c)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	store, closer, err := newSessionStore(ctx, c)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("session store init error: %w", err)
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	if rs, ok := store.(*sessions.RedisStore); ok {
		app.checks = append(app.checks, rs.Ping)
	}

	hasher := cryptox.NewArgon2Hasher()
	users := services.NewUserDirectory(db, rm, backend, hasher, c, logger)
	resolver := services.NewSessionResolver(users, hasher, logger)
	app.appSessions = services.NewAppSessionService(db, rm, users, resolver, hasher, c, logger)
	quotas := services.NewQuotaService(resolver, users, backend)

	app.handler = httpapi.NewHandler(resolver, app.appSessions, quotas, store, c, logger).Router()
	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, logger)

	return app, nil
}

// newSessionStore returns the configured session store and, for Redis, the
// client to close on shutdown.
func newSessionStore(ctx context.Context, c *config.Config) (sessions.Store, io.Closer, error) {
	switch c.SessionStore {
	case config.SessionStoreMemory:
		return sessions.NewMemoryStore(), nil, nil
	case config.SessionStoreRedis:
		rdb, err := sessions.NewRedisClient(ctx, c.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return sessions.NewRedisStore(rdb), rdb, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", c.SessionStore)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := serveHTTP(ctx, app.config.EndpointAddrHTTP, app.handler, app.logger); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// serveHTTP runs an HTTP server on addr until ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, h http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Starting HTTP server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// checkHealth runs every dependency check and reports the outcome through
// setServing. The first failing check wins.
func (app *App) checkHealth(ctx context.Context, setServing func(bool)) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	for _, check := range app.checks {
		if err := check(ctx); err != nil {
			app.logger.Warn(ctx, "dependency check failed", "error", err)
			setServing(false)
			return
		}
	}
	setServing(true)
}

// watchHealth keeps the gRPC health status in line with the dependencies
// until ctx is cancelled.
func (app *App) watchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.checkHealth(ctx, app.grpcServer.SetServing)
		}
	}
}

// Run starts all servers and blocks until a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

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

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.watchHealth(ctx, healthCheckInterval)
	}()

	if interval := app.config.AppSessionReapInterval; interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.appSessions.RunReaper(ctx, interval)
		}()
	}

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
