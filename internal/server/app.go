// Package server wires storage, services and the HTTP and gRPC transports
// of gophauth and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	rdb      redis.UniversalClient
	runner   dbx.Runner
	users    *services.UserService
	resolver *services.IdentityResolver
	limiter  httpapi.Limiter
	proxies  httpapi.TrustedProxies
}

// openRedis returns nil when no Redis address is configured.
func openRedis(ctx context.Context, c *config.Config) (redis.UniversalClient, error) {
	if c.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         c.RedisAddr,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  c.StoreTimeout,
		ReadTimeout:  c.StoreTimeout,
		WriteTimeout: c.StoreTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// openStorage picks the backend from the DSN: memory:// keeps everything in
// process, anything else is a PostgreSQL DSN opened through pgx.
func (app *App) openStorage(ctx context.Context) (repomanager.RepositoryManager, error) {
	c := app.config

	if c.DatabaseDSN == config.MemoryDSN {
		app.runner = dbx.NewSerialRunner()
		app.logger.Warn(ctx, "using in-memory storage; data is lost on exit")
		return repomanager.NewInMemoryRepositoryManager(app.rdb), nil
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	app.db = db
	app.runner = dbx.NewSQLRunner(db)

	var opts []repomanager.Option
	if app.rdb != nil {
		opts = append(opts, repomanager.WithRedis(app.rdb))
	}
	m := repomanager.NewPostgresRepositoryManager(opts...)

	pingCtx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return m, nil
}

func NewApp(c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	app := &App{config: c, logger: logger}

	ctx := context.Background()

	rdb, err := openRedis(ctx, c)
	if err != nil {
		return nil, err
	}
	app.rdb = rdb

	m, err := app.openStorage(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	registry := services.NewRevocationRegistry(app.runner, m, logger)
	sessions := services.NewSessionStore(app.runner, m, c.SessionValidityDuration, logger)
	app.users = services.NewUserService(app.runner, m, c, registry, sessions, logger)
	app.resolver = services.NewIdentityResolver(app.users.Verifier(), sessions, app.runner, m, logger)

	app.proxies, err = httpapi.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("config: %w", err)
	}

	switch {
	case c.LoginRateLimit <= 0:
		// login is not rate limited
	case rdb != nil:
		app.limiter = httpapi.NewRedisLimiter(rdb, c.LoginRateLimit, logger)
	default:
		app.limiter = httpapi.NewMemoryLimiter(c.LoginRateLimit)
	}

	if c.AdminUsername != "" && c.AdminPassword != "" {
		if err := app.users.EnsureAdmin(ctx, c.AdminUsername, c.AdminEmail, c.AdminPassword); err != nil {
			app.Close()
			return nil, fmt.Errorf("admin bootstrap: %w", err)
		}
	}

	return app, nil
}

// Close releases store connections.
func (app *App) Close() {
	if app.db != nil {
		_ = app.db.Close()
	}
	if app.rdb != nil {
		_ = app.rdb.Close()
	}
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.users, app.resolver)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	api := httpapi.NewServer(app.users, app.resolver, app.limiter, app.config.SessionValidityDuration, app.logger,
		httpapi.WithTrustedProxies(app.proxies))
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// sweep runs one janitor pass.
func (app *App) sweep(ctx context.Context, now time.Time) {
	st, err := app.users.Prune(ctx)
	if err != nil {
		app.logger.Warn(ctx, "prune failed", "error", err)
	}
	idle := 0
	if ml, ok := app.limiter.(*httpapi.MemoryLimiter); ok {
		idle = ml.Sweep(now)
	}
	app.logger.Debug(ctx, "pruned expired records",
		"blacklist", st.Blacklist, "sessions", st.Sessions, "refresh_tokens", st.RefreshTokens,
		"idle_limiters", idle)
}

// runJanitor prunes expired revocations, sessions, refresh records and idle
// rate limiter buckets.
func (app *App) runJanitor(ctx context.Context) {
	if app.config.PruneInterval <= 0 {
		return
	}
	ticker := time.NewTicker(app.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			app.sweep(ctx, now)
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...", "refresh_policy", app.config.RefreshPolicy)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.runJanitor(ctx)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
}
