// Package server wires petauth together: configuration, storage, the
// authentication service and the HTTP and gRPC transports.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/config"
	"github.com/dmitrijs2005/petauth/internal/server/gate"
	"github.com/dmitrijs2005/petauth/internal/server/httpapi"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/petauth/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/petauth/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	service *services.AuthService
	gate    *gate.Authenticator
	closers []func() error
}

// NewApp opens the database, applies migrations and builds the service
// graph. Close releases what NewApp opened.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := OpenDB(ctx, c)
	if err != nil {
		return nil, err
	}
	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = app.Close()
		return nil, err
	}

	sessions, closeSessions, err := newSessionStore(c, db, m)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if closeSessions != nil {
		app.closers = append(app.closers, closeSessions)
	}

	codec, err := auth.NewTokenCodec([]byte(c.SecretKey), c.Issuer)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.service, err = services.NewAuthService(db, m, sessions, codec, auth.NewBcryptEncoder(c.BcryptCost), c, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.gate = gate.NewAuthenticator(codec, app.service, logger, gate.WithRefreshTimeout(4*c.StoreTimeout))

	logger.Info(ctx, "app initialized", "store", c.StoreBackend)
	return app, nil
}

// OpenDB opens and pings the PostgreSQL database named by the config.
func OpenDB(ctx context.Context, c *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// newSessionStore picks the refresh record backend. The returned closer
// may be nil.
func newSessionStore(c *config.Config, db *sql.DB, m repomanager.RepositoryManager) (refreshtokens.Store, func() error, error) {
	switch c.StoreBackend {
	case config.StorePostgres:
		return m.RefreshTokens(db), nil, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:         c.RedisAddr,
			Password:     c.RedisPassword,
			DB:           c.RedisDB,
			ReadTimeout:  c.StoreTimeout,
			WriteTimeout: c.StoreTimeout,
		})
		return refreshtokens.NewRedisStore(rdb, refreshtokens.DefaultRedisPrefix), rdb.Close, nil
	case config.StoreMemory:
		return refreshtokens.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

// Service exposes the authentication service for operator tooling.
func (app *App) Service() *services.AuthService {
	return app.service
}

func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run serves HTTP and gRPC until a signal arrives or one of the servers
// fails, then shuts both down.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := app.initSignalHandler(ctx)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	httpSrv := httpapi.NewServer(app.config.HTTPAddr,
		httpapi.NewRouter(app.service, app.gate, app.logger),
		app.config.ShutdownTimeout, app.logger)
	grpcSrv := gs.NewGRPCServer(app.config.GRPCAddr, app.gate, app.service, app.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Run(ctx) })
	g.Go(func() error { return grpcSrv.Run(ctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}
