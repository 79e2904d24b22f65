// Package server wires the Cerberus components together and runs the HTTP
// and gRPC endpoints until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cerberus/internal/logging"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
	"github.com/dmitrijs2005/cerberus/internal/server/config"
	"github.com/dmitrijs2005/cerberus/internal/server/gate"
	"github.com/dmitrijs2005/cerberus/internal/server/httpapi"
	"github.com/dmitrijs2005/cerberus/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cerberus/internal/server/services"
	"github.com/dmitrijs2005/cerberus/internal/server/sessioncache"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/cerberus/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	closers    []io.Closer
	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(c.LogLevel, c.LogFormat, os.Stdout)

	if c.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []io.Closer{db}}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(c.SecretKey),
		Expiration: c.TokenValidityDuration(),
	})
	if err != nil {
		app.close()
		return nil, err
	}
	hasher := auth.NewHasher(auth.HasherConfig{Memory: c.Argon2Memory, Time: c.Argon2Time, Threads: c.Argon2Threads})

	var opts []services.Option
	if c.RedisAddr != "" {
		rdb, err := sessioncache.NewClient(ctx, sessioncache.Config{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		if err != nil {
			app.close()
			return nil, fmt.Errorf("session cache: %w", err)
		}
		app.closers = append(app.closers, rdb)
		opts = append(opts, services.WithSessionCache(sessioncache.NewRedis(rdb)))
	}

	accounts := services.NewAccountService(db, rm, hasher, tokens, c, logger, opts...)

	gateOpts := []gate.Option{gate.WithLogger(logger.With("module", "gate"))}
	if c.CheckSessions {
		gateOpts = append(gateOpts, gate.WithSessionChecker(accounts))
	}
	httpGate := gate.New(tokens, slices.Concat(gateOpts, []gate.Option{gate.WithPublicPaths(c.PublicPaths...)})...)
	grpcGate := gate.New(tokens, slices.Concat(gateOpts, []gate.Option{gate.WithPublicPaths(gs.CheckMethod)})...)

	app.httpServer, err = httpapi.NewServer(c.EndpointAddrHTTP, accounts, httpGate, db, logger,
		httpapi.WithTrustedProxies(c.TrustedProxies))
	if err != nil {
		app.close()
		return nil, err
	}
	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, grpcGate, logger)

	return app, nil
}

func openDB(c *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.DatabaseMaxConns)
	db.SetMaxIdleConns(c.DatabaseMinConns)
	db.SetConnMaxIdleTime(c.DatabaseIdleTimeout)
	return db, nil
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
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

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server", "error", err)
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.grpcServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	app.close()
	app.logger.Info(ctx, "App stopped")
}
