// Package httpapi exposes the account service over HTTP using gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/logging"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
	"github.com/dmitrijs2005/cerberus/internal/server/gate"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/dmitrijs2005/cerberus/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Accounts is the part of services.AccountService the handlers use.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*models.Account, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	Logout(ctx context.Context, header string) error
	CurrentAccount(ctx context.Context, claims *auth.Claims) (*models.Account, error)
	Deactivate(ctx context.Context, claims *auth.Claims) error
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address        string
	accounts       Accounts
	gate           *gate.Gate
	health         Pinger
	logger         logging.Logger
	trustedProxies []string
	engine         *gin.Engine
}

type Option func(*Server)

// WithTrustedProxies sets the proxies whose X-Forwarded-For is used for the
// client address. Without it every forwarding header is ignored.
func WithTrustedProxies(proxies []string) Option {
	return func(s *Server) { s.trustedProxies = proxies }
}

func NewServer(address string, accounts Accounts, g *gate.Gate, health Pinger, l logging.Logger, opts ...Option) (*Server, error) {
	registerValidators()

	s := &Server{
		address:  address,
		accounts: accounts,
		gate:     g,
		health:   health,
		logger:   l.With("module", "http_server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(s.trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(requestID(), s.recovery(), s.requestLogger(), s.gate.Gin())

	r.GET("/", s.handleHealth)
	r.GET("/health", s.handleHealth)

	a := r.Group("/auth")
	a.POST("/register", s.handleRegister)
	a.POST("/login", s.handleLogin)
	a.POST("/logout", s.handleLogout)
	a.POST("/refresh", s.handleRefresh)
	a.GET("/me", s.handleMe)

	r.DELETE("/users/me", s.handleDeactivate)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, failure("Not found"))
	})
	return r, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.address, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
