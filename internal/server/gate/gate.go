// Package gate authenticates inbound requests before they reach a handler.
//
// A request moves through fixed stages: public paths are allowed outright;
// otherwise the bearer token is extracted, verified and, when a session
// checker is configured, matched against an open session. The first stage
// that fails rejects the request.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/logging"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
)

var (
	ErrMissingCredentials = errors.New("authorization header missing")
	ErrSessionRevoked     = errors.New("session is no longer active")
)

// TokenVerifier is satisfied by *auth.TokenService.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SessionChecker is satisfied by *services.AccountService.
type SessionChecker interface {
	SessionActive(ctx context.Context, claims *auth.Claims, token string) (bool, error)
}

type request struct {
	path   string
	header string
	token  string
	claims *auth.Claims
}

type outcome int

const (
	next outcome = iota
	allow
)

type stage func(ctx context.Context, r *request) (outcome, error)

type Gate struct {
	public   map[string]struct{}
	tokens   TokenVerifier
	sessions SessionChecker
	logger   logging.Logger
	stages   []stage
}

type Option func(*Gate)

// WithPublicPaths adds exact paths served without authentication.
func WithPublicPaths(paths ...string) Option {
	return func(g *Gate) {
		for _, p := range paths {
			g.public[p] = struct{}{}
		}
	}
}

// WithSessionChecker enables the revocation check.
func WithSessionChecker(sc SessionChecker) Option {
	return func(g *Gate) { g.sessions = sc }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

func New(tokens TokenVerifier, opts ...Option) *Gate {
	g := &Gate{
		public: map[string]struct{}{},
		tokens: tokens,
		logger: logging.Nop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.stages = []stage{g.classify, g.extract, g.verify}
	if g.sessions != nil {
		g.stages = append(g.stages, g.checkSession)
	}
	return g
}

// IsPublic reports whether path bypasses authentication.
func (g *Gate) IsPublic(path string) bool {
	_, ok := g.public[path]
	return ok
}

// Authenticate runs the stages for one request. It returns (nil, nil) for a
// public path and the verified claims otherwise. Rejections wrap
// ErrMissingCredentials, common.ErrTokenMalformed, common.ErrTokenInvalid or
// ErrSessionRevoked; a failing session store surfaces as
// common.ErrStoreUnavailable.
func (g *Gate) Authenticate(ctx context.Context, path, header string) (*auth.Claims, error) {
	r := &request{path: path, header: header}
	for _, st := range g.stages {
		out, err := st(ctx, r)
		if err != nil {
			return nil, err
		}
		if out == allow {
			return r.claims, nil
		}
	}
	return r.claims, nil
}

func (g *Gate) classify(_ context.Context, r *request) (outcome, error) {
	if g.IsPublic(r.path) {
		return allow, nil
	}
	return next, nil
}

func (g *Gate) extract(_ context.Context, r *request) (outcome, error) {
	if r.header == "" {
		return next, ErrMissingCredentials
	}
	token, err := auth.ExtractBearer(r.header)
	if err != nil {
		return next, err
	}
	r.token = token
	return next, nil
}

func (g *Gate) verify(_ context.Context, r *request) (outcome, error) {
	claims, err := g.tokens.Verify(r.token)
	if err != nil {
		return next, err
	}
	r.claims = claims
	return next, nil
}

func (g *Gate) checkSession(ctx context.Context, r *request) (outcome, error) {
	ok, err := g.sessions.SessionActive(ctx, r.claims, r.token)
	if err != nil {
		return next, fmt.Errorf("session check: %w", err)
	}
	if !ok {
		return next, ErrSessionRevoked
	}
	return next, nil
}

// reason is the log label for a rejection.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "missing_header"
	case errors.Is(err, common.ErrTokenMalformed):
		return "malformed_header"
	case errors.Is(err, common.ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, common.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "unknown"
}
