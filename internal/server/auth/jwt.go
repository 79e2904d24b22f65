package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session token: sub carries the account id.
type Claims struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string { return c.Subject }

// Token is a signed session token together with its validity window.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now, for tests that need to step past expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token service: empty signing secret")
	}
	if cfg.Expiration <= 0 {
		return nil, errors.New("token service: expiration must be positive")
	}
	s := &TokenService{secret: cfg.Secret, expiration: cfg.Expiration, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Expiration is the configured token lifetime.
func (s *TokenService) Expiration() time.Duration { return s.expiration }

// Issue signs a token for acc bound to sessionID. Times are truncated to
// whole seconds so the returned expiry equals the exp claim.
func (s *TokenService) Issue(acc *models.Account, sessionID string) (*Token, error) {
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(s.expiration)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username:  acc.Username,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Value: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm and expiry, returning the claims. Every
// failure wraps common.ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, common.ErrTokenInvalid
	}

	// exp is checked again against our own clock.
	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", common.ErrTokenInvalid)
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing subject or session", common.ErrTokenInvalid)
	}
	return claims, nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.secret, nil
}
