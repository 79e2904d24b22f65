// Package services contains the server-side business logic. AccountService
// implements registration, login with lockout, logout, the current-account
// lookup and the session check used by the auth gate.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/dbx"
	"github.com/dmitrijs2005/cerberus/internal/logging"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
	"github.com/dmitrijs2005/cerberus/internal/server/config"
	"github.com/dmitrijs2005/cerberus/internal/server/lockout"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/dmitrijs2005/cerberus/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cerberus/internal/server/sessioncache"
	"github.com/google/uuid"
)

// PasswordHasher is the part of auth.Hasher the service uses.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// TokenIssuer is the part of auth.TokenService the service uses.
type TokenIssuer interface {
	Issue(acc *models.Account, sessionID string) (*auth.Token, error)
}

type LoginRequest struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

type AccountService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	hasher       PasswordHasher
	tokens       TokenIssuer
	policy       lockout.Policy
	cache        sessioncache.Cache
	cacheTTL     time.Duration
	storeTimeout time.Duration
	logger       logging.Logger
	now          func() time.Time
}

type Option func(*AccountService)

func WithSessionCache(c sessioncache.Cache) Option {
	return func(s *AccountService) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

// NewAccountService constructs an AccountService from repositories and
// server config.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, h PasswordHasher, t TokenIssuer,
	cfg *config.Config, l logging.Logger, opts ...Option) *AccountService {
	s := &AccountService{
		db:           db,
		repomanager:  m,
		hasher:       h,
		tokens:       t,
		policy:       lockout.NewPolicy(cfg.LockoutThreshold, cfg.LockoutDuration),
		cache:        sessioncache.Nop{},
		cacheTTL:     cfg.SessionCacheTTL,
		storeTimeout: cfg.StoreTimeout,
		logger:       l.With("module", "accounts"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active, unverified account. A weak password yields
// *auth.WeakPasswordError; a taken username or email ErrDuplicateAccount.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)

	var exists bool
	if err := s.store(ctx, func(ctx context.Context) (err error) {
		exists, err = repo.ExistsByUsernameOrEmail(ctx, username, email)
		return err
	}); err != nil {
		return nil, s.storeError(ctx, "checking account uniqueness", err)
	}
	if exists {
		return nil, common.ErrDuplicateAccount
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error(ctx, "hashing password", "error", err)
		return nil, common.ErrorInternal
	}

	acc := &models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.store(ctx, func(ctx context.Context) (err error) {
		acc, err = repo.Create(ctx, acc)
		return err
	}); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrDuplicateAccount
		}
		return nil, s.storeError(ctx, "creating account", err)
	}

	s.logger.Info(ctx, "account registered", "account_id", acc.ID, "username", acc.Username)
	return acc, nil
}

// Login verifies credentials and opens a session. Unknown usernames,
// inactive accounts and wrong passwords all yield ErrInvalidCredentials;
// a locked account yields ErrAccountLocked without the password being
// checked.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	repo := s.repomanager.Accounts(s.db)

	var acc *models.Account
	if err := s.store(ctx, func(ctx context.Context) (err error) {
		acc, err = repo.GetActiveByUsername(ctx, req.Username)
		return err
	}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "login rejected", "username", req.Username, "reason", "unknown_account")
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.storeError(ctx, "loading account", err)
	}

	now := s.now()
	if s.policy.State(acc, now) == lockout.Locked {
		s.logger.Warn(ctx, "login rejected", "account_id", acc.ID, "reason", "locked", "locked_until", acc.LockedUntil)
		return nil, common.ErrAccountLocked
	}

	ok, err := s.hasher.Verify(req.Password, acc.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "verifying password", "account_id", acc.ID, "error", err)
		return nil, common.ErrorInternal
	}
	if !ok {
		return nil, s.recordFailure(ctx, acc, now)
	}

	sessionID := uuid.NewString()
	token, err := s.tokens.Issue(acc, sessionID)
	if err != nil {
		s.logger.Error(ctx, "issuing token", "account_id", acc.ID, "error", err)
		return nil, common.ErrorInternal
	}

	session := &models.Session{
		ID:        sessionID,
		UserID:    acc.ID,
		TokenHash: auth.Fingerprint(token.Value),
		IPAddress: optional(req.IPAddress),
		UserAgent: optional(req.UserAgent),
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.IssuedAt,
	}

	if err := s.store(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			sessions := s.repomanager.Sessions(tx)
			if err := sessions.Create(ctx, session); err != nil {
				return err
			}
			return sessions.TouchAccountLogin(ctx, acc.ID)
		})
	}); err != nil {
		return nil, s.storeError(ctx, "opening session", err)
	}

	acc.LastLogin = &now
	acc.FailedLoginAttempts = 0
	acc.LockedUntil = nil

	s.logger.Info(ctx, "login succeeded", "account_id", acc.ID, "session_id", sessionID)
	return &LoginResult{Token: token.Value, ExpiresAt: token.ExpiresAt, Account: acc}, nil
}

func (s *AccountService) recordFailure(ctx context.Context, acc *models.Account, now time.Time) error {
	repo := s.repomanager.Accounts(s.db)

	var (
		attempts int
		until    *time.Time
	)
	if err := s.store(ctx, func(ctx context.Context) (err error) {
		attempts, until, err = repo.RecordFailedLogin(ctx, acc.ID, s.policy.Threshold, s.policy.LockUntil(now))
		return err
	}); err != nil {
		return s.storeError(ctx, "recording failed login", err)
	}

	if s.policy.Reached(attempts) && until != nil {
		s.logger.Warn(ctx, "account locked", "account_id", acc.ID, "failed_attempts", attempts, "locked_until", *until)
	} else {
		s.logger.Info(ctx, "login rejected", "account_id", acc.ID, "reason", "bad_password", "failed_attempts", attempts)
	}
	return common.ErrInvalidCredentials
}

// Logout revokes the session behind the bearer token in header. A missing or
// malformed header, or an unknown token, is a successful no-op. An error
// after the revocation committed means the cache could not be cleared.
func (s *AccountService) Logout(ctx context.Context, header string) error {
	token, err := auth.ExtractBearer(header)
	if err != nil {
		s.logger.Debug(ctx, "logout without bearer token")
		return nil
	}
	return s.revoke(ctx, auth.Fingerprint(token))
}

func (s *AccountService) revoke(ctx context.Context, fingerprint string) error {
	var session *models.Session
	if err := s.store(ctx, func(ctx context.Context) (err error) {
		session, err = s.repomanager.Sessions(s.db).RevokeByFingerprint(ctx, fingerprint)
		return err
	}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return s.storeError(ctx, "revoking session", err)
	}

	s.logger.Info(ctx, "session revoked", "account_id", session.UserID, "session_id", session.ID)
	return s.uncache(ctx, session.ID, session.ExpiresAt)
}

// uncache makes sure no active marker outlives a revocation committed to the
// store. It writes a revoked marker and, if that fails, deletes the key. An
// error means a stale active marker may still be served until it expires.
func (s *AccountService) uncache(ctx context.Context, sessionID string, expiresAt time.Time) error {
	err := s.cache.MarkRevoked(ctx, sessionID, expiresAt.Sub(s.now()))
	if err == nil {
		return nil
	}
	s.logger.Warn(ctx, "caching session revocation", "session_id", sessionID, "error", err)

	if ferr := s.cache.Forget(ctx, sessionID); ferr != nil {
		s.logger.Error(ctx, "evicting revoked session from cache", "session_id", sessionID, "error", ferr)
		return fmt.Errorf("%w: evicting session %s: %w", common.ErrStoreUnavailable, sessionID, errors.Join(err, ferr))
	}
	return nil
}

// CurrentAccount loads the active account named by the token subject.
func (s *AccountService) CurrentAccount(ctx context.Context, claims *auth.Claims) (*models.Account, error) {
	var acc *models.Account
	if err := s.store(ctx, func(ctx context.Context) (err error) {
		acc, err = s.repomanager.Accounts(s.db).GetActiveByID(ctx, claims.AccountID())
		return err
	}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.storeError(ctx, "loading current account", err)
	}
	return acc, nil
}

// Deactivate soft-deletes the caller's account and revokes all of its
// sessions in one transaction, then evicts every revoked session from the
// cache. A cache failure is reported after the store change has committed.
func (s *AccountService) Deactivate(ctx context.Context, claims *auth.Claims) error {
	accountID := claims.AccountID()

	var revoked []models.Session
	if err := s.store(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (err error) {
			if err = s.repomanager.Accounts(tx).Deactivate(ctx, accountID); err != nil {
				return err
			}
			revoked, err = s.repomanager.Sessions(tx).RevokeAllForAccount(ctx, accountID)
			return err
		})
	}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.storeError(ctx, "deactivating account", err)
	}

	s.logger.Info(ctx, "account deactivated", "account_id", accountID, "sessions_revoked", len(revoked))

	var errs []error
	for _, session := range revoked {
		if err := s.uncache(ctx, session.ID, session.ExpiresAt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionActive reports whether the session a verified token belongs to is
// still open. The cache is consulted first; misses and cache errors fall
// back to the store.
func (s *AccountService) SessionActive(ctx context.Context, claims *auth.Claims, token string) (bool, error) {
	state, err := s.cache.Lookup(ctx, claims.SessionID)
	if err != nil {
		s.logger.Warn(ctx, "session cache lookup", "session_id", claims.SessionID, "error", err)
	}
	switch state {
	case sessioncache.Revoked:
		return false, nil
	case sessioncache.Active:
		return true, nil
	}

	now := s.now()
	var session *models.Session
	if err := s.store(ctx, func(ctx context.Context) (err error) {
		session, err = s.repomanager.Sessions(s.db).FindActiveByFingerprint(ctx, auth.Fingerprint(token), now)
		return err
	}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, s.storeError(ctx, "checking session", err)
	}
	if session.ID != claims.SessionID || session.UserID != claims.AccountID() {
		s.logger.Warn(ctx, "token does not match its session", "session_id", session.ID, "claimed_session_id", claims.SessionID)
		return false, nil
	}

	ttl := min(s.cacheTTL, session.ExpiresAt.Sub(now))
	if err := s.cache.MarkActive(ctx, session.ID, ttl); err != nil {
		s.logger.Warn(ctx, "caching active session", "session_id", session.ID, "error", err)
	}
	return true, nil
}

// store runs fn under the per-call store deadline.
func (s *AccountService) store(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := dbx.Bounded(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *AccountService) storeError(ctx context.Context, op string, err error) error {
	if dbx.IsTimeout(err) {
		s.logger.Error(ctx, op+": store timed out", "error", err)
	} else {
		s.logger.Error(ctx, op, "error", err)
	}
	return fmt.Errorf("%w: %s: %w", common.ErrStoreUnavailable, op, err)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
