package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/dbx"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/dmitrijs2005/cerberus/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/cerberus/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cerberus/internal/server/sessioncache"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeAccounts struct {
	mu   sync.Mutex
	rows map[string]*models.Account

	existsErr     error
	createErr     error
	getErr        error
	failErr       error
	deactivateErr error
	blockExists   bool
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{rows: map[string]*models.Account{}}
}

func (f *fakeAccounts) Create(ctx context.Context, acc *models.Account) (*models.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *acc
	row.IsActive = true
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	f.rows[row.ID] = &row
	out := row
	return &out, nil
}

func (f *fakeAccounts) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if f.blockExists {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Username == username || r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccounts) GetActiveByUsername(ctx context.Context, username string) (*models.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Username == username && r.IsActive {
			out := *r
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) GetActiveByID(ctx context.Context, id string) (*models.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok && r.IsActive {
		out := *r
		return &out, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	if f.failErr != nil {
		return 0, nil, f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return 0, nil, common.ErrorNotFound
	}
	r.FailedLoginAttempts++
	if r.FailedLoginAttempts >= threshold {
		until := lockUntil
		r.LockedUntil = &until
	}
	return r.FailedLoginAttempts, r.LockedUntil, nil
}

func (f *fakeAccounts) Deactivate(ctx context.Context, id string) error {
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || !r.IsActive {
		return common.ErrorNotFound
	}
	r.IsActive = false
	return nil
}

func (f *fakeAccounts) get(id string) models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

type fakeSessions struct {
	mu       sync.Mutex
	rows     map[string]*models.Session
	accounts *fakeAccounts

	createErr error
	findErr   error
	revokeErr error
	touchErr  error
}

func newFakeSessions(a *fakeAccounts) *fakeSessions {
	return &fakeSessions{rows: map[string]*models.Session{}, accounts: a}
}

func (f *fakeSessions) Create(ctx context.Context, s *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *s
	row.IsActive = true
	f.rows[row.ID] = &row
	return nil
}

func (f *fakeSessions) FindActiveByFingerprint(ctx context.Context, fp string, now time.Time) (*models.Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TokenHash == fp && r.Live(now) {
			out := *r
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSessions) RevokeByFingerprint(ctx context.Context, fp string) (*models.Session, error) {
	if f.revokeErr != nil {
		return nil, f.revokeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TokenHash == fp {
			r.IsActive = false
			out := *r
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSessions) RevokeAllForAccount(ctx context.Context, accountID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var revoked []models.Session
	for _, r := range f.rows {
		if r.UserID == accountID && r.IsActive {
			r.IsActive = false
			revoked = append(revoked, *r)
		}
	}
	return revoked, nil
}

func (f *fakeSessions) get(id string) models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

// writeFailingCache serves lookups from the wrapped cache but can fail
// revocation writes and evictions.
type writeFailingCache struct {
	sessioncache.Cache
	failRevoke bool
	failForget bool
}

func (c *writeFailingCache) MarkRevoked(ctx context.Context, id string, ttl time.Duration) error {
	if c.failRevoke {
		return errBoom{}
	}
	return c.Cache.MarkRevoked(ctx, id, ttl)
}

func (c *writeFailingCache) Forget(ctx context.Context, id string) error {
	if c.failForget {
		return errBoom{}
	}
	return c.Cache.Forget(ctx, id)
}

func (f *fakeSessions) TouchAccountLogin(ctx context.Context, accountID string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	r := f.accounts.rows[accountID]
	now := time.Now()
	r.LastLogin = &now
	r.FailedLoginAttempts = 0
	r.LockedUntil = nil
	return nil
}

func (f *fakeSessions) only() models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		return *r
	}
	return models.Session{}
}

type fakeRepoManager struct {
	a *fakeAccounts
	s *fakeSessions
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository        { return m.a }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository        { return m.s }

type countingHasher struct {
	*auth.Hasher
	verifies int
}

func (h *countingHasher) Verify(password, encoded string) (bool, error) {
	h.verifies++
	return h.Hasher.Verify(password, encoded)
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error)         { return "", errBoom{} }
func (failingHasher) Verify(string, string) (bool, error) { return false, auth.ErrMalformedHash }
