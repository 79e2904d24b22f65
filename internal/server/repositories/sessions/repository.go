package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// FindActiveByFingerprint returns the session with the given token hash
	// that is active and unexpired at now.
	FindActiveByFingerprint(ctx context.Context, fingerprint string, now time.Time) (*models.Session, error)
	// RevokeByFingerprint marks the session inactive. Revoking an already
	// revoked session succeeds again.
	RevokeByFingerprint(ctx context.Context, fingerprint string) (*models.Session, error)
	// RevokeAllForAccount marks every active session of the account inactive
	// and returns the sessions it changed.
	RevokeAllForAccount(ctx context.Context, accountID string) ([]models.Session, error)
	// TouchAccountLogin records a successful login on the owning account:
	// last_login is set and the lockout state cleared.
	TouchAccountLogin(ctx context.Context, accountID string) error
}
