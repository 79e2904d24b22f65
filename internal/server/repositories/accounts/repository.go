package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/server/models"
)

type Repository interface {
	// Create inserts acc and fills its server-side defaults. A username or
	// email collision yields common.ErrorAlreadyExists.
	Create(ctx context.Context, acc *models.Account) (*models.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	GetActiveByUsername(ctx context.Context, username string) (*models.Account, error)
	GetActiveByID(ctx context.Context, id string) (*models.Account, error)
	// RecordFailedLogin increments the failure counter and, once it reaches
	// threshold, sets locked_until to lockUntil. It returns the new values.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	Deactivate(ctx context.Context, id string) error
}
