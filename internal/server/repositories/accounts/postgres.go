// Package accounts persists user accounts in PostgreSQL.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/dbx"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const accountColumns = `id, username, email, password_hash, is_active, is_verified,
		 failed_login_attempts, locked_until, last_login, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, acc *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO users (id, username, email, password_hash, is_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING is_active, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		acc.ID, acc.Username, acc.Email, acc.PasswordHash, acc.IsVerified,
	).Scan(&acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return acc, nil
}

func (r *PostgresRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) GetActiveByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users
		 WHERE username = $1 AND is_active = true
		 `
	return scanAccount(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) GetActiveByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users
		 WHERE id = $1 AND is_active = true
		 `
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query :=
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING failed_login_attempts, locked_until
		 `

	var (
		attempts int
		until    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id, threshold, lockUntil).Scan(&attempts, &until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, common.ErrorNotFound
		}
		return 0, nil, fmt.Errorf("db error: %w", err)
	}
	return attempts, nullTime(until), nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET is_active = false, updated_at = NOW()
		 WHERE id = $1 AND is_active = true
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	acc := &models.Account{}
	var lockedUntil, lastLogin sql.NullTime

	err := row.Scan(&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.IsActive, &acc.IsVerified,
		&acc.FailedLoginAttempts, &lockedUntil, &lastLogin, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	acc.LockedUntil = nullTime(lockedUntil)
	acc.LastLogin = nullTime(lastLogin)
	return acc, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
