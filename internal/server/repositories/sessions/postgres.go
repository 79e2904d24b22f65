// Package sessions persists login sessions in PostgreSQL, keyed by the
// SHA-256 fingerprint of their bearer token.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/dbx"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO user_sessions (id, user_id, token_hash, ip_address, user_agent, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	s.IsActive = true
	return nil
}

func (r *PostgresRepository) FindActiveByFingerprint(ctx context.Context, fingerprint string, now time.Time) (*models.Session, error) {
	query :=
		`SELECT id, user_id, token_hash, ip_address, user_agent, expires_at, is_active, created_at
		 FROM user_sessions
		 WHERE token_hash = $1 AND is_active = true AND expires_at > $2
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	s := &models.Session{}
	var ip, ua sql.NullString
	err := r.db.QueryRowContext(ctx, query, fingerprint, now).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &ip, &ua, &s.ExpiresAt, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.IPAddress = nullString(ip)
	s.UserAgent = nullString(ua)
	return s, nil
}

func (r *PostgresRepository) RevokeByFingerprint(ctx context.Context, fingerprint string) (*models.Session, error) {
	query :=
		`UPDATE user_sessions SET is_active = false
		 WHERE token_hash = $1
		 RETURNING id, user_id, expires_at
		 `

	s := &models.Session{TokenHash: fingerprint}
	err := r.db.QueryRowContext(ctx, query, fingerprint).Scan(&s.ID, &s.UserID, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) RevokeAllForAccount(ctx context.Context, accountID string) ([]models.Session, error) {
	query :=
		`UPDATE user_sessions SET is_active = false
		 WHERE user_id = $1 AND is_active = true
		 RETURNING id, user_id, expires_at
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var revoked []models.Session
	for rows.Next() {
		s := models.Session{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		revoked = append(revoked, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

func (r *PostgresRepository) TouchAccountLogin(ctx context.Context, accountID string) error {
	query :=
		`UPDATE users
		 SET last_login = NOW(), failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
