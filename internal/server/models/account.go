// Package models holds the persisted records of the auth core.
package models

import "time"

// Account is a row of the users table.
type Account struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	IsActive            bool
	IsVerified          bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AccountView is the public projection of an Account. It never carries the
// password hash or lockout state.
type AccountView struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login"`
	IsVerified bool       `json:"is_verified"`
}

func (a *Account) View() AccountView {
	return AccountView{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		CreatedAt:  a.CreatedAt,
		LastLogin:  a.LastLogin,
		IsVerified: a.IsVerified,
	}
}
