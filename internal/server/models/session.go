package models

import "time"

// Session is a row of the user_sessions table. Only the SHA-256 fingerprint
// of the bearer token is stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	IPAddress *string
	UserAgent *string
	ExpiresAt time.Time
	IsActive  bool
	CreatedAt time.Time
}

// Live reports whether the session is active and unexpired at now.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
