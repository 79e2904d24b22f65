// Package common defines shared constants and sentinel errors used across
// the Cerberus server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal       = errors.New("internal error")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Login outcomes.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrDuplicateAccount   = errors.New("username or email already exists")

	// Bearer token errors.
	ErrTokenMalformed = errors.New("malformed authorization header")
	ErrTokenInvalid   = errors.New("invalid token")
)
