// Package sessioncache remembers recent session lookups so the auth gate
// does not hit PostgreSQL on every request. The database stays the source of
// truth: a miss or a cache error always falls back to it.
package sessioncache

import (
	"context"
	"time"
)

type State int

const (
	Unknown State = iota
	Active
	Revoked
)

type Cache interface {
	Lookup(ctx context.Context, sessionID string) (State, error)
	// MarkActive records a confirmed live session for ttl. It never
	// overwrites a revocation.
	MarkActive(ctx context.Context, sessionID string, ttl time.Duration) error
	// MarkRevoked records a revocation for ttl, replacing any active marker.
	MarkRevoked(ctx context.Context, sessionID string, ttl time.Duration) error
	// Forget drops whatever is cached for the session.
	Forget(ctx context.Context, sessionID string) error
}

// Nop is used when no redis address is configured.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (State, error)            { return Unknown, nil }
func (Nop) MarkActive(context.Context, string, time.Duration) error  { return nil }
func (Nop) MarkRevoked(context.Context, string, time.Duration) error { return nil }
func (Nop) Forget(context.Context, string) error                     { return nil }
