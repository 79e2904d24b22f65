// Package lockout decides when repeated failed logins lock an account.
//
// An account is Locked while locked_until lies in the future and Normal
// otherwise. Reaching the failure threshold sets locked_until; a successful
// login resets the counter and clears the lock. Lock expiry alone does not
// reset the counter, so the next failure after expiry locks again.
package lockout

import (
	"time"

	"github.com/dmitrijs2005/cerberus/internal/server/models"
)

const (
	DefaultThreshold = 5
	DefaultDuration  = 15 * time.Minute
)

type State int

const (
	Normal State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "normal"
}

type Policy struct {
	Threshold int
	Duration  time.Duration
}

// NewPolicy fills non-positive values with the defaults.
func NewPolicy(threshold int, d time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if d <= 0 {
		d = DefaultDuration
	}
	return Policy{Threshold: threshold, Duration: d}
}

// State classifies acc at now.
func (p Policy) State(acc *models.Account, now time.Time) State {
	if acc.LockedUntil != nil && now.Before(*acc.LockedUntil) {
		return Locked
	}
	return Normal
}

// LockUntil is the lock expiry for a lock triggered at now.
func (p Policy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// Reached reports whether attempts consecutive failures trigger a lock.
func (p Policy) Reached(attempts int) bool {
	return attempts >= p.Threshold
}
