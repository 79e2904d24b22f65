package lockout

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(0, 0)
	assert.Equal(t, DefaultThreshold, p.Threshold)
	assert.Equal(t, DefaultDuration, p.Duration)

	p = NewPolicy(3, time.Minute)
	assert.Equal(t, 3, p.Threshold)
	assert.Equal(t, time.Minute, p.Duration)
}

func TestPolicy_State(t *testing.T) {
	p := NewPolicy(5, 15*time.Minute)
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.Equal(t, Normal, p.State(&models.Account{}, now))
	assert.Equal(t, Locked, p.State(&models.Account{LockedUntil: &future}, now))
	assert.Equal(t, Normal, p.State(&models.Account{LockedUntil: &past}, now))
	assert.Equal(t, Normal, p.State(&models.Account{LockedUntil: &now}, now))
	assert.Equal(t, "locked", Locked.String())
	assert.Equal(t, "normal", Normal.String())
}

func TestPolicy_Reached(t *testing.T) {
	p := NewPolicy(5, 15*time.Minute)

	for attempts := 0; attempts < 5; attempts++ {
		assert.False(t, p.Reached(attempts), attempts)
	}
	assert.True(t, p.Reached(5))
	assert.True(t, p.Reached(6), "counter is not reset when a lock expires")
}

func TestPolicy_LockUntil(t *testing.T) {
	p := NewPolicy(5, 15*time.Minute)
	now := time.Now()

	until := p.LockUntil(now)
	assert.Equal(t, now.Add(15*time.Minute), until)
	assert.Equal(t, Locked, p.State(&models.Account{LockedUntil: &until}, now.Add(14*time.Minute)))
	assert.Equal(t, Normal, p.State(&models.Account{LockedUntil: &until}, now.Add(15*time.Minute)))
}
