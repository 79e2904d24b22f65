package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/cerberus/internal/server/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_RejectsTokenReplayedAfterLogout(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	res := f.loginOK(t, "alice")
	header := "Bearer " + res.Token

	g := gate.New(f.tokens, gate.WithPublicPaths("/auth/logout"), gate.WithSessionChecker(f.svc))
	ctx := context.Background()

	claims, err := g.Authenticate(ctx, "/auth/me", header)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	require.NoError(t, f.svc.Logout(ctx, header))

	_, err = g.Authenticate(ctx, "/auth/me", header)
	assert.ErrorIs(t, err, gate.ErrSessionRevoked)

	stateless := gate.New(f.tokens)
	_, err = stateless.Authenticate(ctx, "/auth/me", header)
	assert.NoError(t, err)
}
