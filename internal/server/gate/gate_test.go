package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
	"github.com/dmitrijs2005/cerberus/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	active bool
	err    error
	calls  int
	token  string
}

func (f *fakeSessions) SessionActive(_ context.Context, _ *auth.Claims, token string) (bool, error) {
	f.calls++
	f.token = token
	return f.active, f.err
}

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("gate-secret"), Expiration: time.Hour})
	require.NoError(t, err)
	return ts
}

func issue(t *testing.T, ts *auth.TokenService) string {
	t.Helper()
	tok, err := ts.Issue(&models.Account{ID: "acc-1", Username: "alice"}, "sess-1")
	require.NoError(t, err)
	return tok.Value
}

func TestAuthenticate_PublicPathSkipsEverything(t *testing.T) {
	sessions := &fakeSessions{}
	g := New(newTokens(t), WithPublicPaths("/health"), WithSessionChecker(sessions))

	claims, err := g.Authenticate(context.Background(), "/health", "")
	require.NoError(t, err)
	assert.Nil(t, claims)
	assert.Zero(t, sessions.calls)
}

func TestAuthenticate_PublicPathIgnoresBadHeader(t *testing.T) {
	g := New(newTokens(t), WithPublicPaths("/auth/login"))

	claims, err := g.Authenticate(context.Background(), "/auth/login", "Basic Zm9vOmJhcg==")
	require.NoError(t, err)
	assert.Nil(t, claims)
}

func TestAuthenticate_PublicMatchIsExact(t *testing.T) {
	g := New(newTokens(t), WithPublicPaths("/auth/login"))

	_, err := g.Authenticate(context.Background(), "/auth/login/", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthenticate_Rejections(t *testing.T) {
	ts := newTokens(t)
	other, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("other"), Expiration: time.Hour})
	require.NoError(t, err)
	foreign := issue(t, other)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing header", "", ErrMissingCredentials},
		{"wrong scheme", "Basic abc", common.ErrTokenMalformed},
		{"empty bearer", "Bearer ", common.ErrTokenMalformed},
		{"lowercase scheme", "bearer " + issue(t, ts), common.ErrTokenMalformed},
		{"garbage token", "Bearer nope", common.ErrTokenInvalid},
		{"foreign signature", "Bearer " + foreign, common.ErrTokenInvalid},
	}
	g := New(ts)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := g.Authenticate(context.Background(), "/auth/me", tt.header)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthenticate_ValidTokenWithoutSessionCheck(t *testing.T) {
	ts := newTokens(t)
	g := New(ts)

	claims, err := g.Authenticate(context.Background(), "/auth/me", "Bearer "+issue(t, ts))
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "acc-1", claims.AccountID())
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestAuthenticate_SessionCheck(t *testing.T) {
	ts := newTokens(t)
	token := issue(t, ts)

	t.Run("active", func(t *testing.T) {
		sessions := &fakeSessions{active: true}
		g := New(ts, WithSessionChecker(sessions))

		claims, err := g.Authenticate(context.Background(), "/auth/me", "Bearer "+token)
		require.NoError(t, err)
		assert.NotNil(t, claims)
		assert.Equal(t, 1, sessions.calls)
		assert.Equal(t, token, sessions.token)
	})

	t.Run("revoked", func(t *testing.T) {
		g := New(ts, WithSessionChecker(&fakeSessions{}))

		_, err := g.Authenticate(context.Background(), "/auth/me", "Bearer "+token)
		assert.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("store down", func(t *testing.T) {
		down := fmt.Errorf("%w: find session: %w", common.ErrStoreUnavailable, errors.New("timeout"))
		g := New(ts, WithSessionChecker(&fakeSessions{err: down}))

		_, err := g.Authenticate(context.Background(), "/auth/me", "Bearer "+token)
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	})

	t.Run("invalid token never reaches store", func(t *testing.T) {
		sessions := &fakeSessions{active: true}
		g := New(ts, WithSessionChecker(sessions))

		_, err := g.Authenticate(context.Background(), "/auth/me", "Bearer bad")
		assert.ErrorIs(t, err, common.ErrTokenInvalid)
		assert.Zero(t, sessions.calls)
	})
}

func TestReason(t *testing.T) {
	assert.Equal(t, "missing_header", reason(ErrMissingCredentials))
	assert.Equal(t, "malformed_header", reason(common.ErrTokenMalformed))
	assert.Equal(t, "invalid_token", reason(fmt.Errorf("x: %w", common.ErrTokenInvalid)))
	assert.Equal(t, "session_revoked", reason(ErrSessionRevoked))
	assert.Equal(t, "store_unavailable", reason(common.ErrStoreUnavailable))
	assert.Equal(t, "unknown", reason(errors.New("other")))
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	_, ok = ClaimsFromContext(WithClaims(context.Background(), nil))
	assert.False(t, ok)

	in := &auth.Claims{Username: "alice"}
	out, ok := ClaimsFromContext(WithClaims(context.Background(), in))
	require.True(t, ok)
	assert.Same(t, in, out)
}

func newRouter(g *Gate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(g.Gin())
	handler := func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c.Request.Context())
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, claims.Username)
	}
	r.GET("/health", handler)
	r.GET("/auth/me", handler)
	return r
}

func serve(r http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGin(t *testing.T) {
	ts := newTokens(t)
	token := issue(t, ts)

	t.Run("public", func(t *testing.T) {
		rec := serve(newRouter(New(ts, WithPublicPaths("/health"))), "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("authenticated", func(t *testing.T) {
		rec := serve(newRouter(New(ts)), "/auth/me", "Bearer "+token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})

	for _, header := range []string{"", "Token abc", "Bearer garbage"} {
		t.Run("unauthorized "+header, func(t *testing.T) {
			rec := serve(newRouter(New(ts)), "/auth/me", header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, map[string]any{"success": false, "error": "Authentication required"}, body)
		})
	}

	t.Run("revoked", func(t *testing.T) {
		rec := serve(newRouter(New(ts, WithSessionChecker(&fakeSessions{}))), "/auth/me", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("store down", func(t *testing.T) {
		g := New(ts, WithSessionChecker(&fakeSessions{err: common.ErrStoreUnavailable}))
		rec := serve(newRouter(g), "/auth/me", "Bearer "+token)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, rec.Body.String())
	})
}
