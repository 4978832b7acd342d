package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRole tests case-insensitive role parsing and role ordering.
func TestParseRole(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Role
		level int
	}{
		{name: "canonical user", input: "User", want: RoleUser, level: 1},
		{name: "lowercase admin", input: "admin", want: RoleAdmin, level: 2},
		{name: "padded", input: "  ADMIN ", want: RoleAdmin, level: 2},
		{name: "unknown", input: "guest", want: Role("guest"), level: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role := ParseRole(tt.input)
			assert.Equal(t, tt.want, role)
			assert.Equal(t, tt.level, role.Level())
		})
	}

	assert.True(t, RoleAdmin.AtLeast(RoleUser))
	assert.False(t, RoleUser.AtLeast(RoleAdmin))
	assert.True(t, Identity{Username: "root", Role: "admin"}.IsAdmin())
	assert.False(t, Identity{Username: "bob", Role: RoleUser}.IsAdmin())
}

// TestJWTRoundTrip tests that issued tokens verify back to the same identity.
func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret", Issuer: "ichat", TTL: time.Hour})

	token, err := m.Issue(Identity{Username: "alice", Role: RoleAdmin})
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, RoleAdmin, id.Role)
}

// TestJWTDefaultsRole tests that identities without a role are issued as users.
func TestJWTDefaultsRole(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret"})

	token, err := m.Issue(Identity{Username: "bob"})
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, id.Role)
}

// TestJWTRejections tests expired, foreign and empty tokens.
func TestJWTRejections(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret", TTL: time.Minute})
	token, err := m.Issue(Identity{Username: "alice"})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		late := NewJWTManager(JWTConfig{Secret: "s3cret"})
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Verify(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager(JWTConfig{Secret: "other"})
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		strict := NewJWTManager(JWTConfig{Secret: "s3cret", Issuer: "somebody-else"})
		_, err := strict.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := m.Verify("  ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

// TestTokenFromRequest tests token extraction precedence.
func TestTokenFromRequest(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws?token=q", http.NoBody)
		r.Header.Set("Authorization", "Bearer h")
		assert.Equal(t, "q", TokenFromRequest(r))
	})

	t.Run("header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		r.Header.Set("Authorization", "bearer h")
		assert.Equal(t, "h", TokenFromRequest(r))
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		r.AddCookie(&http.Cookie{Name: "token", Value: "c"})
		assert.Equal(t, "c", TokenFromRequest(r))
	})

	t.Run("none", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		r.Header.Set("Authorization", "Basic abc")
		assert.Empty(t, TokenFromRequest(r))
	})
}
