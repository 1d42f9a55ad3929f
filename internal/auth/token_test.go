package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	tokens, err := NewTokens("s3cret", "taskshare", WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	raw, err := tokens.Issue(42, "Ana@Example.com")
	require.NoError(t, err)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	clock := now
	tokens, err := NewTokens("s3cret", "taskshare", WithClock(func() time.Time { return clock }), WithTTL(time.Hour))
	require.NoError(t, err)
	valid, err := tokens.Issue(7, "bo@example.com")
	require.NoError(t, err)

	other, err := NewTokens("other", "taskshare", WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	foreign, err := other.Issue(7, "bo@example.com")
	require.NoError(t, err)

	wrongIssuer, err := NewTokens("s3cret", "someone-else", WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	misissued, err := wrongIssuer.Issue(7, "bo@example.com")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"wrong issuer", misissued},
		{"alg none", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Verify(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	t.Run("expired", func(t *testing.T) {
		clock = now.Add(2 * time.Hour)
		_, err := tokens.Verify(valid)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens("", "taskshare")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer   abc ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := BearerToken(r)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrMissingToken, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
