package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockledger/internal/core/context"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret", "stockledger"))
	user := appctx.UserContext{
		UserID:      "u-1",
		Permissions: []string{"inventory.period.close"},
		OrgIDs:      []string{"org-1"},
	}

	token, expiresAt, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, []string{"inventory.period.close"}, got.Permissions)
	assert.Equal(t, []string{"org-1"}, got.OrgIDs)
	assert.False(t, got.IsAdmin)
}

func TestJWT_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("a", "stockledger")).
		GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("b", "stockledger")).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWT_RejectsWrongIssuer(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("a", "other")).
		GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("a", "stockledger")).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWT_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("a", "stockledger")
	cfg.AccessTokenTTL = -time.Minute
	token, _, err := NewJWTService(cfg).GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("a", "stockledger")).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWT_RequiresUserID(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("a", "stockledger"))
	token, _, err := svc.GenerateAccessToken(appctx.UserContext{})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorContains(t, err, "uid")
}
