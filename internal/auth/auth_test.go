package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm, err := NewTokenManager(JWTConfig{
		SecretKey:        "access-secret",
		RefreshSecretKey: "refresh-secret",
		Algorithm:        "HS256",
		AccessTokenTTL:   time.Minute,
		RefreshTokenTTL:  time.Hour,
	})
	require.NoError(t, err)

	op := NewRegistry().Create("alice", "irrelevant-hash")

	pair, err := tm.GenerateTokenPair(op)
	require.NoError(t, err)

	claims, err := tm.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	_, err = tm.ValidateAccessToken(pair.RefreshToken)
	assert.Error(t, err, "refresh token must not validate as an access token")

	refreshClaims, err := tm.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, op.ID, refreshClaims.OperatorID)
}

func TestPasswordHashAndVerify(t *testing.T) {
	pm := NewPasswordManager(bcryptTestCost)

	hash, err := pm.HashPassword("CorrectHorse123!")
	require.NoError(t, err)

	assert.NoError(t, pm.VerifyPassword(hash, "CorrectHorse123!"))
	assert.Error(t, pm.VerifyPassword(hash, "wrong-password"))
}

func TestRegistryFind(t *testing.T) {
	r := NewRegistry()
	r.Create("bob", "hash")

	op, ok := r.Find("bob")
	require.True(t, ok)
	assert.Equal(t, "bob", op.Username)

	_, ok = r.Find("missing")
	assert.False(t, ok)
}

const bcryptTestCost = 4
