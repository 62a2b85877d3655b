package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/inventory-ledger/internal/config"
)

func testConfig(issuer string, expiry time.Duration) *config.Config {
	return &config.Config{JWT: config.JWTConfig{
		Secret:            "0123456789abcdef0123456789abcdef",
		Issuer:            issuer,
		AccessTokenExpiry: expiry,
	}}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager(testConfig("inventory-ledger", time.Hour))

	token, err := manager.GenerateAccessToken(7, "ops@example.com", RoleManager)
	require.NoError(t, err)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, RoleManager, claims.Role)
	assert.Equal(t, "ops@example.com", claims.Actor())
}

func TestTokenFromOtherIssuerIsRejected(t *testing.T) {
	token, err := NewJWTManager(testConfig("someone-else", time.Hour)).GenerateAccessToken(1, "", RoleAdmin)
	require.NoError(t, err)

	_, err = NewJWTManager(testConfig("inventory-ledger", time.Hour)).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	manager := NewJWTManager(testConfig("inventory-ledger", -time.Minute))

	token, err := manager.GenerateAccessToken(1, "", RoleAdmin)
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestActorFallsBackToUserID(t *testing.T) {
	claims := &Claims{UserID: 12}
	assert.Equal(t, "user:12", claims.Actor())
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Empty(t, ExtractTokenFromHeader("Basic abc"))
	assert.Empty(t, ExtractTokenFromHeader("Bearer "))
}
