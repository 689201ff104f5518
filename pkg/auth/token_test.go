package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "threadline",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: 42,
		Email:  "jo@example.com",
		Role:   enums.RoleUser,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, signed)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "jo@example.com", claims.Email)
	assert.Equal(t, enums.RoleUser, claims.Role)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.False(t, claims.IsAdmin())
	assert.WithinDuration(t, now.Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()

	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: 1, Email: "a@b.c", Role: enums.RoleUser,
	})
	require.NoError(t, err)

	other := cfg
	other.Secret = "different-secret"
	_, err = ParseAccessToken(other, signed)
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()

	signed, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		UserID: 1, Email: "a@b.c", Role: enums.RoleUser,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, signed)
	require.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	other := cfg
	other.Issuer = "someone-else"

	signed, err := MintAccessToken(other, time.Now(), AccessTokenPayload{
		UserID: 1, Email: "a@b.c", Role: enums.RoleUser,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, signed)
	require.Error(t, err)
}

func TestMintRejectsInvalidPayload(t *testing.T) {
	cfg := testJWTConfig()

	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: 0, Email: "a@b.c", Role: enums.RoleUser,
	})
	assert.Error(t, err)

	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: 1, Email: "a@b.c", Role: enums.Role("SuperUser"),
	})
	assert.Error(t, err)

	missingSecret := cfg
	missingSecret.Secret = ""
	_, err = MintAccessToken(missingSecret, time.Now(), AccessTokenPayload{
		UserID: 1, Email: "a@b.c", Role: enums.RoleUser,
	})
	assert.Error(t, err)
}

func TestMintAdminRole(t *testing.T) {
	cfg := testJWTConfig()

	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: 7, Email: "root@example.com", Role: enums.RoleAdmin,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, signed)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}
