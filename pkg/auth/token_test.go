package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "stockhold", ExpirationMinutes: 30}
}

func signRaw(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestMintAndVerify(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: " user-42 ", Role: enums.MemberRoleCustomer})
	require.NoError(t, err)

	verifier, err := NewVerifier(cfg)
	require.NoError(t, err)
	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.UserID)
	require.Equal(t, "user-42", claims.Subject)
	require.Equal(t, enums.MemberRoleCustomer, claims.Role)
	require.Equal(t, cfg.Issuer, claims.Issuer)
	require.NotEmpty(t, claims.ID)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestVerifyRejections(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	valid, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: "u", Role: enums.MemberRoleAdmin})
	require.NoError(t, err)
	expired, err := MintAccessToken(cfg, now.Add(-2*time.Hour), AccessTokenPayload{UserID: "u", Role: enums.MemberRoleAdmin})
	require.NoError(t, err)

	wrongSecret, wrongIssuer := cfg, cfg
	wrongSecret.Secret = "other"
	wrongIssuer.Issuer = "someone-else"

	future := jwt.NewNumericDate(now.Add(time.Hour))
	cases := []struct {
		name  string
		cfg   config.JWTConfig
		token string
	}{
		{"signature", wrongSecret, valid},
		{"issuer", wrongIssuer, valid},
		{"expired", cfg, expired},
		{"garbage", cfg, "not-a-token"},
		{"unknown role", cfg, signRaw(t, jwt.SigningMethodHS256, []byte(cfg.Secret), &AccessTokenClaims{
			UserID:           "u",
			Role:             "superuser",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: future},
		})},
		{"no user", cfg, signRaw(t, jwt.SigningMethodHS256, []byte(cfg.Secret), &AccessTokenClaims{
			Role:             enums.MemberRoleCustomer,
			RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: future},
		})},
		{"no expiry", cfg, signRaw(t, jwt.SigningMethodHS256, []byte(cfg.Secret), &AccessTokenClaims{
			UserID:           "u",
			Role:             enums.MemberRoleCustomer,
			RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer},
		})},
		{"other algorithm", cfg, signRaw(t, jwt.SigningMethodHS512, []byte(cfg.Secret), &AccessTokenClaims{
			UserID:           "u",
			Role:             enums.MemberRoleCustomer,
			RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: future},
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.cfg, tc.token)
			require.Error(t, err)
		})
	}
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	cfg := testJWTConfig()
	token := signRaw(t, jwt.SigningMethodHS256, []byte(cfg.Secret), &AccessTokenClaims{
		Role: enums.MemberRoleSystem,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   "svc-checkout",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "svc-checkout", claims.UserID)
}

func TestMintValidatesInput(t *testing.T) {
	cfg := testJWTConfig()
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.MemberRoleCustomer})
	require.ErrorIs(t, err, errNoUser)

	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: "u", Role: "ghost"})
	require.Error(t, err)

	_, err = MintAccessToken(config.JWTConfig{}, time.Now(), AccessTokenPayload{UserID: "u", Role: enums.MemberRoleCustomer})
	require.ErrorIs(t, err, errNoSecret)

	_, err = NewVerifier(config.JWTConfig{})
	require.ErrorIs(t, err, errNoSecret)
}
