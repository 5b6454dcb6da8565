package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nrep-ug/mysql-monitor/pkg/auth"
)

// JWTTestHelper provides utilities for JWT testing
type JWTTestHelper struct {
	Secret []byte
}

// NewJWTTestHelper creates a new JWT test helper with a default test secret
func NewJWTTestHelper() *JWTTestHelper {
	return &JWTTestHelper{
		Secret: []byte("test-secret-for-unit-tests"),
	}
}

// GenerateValidJWT generates a valid one-hour token for testing
func (h *JWTTestHelper) GenerateValidJWT(email, username string) string {
	token, _, err := auth.GenerateJWT(email, username, time.Hour, h.Secret)
	if err != nil {
		panic(err)
	}
	return token
}

// GenerateExpiredJWT generates an expired JWT token for testing
func (h *JWTTestHelper) GenerateExpiredJWT(email, username string) string {
	return h.sign(jwt.SigningMethodHS256, h.Secret, &auth.Claims{
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	})
}

// GenerateJWTWithWrongSecret generates a JWT with wrong secret for testing
func (h *JWTTestHelper) GenerateJWTWithWrongSecret(email, username string) string {
	token, _, err := auth.GenerateJWT(email, username, time.Hour, []byte("wrong-secret"))
	if err != nil {
		panic(err)
	}
	return token
}

// GenerateMalformedJWT generates a malformed JWT for testing error scenarios
func (h *JWTTestHelper) GenerateMalformedJWT() string {
	return "invalid.jwt.token.format"
}

// Authenticator returns an Authenticator using the helper's secret and an in-memory denylist.
func (h *JWTTestHelper) Authenticator() *auth.Authenticator {
	return auth.NewAuthenticator(h.Secret, auth.NewMemoryDenylist())
}

func (h *JWTTestHelper) sign(method jwt.SigningMethod, key any, claims *auth.Claims) string {
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		panic(err)
	}
	return token
}
