// Package jwttest mints access tokens for tests. Production tokens are issued
// by the auth service; this package signs claims the same way with a shared secret.
package jwttest

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/crowdlend/crowdlend-api/internal/pkg/jwt"
)

// AccessToken signs an access token valid for ttl. A negative ttl yields an expired token.
func AccessToken(t testing.TB, secret string, ttl time.Duration, userID uuid.UUID, role string, blocked bool) string {
	t.Helper()
	now := time.Now()
	claims := jwt.Claims{
		UserID:    userID,
		Role:      role,
		IsBlocked: blocked,
		Type:      jwt.TokenTypeAccess,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  gojwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return token
}
