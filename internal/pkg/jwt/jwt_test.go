package jwt_test

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdlend/crowdlend-api/internal/pkg/jwt"
	"github.com/crowdlend/crowdlend-api/internal/pkg/jwt/jwttest"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token := jwttest.AccessToken(t, "secret", time.Minute, userID, "investor", false)

	claims, err := jwt.NewService("secret").ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "investor", claims.Role)
}

func TestExpiredToken(t *testing.T) {
	token := jwttest.AccessToken(t, "secret", -time.Minute, uuid.New(), "borrower", false)

	_, err := jwt.NewService("secret").ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrExpiredToken)
}

func TestWrongSecret(t *testing.T) {
	token := jwttest.AccessToken(t, "secret-a", time.Minute, uuid.New(), "borrower", false)

	_, err := jwt.NewService("secret-b").ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestRejectsNonAccessTokenType(t *testing.T) {
	claims := jwt.Claims{
		UserID: uuid.New(),
		Type:   "refresh",
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = jwt.NewService("secret").ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}
