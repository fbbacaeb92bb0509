package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager("test-secret", "evura", time.Hour)

	token, issued, err := m.GenerateAccessToken("u-1", "doctor", "house")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, "house", claims.Username)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	token, _, err := NewJWTManager("one", "evura", time.Hour).GenerateAccessToken("u-1", "patient", "ann")
	require.NoError(t, err)

	_, err = NewJWTManager("two", "evura", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewJWTManager("s", "evura", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.GenerateAccessToken("u-1", "patient", "ann")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: "u-1", Role: "doctor", RegisteredClaims: jwt.RegisteredClaims{Issuer: "evura"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTManager("s", "evura", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
