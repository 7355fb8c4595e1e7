package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio-stream/src/helpers"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager(testSecret, "", time.Hour)

	token, err := m.Generate("user-42")
	require.NoError(t, err)

	id, err := m.ValidateCredential(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestValidateMissingCredential(t *testing.T) {
	m := NewJWTManager(testSecret, "", time.Hour)

	_, err := m.ValidateCredential(context.Background(), "")
	assert.ErrorIs(t, err, helpers.ErrMissingCredential)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("other", "", time.Hour).Generate("user-1")
	require.NoError(t, err)

	_, err = NewJWTManager(testSecret, "", time.Hour).ValidateCredential(context.Background(), token)
	var authErr *helpers.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewJWTManager(testSecret, "", -time.Minute)
	token, err := m.Generate("user-1")
	require.NoError(t, err)

	_, err = m.ValidateCredential(context.Background(), token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestNumericIDClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": 17})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	id, err := NewJWTManager(testSecret, "", time.Hour).ValidateCredential(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "17", id)
}

func TestIssuerEnforced(t *testing.T) {
	token, err := NewJWTManager(testSecret, "someone-else", time.Hour).Generate("u")
	require.NoError(t, err)

	_, err = NewJWTManager(testSecret, "portfolio-stream", time.Hour).ValidateCredential(context.Background(), token)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	assert.Equal(t, "abc", ExtractToken(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", ExtractToken(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	assert.Equal(t, "", ExtractToken(r))
}
