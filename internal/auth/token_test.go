package auth_test

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/internal/auth"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/me", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")

	token, err := auth.ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestExtractTokenFromRequestRejectsBadHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/me", nil)
	_, err := auth.ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = auth.ExtractTokenFromRequest(r)
	assert.Error(t, err)
}

func TestExtractUserIDFromJWT(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42"})

	sub, err := auth.ExtractUserIDFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestExtractUserIDFromJWTWithoutSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"email": "user@example.com"})

	_, err := auth.ExtractUserIDFromJWT(token)
	assert.Error(t, err)
}

func TestExtractUserIDFromJWTRejectsGarbage(t *testing.T) {
	_, err := auth.ExtractUserIDFromJWT("")
	assert.Error(t, err)

	_, err = auth.ExtractUserIDFromJWT("not-a-jwt")
	assert.Error(t, err)
}
