package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func signToken(t *testing.T, secret []byte, subject string, aud []string, expiresAt time.Time) string {
	t.Helper()
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  aud,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	signed, err := token.SignedString(secret)
	assert.NoError(t, err)
	return signed
}

func TestAuthenticateValidJWT(t *testing.T) {
	secret := []byte("test-secret")
	m := New(secret, "")

	token := signToken(t, secret, "user-123", []string{audience}, time.Now().Add(time.Hour))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, err := m.Authenticate(r)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", identity.UserID)
	assert.False(t, identity.IsAdmin)
}

func TestAuthenticateRejectsWrongAudience(t *testing.T) {
	secret := []byte("test-secret")
	m := New(secret, "")

	token := signToken(t, secret, "user-123", []string{"other-audience"}, time.Now().Add(time.Hour))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err := m.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	m := New(secret, "")

	token := signToken(t, secret, "user-123", []string{audience}, time.Now().Add(-time.Hour))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err := m.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	m := New([]byte("correct-secret"), "")
	token := signToken(t, []byte("wrong-secret"), "user-123", []string{audience}, time.Now().Add(time.Hour))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err := m.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateMissingToken(t *testing.T) {
	m := New([]byte("secret"), "")
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := m.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthenticateAdminSeed(t *testing.T) {
	m := New([]byte("secret"), "the-admin-seed")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer the-admin-seed")

	identity, err := m.Authenticate(r)
	assert.NoError(t, err)
	assert.True(t, identity.IsAdmin)
	assert.Equal(t, adminUserID, identity.UserID)
}

func TestMiddlewareAttachesIdentityWithoutRejectingAnonymous(t *testing.T) {
	m := New([]byte("secret"), "")
	var seen *Identity

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, seen)
}

func TestMiddlewareAttachesValidIdentity(t *testing.T) {
	secret := []byte("test-secret")
	m := New(secret, "")
	token := signToken(t, secret, "user-42", []string{audience}, time.Now().Add(time.Hour))

	var seen *Identity
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if assert.NotNil(t, seen) {
		assert.Equal(t, "user-42", seen.UserID)
	}
}
