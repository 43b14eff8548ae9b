package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/gateway/contracts"
)

const testSecret = "a-secret-that-is-at-least-32-bytes-long"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(sub string, exp time.Time) Claims {
	return Claims{
		Roles: []string{"user"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestVerifierValidate(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("valid token with future expiry passes", func(t *testing.T) {
		token := signToken(t, testSecret, validClaims("acc-1", time.Now().Add(time.Hour)))
		assert.True(t, v.Validate(token))
	})

	t.Run("expired token fails", func(t *testing.T) {
		token := signToken(t, testSecret, validClaims("acc-1", time.Now().Add(-time.Hour)))
		assert.False(t, v.Validate(token))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		token := signToken(t, "a-different-secret-at-least-32-bytes!!", validClaims("acc-1", time.Now().Add(time.Hour)))
		assert.False(t, v.Validate(token))
	})

	t.Run("tampered signature fails", func(t *testing.T) {
		token := signToken(t, testSecret, validClaims("acc-1", time.Now().Add(time.Hour)))
		tampered := token[:len(token)-2] + "xx"
		assert.False(t, v.Validate(tampered))
	})
}

func TestVerifierAuthenticate(t *testing.T) {
	v := NewVerifier(testSecret)
	claims := validClaims("acc-1", time.Now().Add(time.Hour))
	claims.Email = "a@b.com"
	claims.Name = "Ada"
	token := signToken(t, testSecret, claims)

	principal, err := v.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", principal.AccountID)
	assert.Equal(t, []string{"user"}, principal.Roles)
	assert.Equal(t, "a@b.com", principal.Email)
}

func TestFilterAttachesPrincipalOnlyWhenValid(t *testing.T) {
	v := NewVerifier(testSecret)
	var gotPrincipal bool

	handler := Filter(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotPrincipal = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid bearer token attaches principal", func(t *testing.T) {
		token := signToken(t, testSecret, validClaims("acc-1", time.Now().Add(time.Hour)))
		req := httptest.NewRequest(http.MethodGet, "/api/recipes/1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, gotPrincipal)
	})

	t.Run("missing header proceeds with no principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes/1", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.False(t, gotPrincipal)
	})

	t.Run("invalid token proceeds with no principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes/1", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.False(t, gotPrincipal)
	})

	t.Run("non-bearer scheme proceeds with no principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes/1", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.False(t, gotPrincipal)
	})
}

func TestAuthorize(t *testing.T) {
	publicPrefixes := []string{"/api/auth/", "/actuator/", "/api/health"}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Authorize(publicPrefixes)(next)

	t.Run("public path proceeds without a principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("protected path without principal is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes/1", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body contracts.ApiResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.NotNil(t, body.Error)
		assert.Equal(t, "ERR_401", body.Error.Code)
	})

	t.Run("protected path with principal proceeds", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes/1", nil)
		req = req.WithContext(WithPrincipal(req.Context(), &contracts.AuthPrincipal{AccountID: "acc-1"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
