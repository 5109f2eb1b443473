package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houstonintel/internal/config"
)

func testService() *Service {
	return NewService(config.AuthConfig{
		JWTSecret:     "test-jwt-secret",
		SessionSecret: "test-session-secret",
		TokenTTLHours: 1,
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	s := testService()

	token, err := s.GenerateToken("analyst@example.com", RoleAnalyst)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst@example.com", claims.Subject)
	assert.Equal(t, RoleAnalyst, claims.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	s := testService()
	other := NewService(config.AuthConfig{JWTSecret: "different", SessionSecret: "x"})

	token, err := other.GenerateToken("user", RoleViewer)
	require.NoError(t, err)

	_, err = s.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	s := testService()

	claims := Claims{
		Subject: "user",
		Role:    RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-jwt-secret"))
	require.NoError(t, err)

	_, err = s.ValidateToken(signed)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	s := testService()
	_, err := s.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestRequireToken(t *testing.T) {
	s := testService()
	handler := s.RequireToken(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "analyst", claims.Subject)
		w.WriteHeader(http.StatusOK)
	})

	// No token.
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/analyze", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	token, err := s.GenerateToken("analyst", RoleAnalyst)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/analyze", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalToken(t *testing.T) {
	s := testService()

	var sawClaims bool
	handler := s.OptionalToken(func(w http.ResponseWriter, r *http.Request) {
		_, sawClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sawClaims)

	token, err := s.GenerateToken("viewer", RoleViewer)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.True(t, sawClaims)
}

func TestSessionID(t *testing.T) {
	s := testService()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	id, isNew := s.SessionID(rec, req)
	assert.NotEmpty(t, id)
	assert.True(t, isNew)

	// Replaying the issued cookie yields the same session.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	req2 := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req2.AddCookie(c)
	}
	id2, isNew2 := s.SessionID(httptest.NewRecorder(), req2)
	assert.Equal(t, id, id2)
	assert.False(t, isNew2)
}

func TestRequireRole(t *testing.T) {
	s := testService()
	handler := s.RequireRole(RoleAnalyst, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// No token at all.
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/analyze", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated but the wrong role.
	viewer, err := s.GenerateToken("reader", RoleViewer)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/analyze", nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The required role passes.
	analyst, err := s.GenerateToken("analyst", RoleAnalyst)
	require.NoError(t, err)
	req = httptest.NewRequest("POST", "/analyze", nil)
	req.Header.Set("Authorization", "Bearer "+analyst)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
