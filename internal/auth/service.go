// Package auth issues JWT bearer tokens for write operations and tracks
// visitor sessions with a signed cookie store.
package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"houstonintel/internal/config"
)

// NewService creates the auth service from config.
func NewService(cfg config.AuthConfig) *Service {
	ttl := cfg.TokenTTLHours
	if ttl <= 0 {
		ttl = 24
	}
	return &Service{
		jwtSecret:    []byte(cfg.JWTSecret),
		tokenTTL:     ttl,
		sessionStore: sessions.NewCookieStore([]byte(cfg.SessionSecret)),
	}
}

// GenerateToken issues a signed token for the subject and role.
func (s *Service) GenerateToken(subject, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.tokenTTL) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// SessionID returns the visitor's session ID, creating the session cookie
// on first contact. The bool reports whether the session is new.
func (s *Service) SessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, err := s.sessionStore.Get(r, SessionCookieName)
	if err != nil {
		// A bad cookie just means a fresh session.
		session, _ = s.sessionStore.New(r, SessionCookieName)
	}

	if id, ok := session.Values["session_id"].(string); ok && id != "" {
		return id, false
	}

	id := uuid.New().String()
	session.Values["session_id"] = id
	session.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if err := session.Save(r, w); err != nil {
		return id, true
	}
	return id, true
}
