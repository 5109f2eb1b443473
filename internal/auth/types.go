package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
)

// SessionCookieName is the gorilla/sessions cookie used to track visitors.
const SessionCookieName = "houstonintel-session"

// Roles carried in tokens. Analysts may trigger analyses; viewers are
// read-only.
const (
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// Claims is the authenticated identity carried in a token.
type Claims struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates tokens and manages visitor sessions.
type Service struct {
	jwtSecret    []byte
	tokenTTL     int // hours
	sessionStore *sessions.CookieStore
}

// contextKey represents custom context key types to avoid collisions
type contextKey string

const claimsContextKey contextKey = "claims"
