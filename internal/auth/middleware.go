package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"houstonintel/internal/errors"
)

// RequireToken validates the bearer token and adds its claims to the
// request context. Requests without a valid token get a 401.
func (s *Service) RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := s.claimsFromRequest(r)
		if claims == nil {
			errors.SendError(w, errors.NewAuthenticationError("Authentication required"))
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole is RequireToken plus a role check; tokens carrying any other
// role get a 403.
func (s *Service) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return s.RequireToken(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		if claims == nil || claims.Role != role {
			errors.SendError(w, errors.NewAuthorizationError(fmt.Sprintf("%s role required", role)))
			return
		}
		next(w, r)
	})
}

// OptionalToken adds claims to the context when a valid token is present
// but lets unauthenticated requests through.
func (s *Service) OptionalToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims := s.claimsFromRequest(r); claims != nil {
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			r = r.WithContext(ctx)
		}
		next(w, r)
	}
}

func (s *Service) claimsFromRequest(r *http.Request) *Claims {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return nil
	}

	claims, err := s.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return nil
	}
	return claims
}

// ClaimsFromContext retrieves the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}
