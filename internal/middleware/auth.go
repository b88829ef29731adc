// Package middleware contains the HTTP middleware shared by the API:
// bearer-token authentication and per-user rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/glowingemp118/vital-sign-be/internal/auth"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// ClaimsFromContext extracts auth claims from the context, if present.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

// UserIDFromContext extracts the authenticated user id from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}

// Authenticate enforces JWT authentication: it extracts the bearer token from
// the Authorization header, verifies it and attaches the claims to the
// request context for handlers.
func Authenticate(j *auth.JWTManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			unauthorized(w, "invalid token")
			return
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			unauthorized(w, "unauthenticated")
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"` + msg + `"}`))
}
