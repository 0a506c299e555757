// Package api implements the Solstice REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware resolves the caller's identity and injects it into the
// request context. Everything downstream trusts this identity completely.
//
// With enabled=false (development mode) the owner id is taken from the
// X-User-ID header, defaulting to "local". With enabled=true requests must
// carry a Bearer token signed with secret (HS256); the token subject is the
// owner id.
func AuthMiddleware(enabled bool, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				user := r.Header.Get("X-User-ID")
				if user == "" {
					user = "local"
				}
				next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), user)))
				return
			}

			auth := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(auth, "Bearer ")
			if !found || token == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			subject, err := validateToken(token, secret)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), subject)))
		})
	}
}

// validateToken parses an HS256 JWT and returns its subject.
func validateToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return subject, nil
}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext extracts the authenticated owner id from the request
// context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
