package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// UserIDKey is the context key under which the authenticated user id is stored
const UserIDKey contextKey = "user_id"

// TokenValidator resolves a bearer token to a user id. ok is false when the
// token is unknown or no longer valid.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (userID string, ok bool)
}

// Middleware rejects requests without a valid bearer token and injects the
// user id into the request context. Paths listed in public bypass the check.
func Middleware(v TokenValidator, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path, public) {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractToken(r)
			if token == "" {
				http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
				return
			}

			userID, ok := v.ValidateToken(r.Context(), token)
			if !ok {
				http.Error(w, "Unauthorized: invalid or expired session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractToken reads the session token from the Authorization header,
// falling back to the token query parameter (used by websocket clients that
// cannot set headers). Returns "" when neither is present.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// UserID returns the authenticated user id stored by Middleware
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if path == p {
			return true
		}
	}
	return false
}
