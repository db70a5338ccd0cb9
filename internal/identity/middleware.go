package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Firebreather-heart/sensei/internal/metrics"
)

type contextKey string

const userContextKey contextKey = "user"

// Middleware returns HTTP middleware that validates bearer tokens and
// stores the resolved user in the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		user, err := s.CurrentUser(r.Context(), tokenStr)
		if err != nil {
			sendAuthError(w, http.StatusInternalServerError, "identity lookup failed")
			return
		}
		if user == nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "invalid authentication credentials")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalMiddleware resolves the user when a valid token is present but
// lets anonymous requests through. Used by endpoints with public reach,
// such as search over public files.
func (s *Service) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenStr := extractToken(r); tokenStr != "" {
			if user, err := s.CurrentUser(r.Context(), tokenStr); err == nil && user != nil {
				r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetUser extracts the authenticated user from the request context, or nil.
func GetUser(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": message,
		"code":  code,
	})
}
