package auth

import (
	"context"
	"net/http"

	"github.com/coverdeskhq/coverdesk/internal/models"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated user in context
	UserContextKey contextKey = "user"
)

// RequireAuth validates the session cookie and injects the authenticated
// user into the request context. All downstream auth middleware assumes it.
func RequireAuth(authenticator *Authenticator, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := GetSessionCookie(r, cookieName)

			user, err := authenticator.Authenticate(r.Context(), sessionID)
			if err != nil {
				pkghttp.WriteDomainError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the session cookie when one is present and still
// valid, injecting the user into the request context. Unlike RequireAuth
// it never rejects: an absent or dead session leaves the request
// anonymous. Endpoints that tolerate anonymous callers mount this.
func OptionalAuth(authenticator *Authenticator, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := GetSessionCookie(r, cookieName)

			if user, err := authenticator.Authenticate(r.Context(), sessionID); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole enforces that the authenticated user's role is in the
// allowed set. Must be mounted after RequireAuth.
func RequireAnyRole(allowedRoles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				pkghttp.WriteDomainError(w, models.ErrUnauthorized)
				return
			}

			if _, ok := allowed[user.Role]; !ok {
				pkghttp.WriteDomainError(w, models.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole is the exact-role variant of RequireAnyRole.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return RequireAnyRole(role)
}

// GetUserFromContext extracts the authenticated user from the request
// context, or nil when the request did not pass RequireAuth.
func GetUserFromContext(r *http.Request) *models.AuthUser {
	user, ok := r.Context().Value(UserContextKey).(*models.AuthUser)
	if !ok {
		return nil
	}
	return user
}
