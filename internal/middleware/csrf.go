package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
)

// CSRFProtection validates the per-session CSRF token on state-changing
// requests (POST, PUT, DELETE, PATCH). The token is issued at login, kept
// in the server-side session, and must be echoed back in the X-CSRF-Token
// header (or the csrf_token form field for non-JSON submissions).
//
// Must run after the auth middleware; requests without an authenticated
// user in context are rejected.
func CSRFProtection(logger *slog.Logger) func(http.Handler) http.Handler {
	return csrfMiddleware(logger, true)
}

// OptionalCSRFProtection validates the token only when the request has an
// authenticated user in context. Mounted after OptionalAuth on endpoints
// where an anonymous caller has no session token to prove, such as
// logout with an already destroyed session.
func OptionalCSRFProtection(logger *slog.Logger) func(http.Handler) http.Handler {
	return csrfMiddleware(logger, false)
}

func csrfMiddleware(logger *slog.Logger, requireUser bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			user := auth.GetUserFromContext(r)
			if user == nil {
				if requireUser {
					pkghttp.WriteDomainError(w, models.ErrUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-CSRF-Token")
			if token == "" {
				token = r.PostFormValue("csrf_token")
			}

			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(user.CSRFToken)) != 1 {
				logger.Warn("csrf token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("user_id", user.UserID))
				pkghttp.WriteDomainError(w, models.ErrInvalidCSRF)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
