package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/stretchr/testify/assert"
)

func csrfTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return CSRFProtection(logger)(next)
}

func withAuthUser(r *http.Request, csrfToken string) *http.Request {
	user := &models.AuthUser{
		UserID:    "user-1",
		Email:     "agent@example.com",
		Role:      models.RoleAgent,
		CSRFToken: csrfToken,
	}
	return r.WithContext(context.WithValue(r.Context(), auth.UserContextKey, user))
}

func TestCSRFProtection_GETBypassed(t *testing.T) {
	handler := csrfTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFProtection_ValidHeaderToken(t *testing.T) {
	handler := csrfTestHandler(t)

	req := withAuthUser(httptest.NewRequest(http.MethodPost, "/api/clients", nil), "token-abc")
	req.Header.Set("X-CSRF-Token", "token-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFProtection_MissingToken(t *testing.T) {
	handler := csrfTestHandler(t)

	req := withAuthUser(httptest.NewRequest(http.MethodPost, "/api/clients", nil), "token-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFProtection_WrongToken(t *testing.T) {
	handler := csrfTestHandler(t)

	req := withAuthUser(httptest.NewRequest(http.MethodDelete, "/api/clients/1", nil), "token-abc")
	req.Header.Set("X-CSRF-Token", "token-xyz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFProtection_NoAuthenticatedUser(t *testing.T) {
	handler := csrfTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/clients", nil)
	req.Header.Set("X-CSRF-Token", "token-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func optionalCSRFTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return OptionalCSRFProtection(logger)(next)
}

func TestOptionalCSRFProtection_AnonymousPasses(t *testing.T) {
	handler := optionalCSRFTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOptionalCSRFProtection_AuthenticatedStillChecked(t *testing.T) {
	handler := optionalCSRFTestHandler(t)

	req := withAuthUser(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), "token-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = withAuthUser(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), "token-abc")
	req.Header.Set("X-CSRF-Token", "token-abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
