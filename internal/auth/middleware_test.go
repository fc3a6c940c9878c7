package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

const testCookieName = "coverdesk_session"

func okHandler() (http.Handler, *bool) {
	reached := new(bool)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	}), reached
}

func TestRequireAuth_ValidSession(t *testing.T) {
	a, _, users := newTestAuthenticator(t, time.Hour)

	sess, err := a.Establish(context.Background(), users.users["user-1"])
	require.NoError(t, err)

	var seen *models.AuthUser
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: sess.ID})

	w := httptest.NewRecorder()
	RequireAuth(a, testCookieName)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.UserID)
	assert.Equal(t, models.RoleAgent, seen.Role)
	assert.Equal(t, sess.CSRFToken, seen.CSRFToken)
}

func TestRequireAuth_MissingCookie(t *testing.T) {
	a, _, _ := newTestAuthenticator(t, time.Hour)

	next, reached := okHandler()
	req := httptest.NewRequest("GET", "/api/clients", nil)

	w := httptest.NewRecorder()
	RequireAuth(a, testCookieName)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, *reached)
}

func TestRequireAuth_UnknownSession(t *testing.T) {
	a, _, _ := newTestAuthenticator(t, time.Hour)

	next, reached := okHandler()
	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "forged"})

	w := httptest.NewRecorder()
	RequireAuth(a, testCookieName)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, *reached)
}

func TestOptionalAuth_ValidSession(t *testing.T) {
	a, _, users := newTestAuthenticator(t, time.Hour)

	sess, err := a.Establish(context.Background(), users.users["user-1"])
	require.NoError(t, err)

	var seen *models.AuthUser
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: sess.ID})

	w := httptest.NewRecorder()
	OptionalAuth(a, testCookieName)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.UserID)
}

func TestOptionalAuth_DeadSessionStaysAnonymous(t *testing.T) {
	a, _, _ := newTestAuthenticator(t, time.Hour)

	var seen *models.AuthUser
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seen = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "destroyed"})

	w := httptest.NewRecorder()
	OptionalAuth(a, testCookieName)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
	assert.Nil(t, seen)
}

func TestOptionalAuth_NoCookie(t *testing.T) {
	a, _, _ := newTestAuthenticator(t, time.Hour)

	next, reached := okHandler()
	req := httptest.NewRequest("POST", "/api/auth/logout", nil)

	w := httptest.NewRecorder()
	OptionalAuth(a, testCookieName)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *reached)
}

func TestRequireAnyRole_Allowed(t *testing.T) {
	next, reached := okHandler()

	req := httptest.NewRequest("GET", "/api/clients", nil)
	user := &models.AuthUser{UserID: "user-1", Role: models.RoleAgent}
	req = req.WithContext(context.WithValue(req.Context(), UserContextKey, user))

	w := httptest.NewRecorder()
	RequireAnyRole(models.RoleAdmin, models.RoleAgent)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *reached)
}

func TestRequireAnyRole_Forbidden(t *testing.T) {
	next, reached := okHandler()

	req := httptest.NewRequest("GET", "/api/users", nil)
	user := &models.AuthUser{UserID: "user-1", Role: models.RoleAgent}
	req = req.WithContext(context.WithValue(req.Context(), UserContextKey, user))

	w := httptest.NewRecorder()
	RequireRole(models.RoleAdmin)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, *reached)
}

func TestRequireAnyRole_NoUserInContext(t *testing.T) {
	next, reached := okHandler()

	req := httptest.NewRequest("GET", "/api/users", nil)
	w := httptest.NewRecorder()
	RequireAnyRole(models.RoleAdmin)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, *reached)
}
