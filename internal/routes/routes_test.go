package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/handlers"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/routes"
	"github.com/coverdeskhq/coverdesk/internal/services"
	"github.com/coverdeskhq/coverdesk/internal/session"
	pkglogger "github.com/coverdeskhq/coverdesk/pkg/logger"
)

const routesTestCookie = "coverdesk_session"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// newTestRouter wires the real auth stack behind the full route table with
// in-memory stores. Handlers outside the auth flow are zero values; the
// routes under test never invoke them.
func newTestRouter(t *testing.T, user *models.User) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	repo := &services.MockCredentialRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if id == user.ID {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
	}

	store := session.NewMemoryStore()
	t.Cleanup(store.Close)

	authenticator := auth.NewAuthenticator(store, repo, time.Hour, logger)
	throttle := auth.NewLoginThrottle(auth.NewMemoryThrottleStore(), 5, 5*time.Minute, logger)
	activity := services.NewActivityService(&services.MockActivityLogRepository{}, logger)
	authService := services.NewAuthService(
		repo, authenticator, throttle, auth.NewTOTPManager("CoverDeskTest"),
		activity, logger, pkglogger.NewAuditLogger(logger), 5, 5*time.Minute,
	)

	cookieConfig := auth.CookieConfig{Name: routesTestCookie, MaxAge: time.Hour}
	h := routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService, nil, cookieConfig, nil),
		Users:       &handlers.UserHandler{},
		Clients:     &handlers.ClientHandler{},
		Policies:    &handlers.PolicyHandler{},
		Claims:      &handlers.ClaimHandler{},
		Dashboard:   &handlers.DashboardHandler{},
		Reports:     &handlers.ReportHandler{},
		Settings:    &handlers.SettingHandler{},
		Maintenance: &handlers.MaintenanceHandler{},
	}

	router := chi.NewRouter()
	routes.RegisterRoutes(router, h, authenticator, routesTestCookie, logger)
	return router
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any, cookie *http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == routesTestCookie {
			return c
		}
	}
	return nil
}

func TestLogoutTwiceSucceeds(t *testing.T) {
	user := services.NewTestUser("user-1", "agent@example.com", "CorrectHorse9", models.RoleAgent)
	router := newTestRouter(t, user)

	w := doJSON(t, router, "POST", "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": "CorrectHorse9",
	}, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)

	var loginData struct {
		CSRFToken string `json:"csrf_token"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &loginData))

	// First logout destroys the session.
	w = doJSON(t, router, "POST", "/api/auth/logout", nil, cookie,
		map[string]string{"X-CSRF-Token": loginData.CSRFToken})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)

	// The second logout carries the now-dead cookie and must return the
	// same success envelope, not an auth error.
	w = doJSON(t, router, "POST", "/api/auth/logout", nil, cookie,
		map[string]string{"X-CSRF-Token": loginData.CSRFToken})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)
}

func TestLogoutWithoutSessionSucceeds(t *testing.T) {
	user := services.NewTestUser("user-1", "agent@example.com", "CorrectHorse9", models.RoleAgent)
	router := newTestRouter(t, user)

	w := doJSON(t, router, "POST", "/api/auth/logout", nil, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)
}

func TestLogoutWithLiveSessionRequiresCSRF(t *testing.T) {
	user := services.NewTestUser("user-1", "agent@example.com", "CorrectHorse9", models.RoleAgent)
	router := newTestRouter(t, user)

	w := doJSON(t, router, "POST", "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": "CorrectHorse9",
	}, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)

	w = doJSON(t, router, "POST", "/api/auth/logout", nil, cookie, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, decodeEnvelope(t, w).Success)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	user := services.NewTestUser("user-1", "agent@example.com", "CorrectHorse9", models.RoleAgent)
	router := newTestRouter(t, user)

	w := doJSON(t, router, "GET", "/api/nope", nil, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
}

func TestWrongMethodReturnsEnvelope(t *testing.T) {
	user := services.NewTestUser("user-1", "agent@example.com", "CorrectHorse9", models.RoleAgent)
	router := newTestRouter(t, user)

	w := doJSON(t, router, "GET", "/api/auth/login", nil, nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
}
