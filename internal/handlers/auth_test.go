package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/handlers"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/services"
	"github.com/coverdeskhq/coverdesk/internal/session"
)

var testCookieConfig = auth.CookieConfig{
	Name:   "coverdesk_session",
	Secure: false,
	MaxAge: 1 * time.Hour,
}

func loginResult(sessionID, userID, role string) *services.LoginResult {
	return &services.LoginResult{
		Session: &session.Session{
			ID:        sessionID,
			UserID:    userID,
			Role:      role,
			CSRFToken: "csrf_abc",
		},
		User: &services.UserResponse{
			ID:    userID,
			Email: "agent@example.com",
			Name:  "Agent Smith",
			Role:  role,
		},
	}
}

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error) {
			assert.Equal(t, "agent@example.com", email)
			return loginResult("sess_123", "user_1", models.RoleAgent), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockTOTPService{}, testCookieConfig, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    "agent@example.com",
		Password: "CorrectHorse9",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertSuccessData(t, w, http.StatusOK, &resp)
	assert.Equal(t, "csrf_abc", resp.CSRFToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, models.RoleAgent, resp.User.Role)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "coverdesk_session", cookies[0].Name)
	assert.Equal(t, "sess_123", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockTOTPService{}, testCookieConfig, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Email:    "agent@example.com",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "Unauthorized")
	assert.Empty(t, w.Result().Cookies(), "failed login must not set a cookie")
}

func TestLogin_AccountStates(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"locked", models.ErrAccountLocked, http.StatusForbidden},
		{"inactive", models.ErrAccountInactive, http.StatusForbidden},
		{"throttled", models.ErrTooManyAttempts, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error) {
					return nil, tc.err
				},
			}

			handler := handlers.NewAuthHandler(mockAuth, &handlers.MockTOTPService{}, testCookieConfig, nil)
			req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
				Email:    "agent@example.com",
				Password: "CorrectHorse9",
			})

			w := httptest.NewRecorder()
			handler.Login(w, req)

			handlers.AssertErrorResponse(t, w, tc.wantStatus, "")
		})
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockTOTPService{}, testCookieConfig, nil)

	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "")
}

func TestLogin_MissingEmailReachesService(t *testing.T) {
	var gotEmail string
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error) {
			gotEmail = email
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockTOTPService{}, testCookieConfig, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
		Password: "CorrectHorse9",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "")
	assert.Equal(t, "", gotEmail, "empty email is handed to the service as-is")
}

func TestLogin_MalformedAttemptsAlwaysReachService(t *testing.T) {
	calls := 0
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error) {
			calls++
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockTOTPService{}, testCookieConfig, nil)

	// Missing fields and bad email formats must flow through to the
	// service, which charges the IP throttle for every failure.
	for i := 0; i < 6; i++ {
		req := handlers.NewTestRequest(t, "POST", "/api/auth/login", handlers.LoginRequest{
			Email: "not-an-email",
		})
		w := httptest.NewRecorder()
		handler.Login(w, req)
		handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "")
	}

	assert.Equal(t, 6, calls)
}

func TestValidate_EchoesContextUser(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockTOTPService{}, testCookieConfig, nil)

	req := httptest.NewRequest("GET", "/api/auth/validate", nil)
	req = handlers.WithAuthContext(req, "user_1", "agent@example.com", models.RoleAgent)

	w := httptest.NewRecorder()
	handler.Validate(w, req)

	var resp handlers.ValidateResponse
	handlers.AssertSuccessData(t, w, http.StatusOK, &resp)
	assert.Equal(t, "user_1", resp.UserID)
	assert.Equal(t, models.RoleAgent, resp.Role)
	assert.Equal(t, "csrf_test_token", resp.CSRFToken)
}

func TestValidate_NoSession(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockTOTPService{}, testCookieConfig, nil)

	req := httptest.NewRequest("GET", "/api/auth/validate", nil)
	w := httptest.NewRecorder()
	handler.Validate(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "Unauthorized")
}

func TestLogout_ClearsCookie(t *testing.T) {
	var gotSessionID string
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID, userID, ipAddress string) error {
			gotSessionID = sessionID
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockTOTPService{}, testCookieConfig, nil)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "coverdesk_session", Value: "sess_123"})
	req = handlers.WithAuthContext(req, "user_1", "agent@example.com", models.RoleAgent)

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess_123", gotSessionID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0, "logout must expire the cookie")
}

func TestLogout_WithoutCookieStillSucceeds(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockTOTPService{}, testCookieConfig, nil)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfirmTOTPSetup_InvalidCode(t *testing.T) {
	mockTOTP := &handlers.MockTOTPService{
		ConfirmTOTPSetupFunc: func(ctx context.Context, actor *models.AuthUser, code, ipAddress string) error {
			return models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, mockTOTP, testCookieConfig, nil)

	req := handlers.NewTestRequest(t, "POST", "/api/auth/totp/enable", handlers.TOTPConfirmRequest{Code: "123456"})
	req = handlers.WithAuthContext(req, "admin_1", "admin@example.com", models.RoleAdmin)

	w := httptest.NewRecorder()
	handler.ConfirmTOTPSetup(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "Unauthorized")
}
