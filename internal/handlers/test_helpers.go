package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/services"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext injects an authenticated user into the request context,
// simulating what the auth middleware does after validating the session.
func WithAuthContext(req *http.Request, userID, email, role string) *http.Request {
	user := &models.AuthUser{
		UserID:    userID,
		Email:     email,
		Role:      role,
		SessionID: "sess_test",
		CSRFToken: "csrf_test_token",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// envelope mirrors pkghttp.Envelope with the payload left raw so tests can
// decode it into the expected response type.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// AssertSuccessData checks for a success envelope with the expected status
// and decodes the data payload into target.
func AssertSuccessData(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to decode response JSON")
	assert.True(t, env.Success, "Expected success envelope")

	if target != nil {
		require.NoError(t, json.Unmarshal(env.Data, target), "Failed to decode data payload")
	}
}

// AssertErrorResponse checks for a failure envelope with the expected status
// and message.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to decode error response")
	assert.False(t, env.Success, "Expected failure envelope")
	if expectedMessage != "" {
		assert.Equal(t, expectedMessage, env.Message)
	} else {
		assert.NotEmpty(t, env.Message, "Error message should not be empty")
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error)
	LogoutFunc func(ctx context.Context, sessionID, userID, ipAddress string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, totpCode, ipAddress)
}

func (m *MockAuthService) Logout(ctx context.Context, sessionID, userID, ipAddress string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, sessionID, userID, ipAddress)
}

// MockTOTPService implements TOTPServiceInterface for testing
type MockTOTPService struct {
	BeginTOTPSetupFunc   func(ctx context.Context, actor *models.AuthUser) (*services.TOTPSetupResponse, error)
	ConfirmTOTPSetupFunc func(ctx context.Context, actor *models.AuthUser, code, ipAddress string) error
}

func (m *MockTOTPService) BeginTOTPSetup(ctx context.Context, actor *models.AuthUser) (*services.TOTPSetupResponse, error) {
	if m.BeginTOTPSetupFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.BeginTOTPSetupFunc(ctx, actor)
}

func (m *MockTOTPService) ConfirmTOTPSetup(ctx context.Context, actor *models.AuthUser, code, ipAddress string) error {
	if m.ConfirmTOTPSetupFunc == nil {
		return nil
	}
	return m.ConfirmTOTPSetupFunc(ctx, actor, code, ipAddress)
}

// MockClaimService implements ClaimServiceInterface for testing
type MockClaimService struct {
	FileFunc         func(ctx context.Context, actor *models.AuthUser, req *services.FileClaimRequest, ipAddress string) (*services.ClaimResponse, error)
	GetFunc          func(ctx context.Context, id string) (*services.ClaimResponse, error)
	ListFunc         func(ctx context.Context, policyID, status string, limit, offset int) ([]*services.ClaimResponse, error)
	UpdateStatusFunc func(ctx context.Context, actor *models.AuthUser, id string, req *services.UpdateClaimStatusRequest, ipAddress string) (*services.ClaimResponse, error)
	DeleteFunc       func(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error
}

func (m *MockClaimService) File(ctx context.Context, actor *models.AuthUser, req *services.FileClaimRequest, ipAddress string) (*services.ClaimResponse, error) {
	if m.FileFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.FileFunc(ctx, actor, req, ipAddress)
}

func (m *MockClaimService) Get(ctx context.Context, id string) (*services.ClaimResponse, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockClaimService) List(ctx context.Context, policyID, status string, limit, offset int) ([]*services.ClaimResponse, error) {
	if m.ListFunc == nil {
		return []*services.ClaimResponse{}, nil
	}
	return m.ListFunc(ctx, policyID, status, limit, offset)
}

func (m *MockClaimService) UpdateStatus(ctx context.Context, actor *models.AuthUser, id string, req *services.UpdateClaimStatusRequest, ipAddress string) (*services.ClaimResponse, error) {
	if m.UpdateStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateStatusFunc(ctx, actor, id, req, ipAddress)
}

func (m *MockClaimService) Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, actor, id, ipAddress)
}
