package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coverdeskhq/coverdesk/internal/handlers"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/services"
)

func TestFileClaim_Success(t *testing.T) {
	mockClaims := &handlers.MockClaimService{
		FileFunc: func(ctx context.Context, actor *models.AuthUser, req *services.FileClaimRequest, ipAddress string) (*services.ClaimResponse, error) {
			assert.Equal(t, "user_1", actor.UserID)
			return &services.ClaimResponse{
				ID:          "claim_1",
				ClaimNumber: "CLM-1756380000",
				PolicyID:    req.PolicyID,
				Amount:      req.Amount,
				Status:      models.ClaimStatusSubmitted,
				FiledBy:     actor.UserID,
			}, nil
		},
	}

	handler := handlers.NewClaimHandler(mockClaims, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/claims", services.FileClaimRequest{
		PolicyID:    "3f3b7a52-88b4-4ac2-9fd1-6a2c70b6a111",
		Amount:      1250.00,
		Description: "Windshield replacement",
	})
	req = handlers.WithAuthContext(req, "user_1", "driver@example.com", models.RoleUser)

	w := httptest.NewRecorder()
	handler.File(w, req)

	var resp services.ClaimResponse
	handlers.AssertSuccessData(t, w, http.StatusCreated, &resp)
	assert.Equal(t, models.ClaimStatusSubmitted, resp.Status)
	assert.Equal(t, "user_1", resp.FiledBy)
}

func TestFileClaim_RateLimited(t *testing.T) {
	mockClaims := &handlers.MockClaimService{
		FileFunc: func(ctx context.Context, actor *models.AuthUser, req *services.FileClaimRequest, ipAddress string) (*services.ClaimResponse, error) {
			return nil, models.ErrRateLimitExceeded
		},
	}

	handler := handlers.NewClaimHandler(mockClaims, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/claims", services.FileClaimRequest{
		PolicyID: "3f3b7a52-88b4-4ac2-9fd1-6a2c70b6a111",
		Amount:   1250.00,
	})
	req = handlers.WithAuthContext(req, "user_1", "driver@example.com", models.RoleUser)

	w := httptest.NewRecorder()
	handler.File(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusTooManyRequests, "")
}

func TestFileClaim_InvalidAmount(t *testing.T) {
	called := false
	mockClaims := &handlers.MockClaimService{
		FileFunc: func(ctx context.Context, actor *models.AuthUser, req *services.FileClaimRequest, ipAddress string) (*services.ClaimResponse, error) {
			called = true
			return nil, nil
		},
	}

	handler := handlers.NewClaimHandler(mockClaims, nil)
	req := handlers.NewTestRequest(t, "POST", "/api/claims", services.FileClaimRequest{
		PolicyID: "3f3b7a52-88b4-4ac2-9fd1-6a2c70b6a111",
		Amount:   0,
	})
	req = handlers.WithAuthContext(req, "user_1", "driver@example.com", models.RoleUser)

	w := httptest.NewRecorder()
	handler.File(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "")
	assert.False(t, called)
}

func TestUpdateClaimStatus_InvalidTransition(t *testing.T) {
	mockClaims := &handlers.MockClaimService{
		UpdateStatusFunc: func(ctx context.Context, actor *models.AuthUser, id string, req *services.UpdateClaimStatusRequest, ipAddress string) (*services.ClaimResponse, error) {
			return nil, models.ErrBadRequest
		},
	}

	handler := handlers.NewClaimHandler(mockClaims, nil)
	req := handlers.NewTestRequest(t, "PUT", "/api/claims/claim_1/status", services.UpdateClaimStatusRequest{Status: models.ClaimStatusPaid})
	req = handlers.WithAuthContext(req, "agent_1", "agent@example.com", models.RoleAgent)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "claim_1"})

	w := httptest.NewRecorder()
	handler.UpdateStatus(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "")
}

func TestGetClaim_NotFound(t *testing.T) {
	handler := handlers.NewClaimHandler(&handlers.MockClaimService{}, nil)

	req := httptest.NewRequest("GET", "/api/claims/missing", nil)
	req = handlers.WithAuthContext(req, "agent_1", "agent@example.com", models.RoleAgent)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "missing"})

	w := httptest.NewRecorder()
	handler.Get(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "Resource not found")
}
