package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/services"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ClaimServiceInterface defines the interface for the claim workflow
type ClaimServiceInterface interface {
	File(ctx context.Context, actor *models.AuthUser, req *services.FileClaimRequest, ipAddress string) (*services.ClaimResponse, error)
	Get(ctx context.Context, id string) (*services.ClaimResponse, error)
	List(ctx context.Context, policyID, status string, limit, offset int) ([]*services.ClaimResponse, error)
	UpdateStatus(ctx context.Context, actor *models.AuthUser, id string, req *services.UpdateClaimStatusRequest, ipAddress string) (*services.ClaimResponse, error)
	Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error
}

// ClaimHandler handles claim HTTP requests
type ClaimHandler struct {
	service  ClaimServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewClaimHandler creates a new ClaimHandler
func NewClaimHandler(service ClaimServiceInterface, ipConfig *pkghttp.IPConfig) *ClaimHandler {
	return &ClaimHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// File handles POST /api/claims
func (h *ClaimHandler) File(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.FileClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	claim, err := h.service.File(r.Context(), actor, &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusCreated, claim)
}

// Get handles GET /api/claims/{id}
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	claim, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, claim)
}

// List handles GET /api/claims with optional ?policy_id= or ?status=
func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	policyID := r.URL.Query().Get("policy_id")
	status := r.URL.Query().Get("status")

	claims, err := h.service.List(r.Context(), policyID, status, limit, offset)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, claims)
}

// UpdateStatus handles PUT /api/claims/{id}/status
func (h *ClaimHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.UpdateClaimStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	claim, err := h.service.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, claim)
}

// Delete handles DELETE /api/claims/{id}
func (h *ClaimHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id"), pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Claim deleted")
}
