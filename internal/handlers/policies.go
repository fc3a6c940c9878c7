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

// PolicyServiceInterface defines the interface for policy management
type PolicyServiceInterface interface {
	Create(ctx context.Context, actor *models.AuthUser, req *services.CreatePolicyRequest, ipAddress string) (*services.PolicyResponse, error)
	Get(ctx context.Context, id string) (*services.PolicyResponse, error)
	List(ctx context.Context, clientID string, limit, offset int) ([]*services.PolicyResponse, error)
	Update(ctx context.Context, actor *models.AuthUser, id string, req *services.UpdatePolicyRequest, ipAddress string) (*services.PolicyResponse, error)
	Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error
}

// PolicyHandler handles policy HTTP requests
type PolicyHandler struct {
	service  PolicyServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service PolicyServiceInterface, ipConfig *pkghttp.IPConfig) *PolicyHandler {
	return &PolicyHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Create handles POST /api/policies
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	policy, err := h.service.Create(r.Context(), actor, &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusCreated, policy)
}

// Get handles GET /api/policies/{id}
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policy, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, policy)
}

// List handles GET /api/policies with optional ?client_id=
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	clientID := r.URL.Query().Get("client_id")

	policies, err := h.service.List(r.Context(), clientID, limit, offset)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, policies)
}

// Update handles PUT /api/policies/{id}
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	policy, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, policy)
}

// Delete handles DELETE /api/policies/{id}
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	pkghttp.WriteMessage(w, http.StatusOK, "Policy deleted")
}
