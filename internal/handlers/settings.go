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

// SettingServiceInterface defines the interface for company settings
type SettingServiceInterface interface {
	List(ctx context.Context) ([]*services.SettingResponse, error)
	Get(ctx context.Context, key string) (*services.SettingResponse, error)
	Update(ctx context.Context, actor *models.AuthUser, req *services.SettingRequest, ipAddress string) (*services.SettingResponse, error)
}

// SettingHandler handles settings HTTP requests
type SettingHandler struct {
	service  SettingServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewSettingHandler creates a new SettingHandler
func NewSettingHandler(service SettingServiceInterface, ipConfig *pkghttp.IPConfig) *SettingHandler {
	return &SettingHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// List handles GET /api/settings
func (h *SettingHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.List(r.Context())
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, settings)
}

// Get handles GET /api/settings/{key}
func (h *SettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	setting, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, setting)
}

// Update handles PUT /api/settings
func (h *SettingHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	setting, err := h.service.Update(r.Context(), actor, &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, setting)
}
