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

// ClientServiceInterface defines the interface for policyholder management
type ClientServiceInterface interface {
	Create(ctx context.Context, actor *models.AuthUser, req *services.ClientRequest, ipAddress string) (*services.ClientResponse, error)
	Get(ctx context.Context, id string) (*services.ClientResponse, error)
	List(ctx context.Context, search string, limit, offset int) ([]*services.ClientResponse, error)
	Update(ctx context.Context, actor *models.AuthUser, id string, req *services.ClientRequest, ipAddress string) (*services.ClientResponse, error)
	Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error
}

// ClientHandler handles client HTTP requests
type ClientHandler struct {
	service  ClientServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(service ClientServiceInterface, ipConfig *pkghttp.IPConfig) *ClientHandler {
	return &ClientHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Create handles POST /api/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	client, err := h.service.Create(r.Context(), actor, &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusCreated, client)
}

// Get handles GET /api/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, client)
}

// List handles GET /api/clients with optional ?search=
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	search := r.URL.Query().Get("search")

	clients, err := h.service.List(r.Context(), search, limit, offset)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, clients)
}

// Update handles PUT /api/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	client, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, client)
}

// Delete handles DELETE /api/clients/{id}
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	pkghttp.WriteMessage(w, http.StatusOK, "Client deleted")
}
