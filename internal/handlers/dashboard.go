package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/services"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
)

// DashboardServiceInterface defines the interface for the summary view
type DashboardServiceInterface interface {
	Summary(ctx context.Context) (*services.DashboardResponse, error)
}

// ActivityReader feeds the dashboard activity endpoint.
type ActivityReader interface {
	RecentActivity(ctx context.Context, limit int) ([]*models.ActivityLog, error)
}

// DashboardHandler handles the landing-page summary and activity feed
type DashboardHandler struct {
	service  DashboardServiceInterface
	activity ActivityReader
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(service DashboardServiceInterface, activity ActivityReader) *DashboardHandler {
	return &DashboardHandler{service: service, activity: activity}
}

// Summary handles GET /api/dashboard/stats
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, summary)
}

// Activity handles GET /api/dashboard/activity
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	entries, err := h.activity.RecentActivity(r.Context(), limit)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, entries)
}
