package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/coverdeskhq/coverdesk/internal/background"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/scheduler"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
)

// MaintenanceHandler exposes the purge and scheduler passes to an external
// cron. Callers authenticate with a bearer secret rather than a session.
type MaintenanceHandler struct {
	maintenance *background.MaintenanceManager
	scheduler   *scheduler.Scheduler
	cronSecret  string
}

// NewMaintenanceHandler creates a new MaintenanceHandler
func NewMaintenanceHandler(maintenance *background.MaintenanceManager, sched *scheduler.Scheduler, cronSecret string) *MaintenanceHandler {
	return &MaintenanceHandler{
		maintenance: maintenance,
		scheduler:   sched,
		cronSecret:  cronSecret,
	}
}

// authorized checks the Authorization: Bearer header against the configured
// secret. An empty configured secret disables the endpoints entirely.
func (h *MaintenanceHandler) authorized(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) == 1
}

// RunMaintenance handles POST /api/maintenance/purge
func (h *MaintenanceHandler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	result := h.maintenance.RunOnce(r.Context())

	pkghttp.WriteData(w, http.StatusOK, result)
}

// RunReports handles POST /api/maintenance/reports, executing one scheduler
// pass. Deployments that disable the in-process ticker call this from cron.
func (h *MaintenanceHandler) RunReports(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	result, err := h.scheduler.RunPass(r.Context())
	if err != nil {
		pkghttp.WriteDomainError(w, models.ErrInternalServer)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, map[string]int{
		"considered": result.Considered,
		"ran":        result.Ran,
		"failed":     result.Failed,
	})
}
