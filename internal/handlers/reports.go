package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/services"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ReportServiceInterface defines the interface for report generation and
// schedule management
type ReportServiceInterface interface {
	Schedule(ctx context.Context) ([]*services.ReportTaskResponse, error)
	Summary(ctx context.Context) ([]*services.ReportSummaryEntry, error)
	UpsertSchedule(ctx context.Context, actor *models.AuthUser, req *services.ScheduleRequest, ipAddress string) (*services.ReportTaskResponse, error)
	DeleteSchedule(ctx context.Context, taskType string) error
	Generate(ctx context.Context, taskType string) (*models.ReportArtifact, error)
	LatestArtifact(taskType string) (*models.ReportArtifact, error)
}

// RateLimiter gates manual report generation per user
type RateLimiter interface {
	CheckLimit(ctx context.Context, userID, action string) error
}

// ReportHandler handles report HTTP requests
type ReportHandler struct {
	service   ReportServiceInterface
	rateLimit RateLimiter
	tokens    *auth.ReportTokenManager
	ipConfig  *pkghttp.IPConfig
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service ReportServiceInterface, rateLimit RateLimiter, tokens *auth.ReportTokenManager, ipConfig *pkghttp.IPConfig) *ReportHandler {
	return &ReportHandler{
		service:   service,
		rateLimit: rateLimit,
		tokens:    tokens,
		ipConfig:  ipConfig,
	}
}

// GenerateRequest is the payload for POST /api/reports/generate
type GenerateRequest struct {
	TaskType string `json:"task_type" validate:"required,min=1,max=60"`
}

// GenerateResponse carries artifact metadata plus a short-lived signed
// download token.
type GenerateResponse struct {
	TaskType      string `json:"task_type"`
	GeneratedAt   string `json:"generated_at"`
	SizeBytes     int    `json:"size_bytes"`
	DownloadToken string `json:"download_token"`
}

// Generate handles POST /api/reports/generate. Manual generation is rate
// limited per user.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.rateLimit.CheckLimit(r.Context(), actor.UserID, "report_generate"); err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	artifact, err := h.service.Generate(r.Context(), req.TaskType)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	token, err := h.tokens.Generate(artifact.TaskType, actor.UserID)
	if err != nil {
		pkghttp.WriteDomainError(w, models.ErrInternalServer)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, GenerateResponse{
		TaskType:      artifact.TaskType,
		GeneratedAt:   artifact.GeneratedAt.Format(time.RFC3339),
		SizeBytes:     len(artifact.Body),
		DownloadToken: token,
	})
}

// Download handles GET /api/reports/download?token=. The signed token is
// the sole credential; the link works without a session so it can be
// handed to a browser download.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	claims, err := h.tokens.Validate(tokenString)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	artifact, err := h.service.LatestArtifact(claims.TaskType)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="coverdesk-`+artifact.TaskType+`-report.txt"`)
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Body)
}

// Schedule handles GET /api/reports/schedule
func (h *ReportHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.Schedule(r.Context())
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, tasks)
}

// Summary handles GET /api/reports/summary. It lists each configured task
// with its latest artifact metadata.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Summary(r.Context())
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, entries)
}

// UpsertSchedule handles PUT /api/reports/schedule
func (h *ReportHandler) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req services.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	task, err := h.service.UpsertSchedule(r.Context(), actor, &req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, task)
}

// DeleteSchedule handles DELETE /api/reports/schedule/{taskType}
func (h *ReportHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSchedule(r.Context(), chi.URLParam(r, "taskType")); err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Schedule entry deleted")
}
