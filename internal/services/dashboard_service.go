package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// ClientCounter, PolicyCounter and ClaimCounter define the aggregate
// queries the dashboard needs
type ClientCounter interface {
	Count(ctx context.Context) (int64, error)
}

type PolicyCounter interface {
	CountByStatus(ctx context.Context, status string) (int64, error)
	PremiumTotal(ctx context.Context) (float64, error)
}

type ClaimCounter interface {
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// DashboardService assembles the landing-page summary
type DashboardService struct {
	clients  ClientCounter
	policies PolicyCounter
	claims   ClaimCounter
	activity *ActivityService
	logger   *slog.Logger
}

func NewDashboardService(clients ClientCounter, policies PolicyCounter, claims ClaimCounter, activity *ActivityService, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		clients:  clients,
		policies: policies,
		claims:   claims,
		activity: activity,
		logger:   logger,
	}
}

// ActivityResponse represents an audit entry in the HTTP response
type ActivityResponse struct {
	ID        string  `json:"id"`
	UserID    *string `json:"user_id"`
	Action    string  `json:"action"`
	Details   string  `json:"details"`
	CreatedAt string  `json:"created_at"`
}

// DashboardResponse is the aggregate view returned by GET /api/dashboard
type DashboardResponse struct {
	TotalClients    int64               `json:"total_clients"`
	ActivePolicies  int64               `json:"active_policies"`
	ExpiredPolicies int64               `json:"expired_policies"`
	PendingClaims   int64               `json:"pending_claims"`
	ApprovedClaims  int64               `json:"approved_claims"`
	PremiumTotal    float64             `json:"premium_total"`
	RecentActivity  []*ActivityResponse `json:"recent_activity"`
}

func (s *DashboardService) Summary(ctx context.Context) (*DashboardResponse, error) {
	resp := &DashboardResponse{}

	var err error
	if resp.TotalClients, err = s.clients.Count(ctx); err != nil {
		return nil, s.countError("clients", err)
	}
	if resp.ActivePolicies, err = s.policies.CountByStatus(ctx, models.PolicyStatusActive); err != nil {
		return nil, s.countError("active policies", err)
	}
	if resp.ExpiredPolicies, err = s.policies.CountByStatus(ctx, models.PolicyStatusExpired); err != nil {
		return nil, s.countError("expired policies", err)
	}
	if resp.PendingClaims, err = s.claims.CountByStatus(ctx, models.ClaimStatusSubmitted); err != nil {
		return nil, s.countError("pending claims", err)
	}
	if resp.ApprovedClaims, err = s.claims.CountByStatus(ctx, models.ClaimStatusApproved); err != nil {
		return nil, s.countError("approved claims", err)
	}
	if resp.PremiumTotal, err = s.policies.PremiumTotal(ctx); err != nil {
		return nil, s.countError("premium total", err)
	}

	entries, err := s.activity.RecentActivity(ctx, 20)
	if err != nil {
		return nil, s.countError("recent activity", err)
	}

	resp.RecentActivity = make([]*ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		resp.RecentActivity = append(resp.RecentActivity, &ActivityResponse{
			ID:        entry.ID,
			UserID:    entry.UserID,
			Action:    entry.Action,
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		})
	}

	return resp, nil
}

func (s *DashboardService) countError(what string, err error) error {
	s.logger.Error("dashboard aggregation failed", slog.String("counter", what), slog.Any("error", err))
	return models.ErrInternalServer
}
