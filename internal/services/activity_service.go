package services

import (
	"context"
	"log/slog"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// ActivityLogRepository defines the interface for audit trail persistence
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityLog, error)
}

// ActivityService records the persisted audit trail. Recording failures are
// logged but never propagated; an audit write must not fail the request that
// triggered it.
type ActivityService struct {
	repo   ActivityLogRepository
	logger *slog.Logger
}

func NewActivityService(repo ActivityLogRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		repo:   repo,
		logger: logger,
	}
}

// Record writes an attributed audit entry.
func (s *ActivityService) Record(ctx context.Context, userID, action, details, ipAddress string) {
	entry := &models.ActivityLog{
		Action:    action,
		Details:   details,
		IPAddress: ipAddress,
	}
	if userID != "" {
		entry.UserID = &userID
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record activity",
			slog.String("action", action),
			slog.Any("error", err))
	}
}

// RecentActivity returns the latest audit entries for the dashboard.
func (s *ActivityService) RecentActivity(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRecent(ctx, limit)
}

// UserActivity returns one user's audit entries.
func (s *ActivityService) UserActivity(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
