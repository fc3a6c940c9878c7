package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/config"
	"github.com/coverdeskhq/coverdesk/internal/models"
)

// RateLimitRepository defines the interface for the sliding-window action log
type RateLimitRepository interface {
	CountAndRecord(ctx context.Context, userID, action string, windowStart time.Time, limit int) (int64, bool, error)
	CountSince(ctx context.Context, userID, action string, windowStart time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitService enforces per-user, per-action sliding-window limits.
// Actions without a configured limit always pass and are not recorded.
type RateLimitService struct {
	repo    RateLimitRepository
	actions map[string]config.ActionLimit
	logger  *slog.Logger
}

func NewRateLimitService(repo RateLimitRepository, actions map[string]config.ActionLimit, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		repo:    repo,
		actions: actions,
		logger:  logger,
	}
}

// CheckLimit decides whether the user may perform the action now. An allowed
// decision records the attempt in the same transaction as the count, so two
// concurrent requests cannot both consume the final slot.
func (s *RateLimitService) CheckLimit(ctx context.Context, userID, action string) error {
	limit, ok := s.actions[action]
	if !ok {
		return nil
	}

	windowStart := time.Now().Add(-limit.Window)

	count, recorded, err := s.repo.CountAndRecord(ctx, userID, action, windowStart, limit.Limit)
	if err != nil {
		s.logger.Error("rate limit check failed",
			slog.String("user_id", userID),
			slog.String("action", action),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !recorded {
		s.logger.Warn("rate limit exceeded",
			slog.String("user_id", userID),
			slog.String("action", action),
			slog.Int64("count", count),
			slog.Int("limit", limit.Limit))
		return models.ErrRateLimitExceeded
	}

	return nil
}

// Usage reports how many attempts the user has consumed in the current
// window, without recording one.
func (s *RateLimitService) Usage(ctx context.Context, userID, action string) (int64, int, error) {
	limit, ok := s.actions[action]
	if !ok {
		return 0, 0, nil
	}

	count, err := s.repo.CountSince(ctx, userID, action, time.Now().Add(-limit.Window))
	if err != nil {
		return 0, 0, err
	}

	return count, limit.Limit, nil
}

// Purge removes entries older than the retention horizon.
func (s *RateLimitService) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}
