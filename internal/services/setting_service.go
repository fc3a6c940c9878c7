package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// SettingRepository defines the interface for company settings
type SettingRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	List(ctx context.Context) ([]*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

// SettingService handles company settings. Updates are rate limited per user.
type SettingService struct {
	repo      SettingRepository
	rateLimit *RateLimitService
	activity  *ActivityService
	logger    *slog.Logger
}

func NewSettingService(repo SettingRepository, rateLimit *RateLimitService, activity *ActivityService, logger *slog.Logger) *SettingService {
	return &SettingService{
		repo:      repo,
		rateLimit: rateLimit,
		activity:  activity,
		logger:    logger,
	}
}

// SettingResponse represents a setting in the HTTP response
type SettingResponse struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

// SettingRequest is the payload for setting updates
type SettingRequest struct {
	Key   string `json:"key" validate:"required,min=1,max=100"`
	Value string `json:"value" validate:"max=4000"`
}

func (s *SettingService) List(ctx context.Context) ([]*SettingResponse, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list settings", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*SettingResponse, 0, len(settings))
	for _, setting := range settings {
		responses = append(responses, settingModelToResponse(setting))
	}
	return responses, nil
}

func (s *SettingService) Get(ctx context.Context, key string) (*SettingResponse, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return settingModelToResponse(setting), nil
}

func (s *SettingService) Update(ctx context.Context, actor *models.AuthUser, req *SettingRequest, ipAddress string) (*SettingResponse, error) {
	if err := s.rateLimit.CheckLimit(ctx, actor.UserID, "setting_update"); err != nil {
		return nil, err
	}

	setting := &models.Setting{
		Key:       req.Key,
		Value:     req.Value,
		UpdatedBy: actor.UserID,
	}

	if err := s.repo.Upsert(ctx, setting); err != nil {
		s.logger.Error("failed to upsert setting", slog.String("key", req.Key), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	stored, err := s.repo.Get(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivitySettingUpdate, "updated setting "+req.Key, ipAddress)

	return settingModelToResponse(stored), nil
}

func settingModelToResponse(setting *models.Setting) *SettingResponse {
	return &SettingResponse{
		Key:       setting.Key,
		Value:     setting.Value,
		UpdatedAt: setting.UpdatedAt.Format(time.RFC3339),
	}
}
