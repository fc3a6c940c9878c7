package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	pkgauth "github.com/coverdeskhq/coverdesk/pkg/auth"
	pkglogger "github.com/coverdeskhq/coverdesk/pkg/logger"
)

// UserRepository defines the interface for user account persistence
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	SetTOTPSecret(ctx context.Context, id, secret string) error
	EnableTOTP(ctx context.Context, id string) error
}

// UserService handles account administration
type UserService struct {
	repo        UserRepository
	totp        *auth.TOTPManager
	activity    *ActivityService
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewUserService(repo UserRepository, totp *auth.TOTPManager, activity *ActivityService, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		totp:        totp,
		activity:    activity,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// CreateUserRequest is the payload for account creation
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Role     string `json:"role" validate:"required,oneof=admin agent user"`
}

// UpdateUserRequest is the payload for account updates
type UpdateUserRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=200"`
	Role   string `json:"role" validate:"required,oneof=admin agent user"`
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

func (s *UserService) Create(ctx context.Context, actor *models.AuthUser, req *CreateUserRequest, ipAddress string) (*UserResponse, error) {
	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		return nil, models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
		Status:       models.StatusActive,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityUserCreate, "created "+pkglogger.SanitizedEmail(created.Email), ipAddress)
	s.auditLogger.LogAccountAction("user_created", actor.UserID, ipAddress, map[string]string{
		"target_user_id": created.ID,
		"role":           created.Role,
	})

	return userModelToResponse(created), nil
}

func (s *UserService) Get(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return userModelToResponse(user), nil
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*UserResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, userModelToResponse(user))
	}
	return responses, nil
}

func (s *UserService) Update(ctx context.Context, actor *models.AuthUser, id string, req *UpdateUserRequest, ipAddress string) (*UserResponse, error) {
	// An admin demoting or deactivating themselves would lock the
	// back office out of account administration.
	if actor.UserID == id && (req.Role != models.RoleAdmin || req.Status != models.StatusActive) {
		return nil, models.ErrBadRequest
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = req.Name
	user.Role = req.Role
	user.Status = req.Status

	updated, err := s.repo.Update(ctx, id, user)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityUserUpdate, "updated user "+id, ipAddress)

	return userModelToResponse(updated), nil
}

func (s *UserService) Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error {
	if actor.UserID == id {
		return models.ErrBadRequest
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityUserDelete, "deleted user "+id, ipAddress)
	s.auditLogger.LogAccountAction("user_deleted", actor.UserID, ipAddress, map[string]string{
		"target_user_id": id,
	})

	return nil
}

// TOTPSetupResponse carries the enrollment material back to the client.
type TOTPSetupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

// BeginTOTPSetup generates and stores a pending secret for the caller. The
// secret stays disabled until a valid code confirms the enrollment.
func (s *UserService) BeginTOTPSetup(ctx context.Context, actor *models.AuthUser) (*TOTPSetupResponse, error) {
	secret, qr, err := s.totp.GenerateSecretWithQR(actor.Email)
	if err != nil {
		s.logger.Error("failed to generate totp secret", slog.String("user_id", actor.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.SetTOTPSecret(ctx, actor.UserID, secret); err != nil {
		return nil, err
	}

	return &TOTPSetupResponse{Secret: secret, QRCode: qr}, nil
}

// ConfirmTOTPSetup verifies the first code against the pending secret and
// enables the second factor.
func (s *UserService) ConfirmTOTPSetup(ctx context.Context, actor *models.AuthUser, code, ipAddress string) error {
	user, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return models.ErrBadRequest
	}

	ok, err := s.totp.Validate(*user.TOTPSecret, code)
	if err != nil || !ok {
		return models.ErrBadRequest
	}

	if err := s.repo.EnableTOTP(ctx, actor.UserID); err != nil {
		return err
	}

	s.auditLogger.LogAccountAction("totp_enabled", actor.UserID, ipAddress, nil)

	return nil
}
