package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/session"
	pkgauth "github.com/coverdeskhq/coverdesk/pkg/auth"
	pkglogger "github.com/coverdeskhq/coverdesk/pkg/logger"
)

// CredentialRepository defines the user lookups and failure bookkeeping the
// login flow needs
type CredentialRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	RecordFailedLogin(ctx context.Context, id string) error
	ResetFailedAttempts(ctx context.Context, id string) error
}

// AuthService handles the login, validate and logout flows
type AuthService struct {
	repo          CredentialRepository
	authenticator *auth.Authenticator
	throttle      *auth.LoginThrottle
	totp          *auth.TOTPManager
	activity      *ActivityService
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
	lockThreshold int
	lockWindow    time.Duration
}

func NewAuthService(
	repo CredentialRepository,
	authenticator *auth.Authenticator,
	throttle *auth.LoginThrottle,
	totp *auth.TOTPManager,
	activity *ActivityService,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	lockThreshold int,
	lockWindow time.Duration,
) *AuthService {
	return &AuthService{
		repo:          repo,
		authenticator: authenticator,
		throttle:      throttle,
		totp:          totp,
		activity:      activity,
		logger:        logger,
		auditLogger:   auditLogger,
		lockThreshold: lockThreshold,
		lockWindow:    lockWindow,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	TOTPEnabled bool   `json:"totp_enabled"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// LoginResult carries the established session back to the handler, which
// turns it into a cookie plus a response body.
type LoginResult struct {
	Session *session.Session
	User    *UserResponse
}

// Login authenticates credentials and establishes a fresh session.
//
// The IP throttle is consulted before any credential work, so a blocked
// address learns nothing about account existence. Every failure past that
// point counts against both the IP throttle and, where an account was
// identified, that account's lock counter.
func (s *AuthService) Login(ctx context.Context, email, password, totpCode, ipAddress string) (*LoginResult, error) {
	if err := s.throttle.Check(ctx, ipAddress); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			IPAddress:     ipAddress,
			FailureReason: "throttled",
			Success:       false,
		})
		return nil, err
	}

	if email = strings.ToLower(strings.TrimSpace(email)); email == "" || password == "" {
		s.recordFailure(ctx, nil, ipAddress, "missing_credentials")
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordFailure(ctx, nil, ipAddress, "invalid_credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Per-account lock, independent of the IP throttle. The counter clears
	// itself once the window has elapsed since the last failure.
	if s.isLocked(user) {
		s.recordFailure(ctx, user, ipAddress, "account_locked")
		return nil, models.ErrAccountLocked
	}

	if user.Status != models.StatusActive {
		s.recordFailure(ctx, user, ipAddress, "account_inactive")
		return nil, models.ErrAccountInactive
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordFailure(ctx, user, ipAddress, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	if user.TOTPEnabled {
		if user.TOTPSecret == nil {
			s.logger.Error("totp enabled without a stored secret", slog.String("user_id", user.ID))
			return nil, models.ErrInternalServer
		}
		ok, err := s.totp.Validate(*user.TOTPSecret, totpCode)
		if err != nil || !ok {
			s.recordFailure(ctx, user, ipAddress, "invalid_totp")
			return nil, models.ErrUnauthorized
		}
	}

	if err := s.repo.ResetFailedAttempts(ctx, user.ID); err != nil {
		s.logger.Error("failed to reset failure counter", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	s.throttle.Reset(ctx, ipAddress)

	sess, err := s.authenticator.Establish(ctx, user)
	if err != nil {
		s.logger.Error("failed to establish session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})
	s.activity.Record(ctx, user.ID, models.ActivityLogin, "", ipAddress)

	return &LoginResult{
		Session: sess,
		User:    userModelToResponse(user),
	}, nil
}

// Validate resolves the session cookie into the current identity.
func (s *AuthService) Validate(ctx context.Context, sessionID string) (*models.AuthUser, error) {
	return s.authenticator.Authenticate(ctx, sessionID)
}

// Logout destroys the session. Destroying an absent or already destroyed
// session succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID, userID, ipAddress string) error {
	if err := s.authenticator.Destroy(ctx, sessionID); err != nil {
		s.logger.Error("failed to destroy session", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if userID != "" {
		s.activity.Record(ctx, userID, models.ActivityLogout, "", ipAddress)
	}

	return nil
}

// isLocked reports whether the account's failure counter has reached the
// threshold with the most recent failure still inside the lock window.
func (s *AuthService) isLocked(user *models.User) bool {
	if user.FailedAttempts < s.lockThreshold || user.LastFailedLogin == nil {
		return false
	}
	return time.Since(*user.LastFailedLogin) < s.lockWindow
}

// recordFailure charges a failed attempt to the IP throttle and, when the
// account is known, to its lock counter, then writes the audit records.
func (s *AuthService) recordFailure(ctx context.Context, user *models.User, ipAddress, reason string) {
	s.throttle.RecordFailure(ctx, ipAddress)

	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     ipAddress,
		FailureReason: reason,
		Success:       false,
	}

	if user != nil {
		event.UserID = user.ID
		if err := s.repo.RecordFailedLogin(ctx, user.ID); err != nil {
			s.logger.Error("failed to record login failure", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		s.activity.Record(ctx, user.ID, models.ActivityLoginFailed, reason, ipAddress)
	} else {
		s.activity.Record(ctx, "", models.ActivityLoginFailed, reason, ipAddress)
	}

	s.auditLogger.LogAuthAttempt(event)
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Status:      user.Status,
		TOTPEnabled: user.TOTPEnabled,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   user.UpdatedAt.Format(time.RFC3339),
	}
}
