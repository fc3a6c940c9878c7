package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/session"
	pkgauth "github.com/coverdeskhq/coverdesk/pkg/auth"
	"github.com/google/uuid"
)

// UserStatusFetcher is the slice of the user repository the authenticator
// needs: the current account status of a session's user.
type UserStatusFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator validates opaque session identifiers against server-side
// session state, enforcing the idle timeout and the account-active check.
type Authenticator struct {
	store       session.Store
	users       UserStatusFetcher
	idleTimeout time.Duration
	logger      *slog.Logger
}

// NewAuthenticator creates an Authenticator over the given session store.
func NewAuthenticator(store session.Store, users UserStatusFetcher, idleTimeout time.Duration, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		store:       store,
		users:       users,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// IdleTimeout returns the configured idle window. Used for cookie MaxAge.
func (a *Authenticator) IdleTimeout() time.Duration {
	return a.idleTimeout
}

// Authenticate resolves a session ID to an authenticated user.
//
//   - no session -> ErrUnauthorized
//   - idle timeout exceeded -> session destroyed, ErrSessionExpired
//   - account not active -> session destroyed, ErrAccountInactive
//
// On success the session's last_activity is refreshed, extending its life.
func (a *Authenticator) Authenticate(ctx context.Context, sessionID string) (*models.AuthUser, error) {
	if sessionID == "" {
		return nil, models.ErrUnauthorized
	}

	sess, err := a.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		a.logger.Error("failed to load session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	if now.Sub(sess.LastActivity) > a.idleTimeout {
		if err := a.store.Destroy(ctx, sessionID); err != nil {
			a.logger.Error("failed to destroy expired session", slog.Any("error", err))
		}
		a.logger.Info("session expired", slog.String("user_id", sess.UserID))
		return nil, models.ErrSessionExpired
	}

	user, err := a.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = a.store.Destroy(ctx, sessionID)
			return nil, models.ErrUnauthorized
		}
		a.logger.Error("failed to load user for session", slog.String("user_id", sess.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.Status != models.StatusActive {
		if err := a.store.Destroy(ctx, sessionID); err != nil {
			a.logger.Error("failed to destroy session for inactive account", slog.Any("error", err))
		}
		a.logger.Info("session rejected: account inactive", slog.String("user_id", user.ID))
		return nil, models.ErrAccountInactive
	}

	sess.LastActivity = now
	if err := a.store.Save(ctx, sess, a.idleTimeout); err != nil {
		a.logger.Error("failed to refresh session activity", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.AuthUser{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sess.ID,
		CSRFToken: sess.CSRFToken,
	}, nil
}

// Establish creates a fresh session for a user who has just passed the
// credential check. The session ID is always newly generated, never reused
// from the request, which prevents session fixation.
func (a *Authenticator) Establish(ctx context.Context, user *models.User) (*session.Session, error) {
	id := uuid.New().String()

	csrfToken, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate csrf token: %w", err)
	}

	now := time.Now()
	sess := &session.Session{
		ID:           id,
		UserID:       user.ID,
		Role:         user.Role,
		CSRFToken:    csrfToken,
		LastActivity: now,
		CreatedAt:    now,
	}

	if err := a.store.Save(ctx, sess, a.idleTimeout); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return sess, nil
}

// Destroy removes the session. Destroying an already-destroyed session is
// not an error, which keeps logout idempotent.
func (a *Authenticator) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return a.store.Destroy(ctx, sessionID)
}
