package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/session"
	pkglogger "github.com/coverdeskhq/coverdesk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "CorrectHorse9"

func newTestAuthService(t *testing.T, repo *MockCredentialRepository) *AuthService {
	t.Helper()
	logger := slog.Default()

	store := session.NewMemoryStore()
	t.Cleanup(store.Close)

	authenticator := auth.NewAuthenticator(store, repo, time.Hour, logger)
	throttle := auth.NewLoginThrottle(auth.NewMemoryThrottleStore(), 5, 5*time.Minute, logger)
	activity := NewActivityService(&MockActivityLogRepository{}, logger)

	return NewAuthService(
		repo,
		authenticator,
		throttle,
		auth.NewTOTPManager("CoverDesk"),
		activity,
		logger,
		pkglogger.NewAuditLogger(logger),
		5,
		5*time.Minute,
	)
}

func TestAuthService_Login_Success(t *testing.T) {
	user := NewTestUser("user-1", "agent@example.com", testPassword, models.RoleAgent)
	resets := 0
	repo := &MockCredentialRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		ResetFailedAttemptsFunc: func(ctx context.Context, id string) error {
			resets++
			return nil
		},
	}

	svc := newTestAuthService(t, repo)

	result, err := svc.Login(context.Background(), "Agent@Example.com", testPassword, "", "203.0.113.1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Session.ID)
	assert.NotEmpty(t, result.Session.CSRFToken)
	assert.Equal(t, "user-1", result.User.ID)
	assert.Equal(t, models.RoleAgent, result.User.Role)
	assert.Equal(t, 1, resets)

	// The session is immediately usable.
	authUser, err := svc.Validate(context.Background(), result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", authUser.UserID)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	user := NewTestUser("user-1", "agent@example.com", testPassword, models.RoleAgent)
	failures := 0
	repo := &MockCredentialRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		RecordFailedLoginFunc: func(ctx context.Context, id string) error {
			failures++
			return nil
		},
	}

	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "agent@example.com", "wrong-password", "", "203.0.113.1")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	assert.Equal(t, 1, failures)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	repo := &MockCredentialRepository{}
	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "nobody@example.com", testPassword, "", "203.0.113.1")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	user := NewTestUser("user-1", "agent@example.com", testPassword, models.RoleAgent)
	user.Status = models.StatusInactive
	repo := &MockCredentialRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}

	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "agent@example.com", testPassword, "", "203.0.113.1")
	assert.True(t, errors.Is(err, models.ErrAccountInactive))
}

func TestAuthService_Login_AccountLocked(t *testing.T) {
	user := NewTestUser("user-1", "agent@example.com", testPassword, models.RoleAgent)
	user.FailedAttempts = 5
	recent := time.Now().Add(-time.Minute)
	user.LastFailedLogin = &recent

	repo := &MockCredentialRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}

	svc := newTestAuthService(t, repo)

	// Correct password is irrelevant while the account is locked.
	_, err := svc.Login(context.Background(), "agent@example.com", testPassword, "", "203.0.113.1")
	assert.True(t, errors.Is(err, models.ErrAccountLocked))
}

func TestAuthService_Login_LockExpiresAfterWindow(t *testing.T) {
	user := NewTestUser("user-1", "agent@example.com", testPassword, models.RoleAgent)
	user.FailedAttempts = 5
	stale := time.Now().Add(-6 * time.Minute)
	user.LastFailedLogin = &stale

	repo := &MockCredentialRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	svc := newTestAuthService(t, repo)

	result, err := svc.Login(context.Background(), "agent@example.com", testPassword, "", "203.0.113.1")
	require.NoError(t, err)
	assert.NotNil(t, result.Session)
}

func TestAuthService_Login_ThrottledIP(t *testing.T) {
	repo := &MockCredentialRepository{}
	svc := newTestAuthService(t, repo)
	ctx := context.Background()
	ip := "203.0.113.9"

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "nobody@example.com", "bad", "", ip)
		assert.True(t, errors.Is(err, models.ErrUnauthorized))
	}

	_, err := svc.Login(ctx, "nobody@example.com", "bad", "", ip)
	assert.True(t, errors.Is(err, models.ErrTooManyAttempts))

	// A clean address is unaffected.
	_, err = svc.Login(ctx, "nobody@example.com", "bad", "", "203.0.113.10")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	user := NewTestUser("user-1", "agent@example.com", testPassword, models.RoleAgent)
	repo := &MockCredentialRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	result, err := svc.Login(ctx, "agent@example.com", testPassword, "", "203.0.113.1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.Session.ID, "user-1", "203.0.113.1"))

	_, err = svc.Validate(ctx, result.Session.ID)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	// Logging out again, or with no session at all, still succeeds.
	require.NoError(t, svc.Logout(ctx, result.Session.ID, "user-1", "203.0.113.1"))
	require.NoError(t, svc.Logout(ctx, "", "", "203.0.113.1"))
}
