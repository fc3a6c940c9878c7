package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/config"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateLimitService(repo *MockRateLimitRepository) *RateLimitService {
	actions := map[string]config.ActionLimit{
		"report_generate": {Limit: 5, Window: time.Hour},
	}
	return NewRateLimitService(repo, actions, slog.Default())
}

func TestRateLimitService_AllowsUpToLimit(t *testing.T) {
	repo := &MockRateLimitRepository{}
	svc := newTestRateLimitService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.CheckLimit(ctx, "user-1", "report_generate"))
	}

	err := svc.CheckLimit(ctx, "user-1", "report_generate")
	assert.True(t, errors.Is(err, models.ErrRateLimitExceeded))
}

func TestRateLimitService_DeniedAttemptNotRecorded(t *testing.T) {
	repo := &MockRateLimitRepository{}
	svc := newTestRateLimitService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.CheckLimit(ctx, "user-1", "report_generate"))
	}

	// Hammering a denied action must not extend the window.
	for i := 0; i < 10; i++ {
		require.Error(t, svc.CheckLimit(ctx, "user-1", "report_generate"))
	}

	count, limit, err := svc.Usage(ctx, "user-1", "report_generate")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Equal(t, 5, limit)
}

func TestRateLimitService_WindowElapses(t *testing.T) {
	repo := &MockRateLimitRepository{}
	svc := newTestRateLimitService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.CheckLimit(ctx, "user-1", "report_generate"))
	}
	require.Error(t, svc.CheckLimit(ctx, "user-1", "report_generate"))

	repo.Backdate(time.Hour + time.Minute)

	assert.NoError(t, svc.CheckLimit(ctx, "user-1", "report_generate"))
}

func TestRateLimitService_UsersIndependent(t *testing.T) {
	repo := &MockRateLimitRepository{}
	svc := newTestRateLimitService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.CheckLimit(ctx, "user-1", "report_generate"))
	}
	require.Error(t, svc.CheckLimit(ctx, "user-1", "report_generate"))

	assert.NoError(t, svc.CheckLimit(ctx, "user-2", "report_generate"))
}

func TestRateLimitService_UnconfiguredActionPasses(t *testing.T) {
	repo := &MockRateLimitRepository{}
	svc := newTestRateLimitService(repo)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, svc.CheckLimit(ctx, "user-1", "unlimited_action"))
	}

	count, _, err := svc.Usage(ctx, "user-1", "unlimited_action")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRateLimitService_Purge(t *testing.T) {
	repo := &MockRateLimitRepository{}
	svc := newTestRateLimitService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.CheckLimit(ctx, "user-1", "report_generate"))
	}
	repo.Backdate(25 * time.Hour)

	removed, err := svc.Purge(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}
