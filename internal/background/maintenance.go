package background

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes rows older than a cutoff and reports how many went.
type Purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaintenanceManager periodically purges aged rate limit entries and audit
// rows. The same purges are callable on demand through the maintenance
// endpoint for deployments that prefer an external cron.
type MaintenanceManager struct {
	rateLimits      Purger
	activityLogs    Purger
	rateLimitRetain time.Duration
	activityRetain  time.Duration
	logger          *slog.Logger
	interval        time.Duration
	stopCh          chan struct{}
}

func NewMaintenanceManager(
	rateLimits Purger,
	activityLogs Purger,
	rateLimitRetain time.Duration,
	activityRetain time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *MaintenanceManager {
	return &MaintenanceManager{
		rateLimits:      rateLimits,
		activityLogs:    activityLogs,
		rateLimitRetain: rateLimitRetain,
		activityRetain:  activityRetain,
		interval:        interval,
		logger:          logger,
		stopCh:          make(chan struct{}),
	}
}

// Start begins the periodic maintenance task
func (mm *MaintenanceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	mm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			mm.RunOnce(ctx)
		case <-mm.stopCh:
			mm.logger.Info("maintenance manager stopped")
			return
		case <-ctx.Done():
			mm.logger.Info("maintenance manager context cancelled")
			return
		}
	}
}

// MaintenanceResult reports what one maintenance run removed.
type MaintenanceResult struct {
	RateLimitsPurged   int64 `json:"rate_limits_purged"`
	ActivityLogsPurged int64 `json:"activity_logs_purged"`
}

// RunOnce executes one purge pass.
func (mm *MaintenanceManager) RunOnce(ctx context.Context) MaintenanceResult {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var result MaintenanceResult
	var err error

	result.RateLimitsPurged, err = mm.rateLimits.DeleteOlderThan(runCtx, time.Now().Add(-mm.rateLimitRetain))
	if err != nil {
		mm.logger.Error("failed to purge rate limit entries", slog.Any("error", err))
	}

	result.ActivityLogsPurged, err = mm.activityLogs.DeleteOlderThan(runCtx, time.Now().Add(-mm.activityRetain))
	if err != nil {
		mm.logger.Error("failed to purge activity logs", slog.Any("error", err))
	}

	if result.RateLimitsPurged > 0 || result.ActivityLogsPurged > 0 {
		mm.logger.Info("maintenance pass completed",
			slog.Int64("rate_limits_purged", result.RateLimitsPurged),
			slog.Int64("activity_logs_purged", result.ActivityLogsPurged))
	}

	return result
}

// Stop signals the maintenance manager to stop
func (mm *MaintenanceManager) Stop() {
	close(mm.stopCh)
}
