package services

import (
	"context"
	"sync"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
	pkgauth "github.com/coverdeskhq/coverdesk/pkg/auth"
)

// MockCredentialRepository implements CredentialRepository for testing
type MockCredentialRepository struct {
	GetByEmailFunc          func(ctx context.Context, email string) (*models.User, error)
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	RecordFailedLoginFunc   func(ctx context.Context, id string) error
	ResetFailedAttemptsFunc func(ctx context.Context, id string) error
}

func (m *MockCredentialRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialRepository) RecordFailedLogin(ctx context.Context, id string) error {
	if m.RecordFailedLoginFunc != nil {
		return m.RecordFailedLoginFunc(ctx, id)
	}
	return nil
}

func (m *MockCredentialRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, id)
	}
	return nil
}

// MockActivityLogRepository implements ActivityLogRepository for testing
type MockActivityLogRepository struct {
	mu      sync.Mutex
	Entries []*models.ActivityLog
}

func (m *MockActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockActivityLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Entries) > limit {
		return m.Entries[:limit], nil
	}
	return m.Entries, nil
}

func (m *MockActivityLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityLog, error) {
	return []*models.ActivityLog{}, nil
}

// MockRateLimitRepository is an in-memory RateLimitRepository for testing
type MockRateLimitRepository struct {
	mu      sync.Mutex
	entries []models.RateLimitEntry
}

func (m *MockRateLimitRepository) CountAndRecord(ctx context.Context, userID, action string, windowStart time.Time, limit int) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.countLocked(userID, action, windowStart)
	if count >= int64(limit) {
		return count, false, nil
	}

	m.entries = append(m.entries, models.RateLimitEntry{
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now(),
	})
	return count, true, nil
}

func (m *MockRateLimitRepository) CountSince(ctx context.Context, userID, action string, windowStart time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(userID, action, windowStart), nil
}

func (m *MockRateLimitRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var removed int64
	for _, entry := range m.entries {
		if entry.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept
	return removed, nil
}

func (m *MockRateLimitRepository) countLocked(userID, action string, windowStart time.Time) int64 {
	var count int64
	for _, entry := range m.entries {
		if entry.UserID == userID && entry.Action == action && !entry.CreatedAt.Before(windowStart) {
			count++
		}
	}
	return count
}

// Backdate shifts every stored entry into the past, simulating window elapse.
func (m *MockRateLimitRepository) Backdate(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		m.entries[i].CreatedAt = m.entries[i].CreatedAt.Add(-d)
	}
}

// MockReportScheduleRepository implements ReportScheduleRepository for testing
type MockReportScheduleRepository struct {
	ListFunc    func(ctx context.Context) ([]*models.ReportTask, error)
	GetFunc     func(ctx context.Context, taskType string) (*models.ReportTask, error)
	UpsertFunc  func(ctx context.Context, task *models.ReportTask) error
	MarkRunFunc func(ctx context.Context, taskType string, ranAt time.Time) error
	DeleteFunc  func(ctx context.Context, taskType string) error
}

func (m *MockReportScheduleRepository) List(ctx context.Context) ([]*models.ReportTask, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.ReportTask{}, nil
}

func (m *MockReportScheduleRepository) Get(ctx context.Context, taskType string) (*models.ReportTask, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, taskType)
	}
	return nil, models.ErrNotFound
}

func (m *MockReportScheduleRepository) Upsert(ctx context.Context, task *models.ReportTask) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, task)
	}
	return nil
}

func (m *MockReportScheduleRepository) MarkRun(ctx context.Context, taskType string, ranAt time.Time) error {
	if m.MarkRunFunc != nil {
		return m.MarkRunFunc(ctx, taskType, ranAt)
	}
	return nil
}

func (m *MockReportScheduleRepository) Delete(ctx context.Context, taskType string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, taskType)
	}
	return nil
}

// MockClaimAggregator implements ClaimAggregator for testing
type MockClaimAggregator struct {
	StatusTotalsFunc func(ctx context.Context, since time.Time) (map[string]models.ClaimStatusTotal, error)
}

func (m *MockClaimAggregator) StatusTotals(ctx context.Context, since time.Time) (map[string]models.ClaimStatusTotal, error) {
	if m.StatusTotalsFunc != nil {
		return m.StatusTotalsFunc(ctx, since)
	}
	return map[string]models.ClaimStatusTotal{}, nil
}

// MockPolicyAggregator implements PolicyAggregator for testing
type MockPolicyAggregator struct {
	ListExpiringBeforeFunc func(ctx context.Context, cutoff time.Time) ([]*models.Policy, error)
	PremiumTotalFunc       func(ctx context.Context) (float64, error)
}

func (m *MockPolicyAggregator) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.Policy, error) {
	if m.ListExpiringBeforeFunc != nil {
		return m.ListExpiringBeforeFunc(ctx, cutoff)
	}
	return []*models.Policy{}, nil
}

func (m *MockPolicyAggregator) PremiumTotal(ctx context.Context) (float64, error) {
	if m.PremiumTotalFunc != nil {
		return m.PremiumTotalFunc(ctx)
	}
	return 0, nil
}

// MockEmailService records deliveries instead of sending them
type MockEmailService struct {
	mu        sync.Mutex
	SendErr   error
	Delivered []string // recipients, in delivery order
}

func (m *MockEmailService) SendReport(ctx context.Context, recipient, subject, textBody string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delivered = append(m.Delivered, recipient)
	return nil
}

// NewTestUser builds an active user with the given password hashed.
func NewTestUser(id, email, password, role string) *models.User {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	now := time.Now()
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		Role:         role,
		Status:       models.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
