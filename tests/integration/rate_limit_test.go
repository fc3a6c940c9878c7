package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdeskhq/coverdesk/internal/repositories"
)

// TestCountAndRecordConcurrent hammers one (user, action) pair from many
// goroutines and verifies the advisory lock keeps the decision serial:
// exactly limit attempts are recorded, never more.
func TestCountAndRecordConcurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	repo := repositories.NewRateLimitRepository(testDB.DB)

	const (
		limit   = 10
		workers = 25
	)
	windowStart := time.Now().Add(-time.Hour)

	var recorded int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.CountAndRecord(ctx, "user-1", "report_generate", windowStart, limit)
			if err == nil && ok {
				atomic.AddInt64(&recorded, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, recorded)

	count, err := repo.CountSince(ctx, "user-1", "report_generate", windowStart)
	require.NoError(t, err)
	assert.EqualValues(t, limit, count)
}
