package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSessionFlow exercises the full login, CSRF, role gate, and logout
// path against a real database.
func TestSessionFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email, password := TestUser("agent")
	_, err = SeedUser(ctx, testDB.Pool, email, password, "agent")
	require.NoError(t, err)

	// Login establishes a session and returns the CSRF token.
	csrfToken, err := ts.Login(email, password)
	require.NoError(t, err)

	// The session cookie from the jar authenticates follow-up requests.
	resp, err := ts.Request("GET", "/api/auth/validate", nil, nil)
	require.NoError(t, err)
	ok, _, err := ParseEnvelope(resp, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// State-changing requests without the CSRF header are rejected.
	resp, err = ts.Request("POST", "/api/clients", map[string]string{
		"name":  "Acme Logistics",
		"email": "ops@acme.example.com",
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// With the CSRF header the same request succeeds.
	resp, err = ts.Request("POST", "/api/clients", map[string]string{
		"name":  "Acme Logistics",
		"email": "ops@acme.example.com",
	}, map[string]string{"X-CSRF-Token": csrfToken})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Agents cannot reach admin-only routes.
	resp, err = ts.Request("GET", "/api/users", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Logout destroys the session; validate fails afterwards.
	resp, err = ts.Request("POST", "/api/auth/logout", nil, map[string]string{"X-CSRF-Token": csrfToken})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Request("GET", "/api/auth/validate", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A second logout with the dead session still returns the success
	// envelope.
	resp, err = ts.Request("POST", "/api/auth/logout", nil, nil)
	require.NoError(t, err)
	ok, _, err = ParseEnvelope(resp, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginFailuresLockAccount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email, password := TestUser("locked")
	_, err = SeedUser(ctx, testDB.Pool, email, password, "agent")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		resp, err := ts.Request("POST", "/api/auth/login", map[string]string{
			"email":    email,
			"password": "wrong-password",
		}, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}

	// Correct credentials are refused while the IP throttle or account
	// lock is in effect.
	resp, err := ts.Request("POST", "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, []int{http.StatusForbidden, http.StatusTooManyRequests}, resp.StatusCode)
}

func TestMaintenanceEndpointsRequireSecret(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	resp, err := ts.Request("POST", "/api/maintenance/cleanup", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = ts.Request("POST", "/api/maintenance/cleanup", nil, map[string]string{
		"Authorization": "Bearer " + TestCronSecret,
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A scheduler pass over the seeded default schedule runs every task.
	resp, err = ts.Request("POST", "/api/maintenance/reports/run", nil, map[string]string{
		"Authorization": "Bearer " + TestCronSecret,
	})
	require.NoError(t, err)
	var result struct {
		Considered int `json:"considered"`
		Ran        int `json:"ran"`
		Failed     int `json:"failed"`
	}
	ok, _, err := ParseEnvelope(resp, &result)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, result.Considered)
	assert.Equal(t, 3, result.Ran)
	assert.Zero(t, result.Failed)
}
