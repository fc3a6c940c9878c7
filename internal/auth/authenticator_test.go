package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockUserFetcher implements UserStatusFetcher for testing
type mockUserFetcher struct {
	users map[string]*models.User
}

func (m *mockUserFetcher) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

func newTestAuthenticator(t *testing.T, idleTimeout time.Duration) (*Authenticator, *session.MemoryStore, *mockUserFetcher) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	store := session.NewMemoryStore()
	t.Cleanup(store.Close)

	users := &mockUserFetcher{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "agent@example.com", Role: models.RoleAgent, Status: models.StatusActive},
	}}

	return NewAuthenticator(store, users, idleTimeout, logger), store, users
}

func TestAuthenticator_NoSession(t *testing.T) {
	a, _, _ := newTestAuthenticator(t, time.Hour)

	_, err := a.Authenticate(context.Background(), "")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	_, err = a.Authenticate(context.Background(), "unknown-session")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestAuthenticator_Success_RefreshesActivity(t *testing.T) {
	a, store, _ := newTestAuthenticator(t, time.Hour)
	ctx := context.Background()

	stale := time.Now().Add(-30 * time.Minute)
	require.NoError(t, store.Save(ctx, &session.Session{
		ID:           "sess-1",
		UserID:       "user-1",
		Role:         models.RoleAgent,
		CSRFToken:    "csrf-1",
		LastActivity: stale,
	}, time.Hour))

	user, err := a.Authenticate(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, models.RoleAgent, user.Role)
	assert.Equal(t, "csrf-1", user.CSRFToken)

	// last_activity must be refreshed, extending the session
	sess, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, sess.LastActivity.After(stale))
}

func TestAuthenticator_IdleTimeout_DestroysSession(t *testing.T) {
	a, store, _ := newTestAuthenticator(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &session.Session{
		ID:           "sess-2",
		UserID:       "user-1",
		LastActivity: time.Now().Add(-time.Hour - time.Second),
	}, time.Hour))

	_, err := a.Authenticate(ctx, "sess-2")
	assert.True(t, errors.Is(err, models.ErrSessionExpired))

	// A subsequent request with the same session must now be Unauthorized.
	_, err = a.Authenticate(ctx, "sess-2")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestAuthenticator_InactiveAccount_DestroysSession(t *testing.T) {
	a, store, users := newTestAuthenticator(t, time.Hour)
	ctx := context.Background()

	users.users["user-1"].Status = models.StatusInactive

	require.NoError(t, store.Save(ctx, &session.Session{
		ID:           "sess-3",
		UserID:       "user-1",
		LastActivity: time.Now(),
	}, time.Hour))

	_, err := a.Authenticate(ctx, "sess-3")
	assert.True(t, errors.Is(err, models.ErrAccountInactive))

	_, err = store.Load(ctx, "sess-3")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestAuthenticator_DeletedUser_Unauthorized(t *testing.T) {
	a, store, _ := newTestAuthenticator(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &session.Session{
		ID:           "sess-4",
		UserID:       "gone",
		LastActivity: time.Now(),
	}, time.Hour))

	_, err := a.Authenticate(ctx, "sess-4")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestAuthenticator_Establish_GeneratesFreshSession(t *testing.T) {
	a, store, users := newTestAuthenticator(t, time.Hour)
	ctx := context.Background()

	sess, err := a.Establish(ctx, users.users["user-1"])
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.CSRFToken)
	assert.Equal(t, models.RoleAgent, sess.Role)

	second, err := a.Establish(ctx, users.users["user-1"])
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, second.ID, "session id must be regenerated on each login")
	assert.NotEqual(t, sess.CSRFToken, second.CSRFToken)

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
}

func TestAuthenticator_Destroy_Idempotent(t *testing.T) {
	a, _, users := newTestAuthenticator(t, time.Hour)
	ctx := context.Background()

	sess, err := a.Establish(ctx, users.users["user-1"])
	require.NoError(t, err)

	require.NoError(t, a.Destroy(ctx, sess.ID))
	require.NoError(t, a.Destroy(ctx, sess.ID))
	require.NoError(t, a.Destroy(ctx, ""))
}
