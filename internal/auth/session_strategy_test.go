package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]int64
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]int64)}
}

func (f *fakeSessionStore) SaveSession(_ context.Context, sessionID string, userID int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sessionID] = userID
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, sessionID string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.sessions[sessionID]
	return userID, ok, nil
}

func (f *fakeSessionStore) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

func TestSessionStrategy_IssueAndResolve(t *testing.T) {
	user := testUser(t, 3, "carol", "hunter22")
	sessions := newFakeSessionStore()
	strategy := NewSessionStrategy(newFakeDirectory(user), sessions, time.Hour)
	ctx := context.Background()

	key, err := strategy.IssueCredential(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	got, err := strategy.ResolvePrincipal(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
}

func TestSessionStrategy_ResolveUnknownKey(t *testing.T) {
	user := testUser(t, 3, "carol", "hunter22")
	strategy := NewSessionStrategy(newFakeDirectory(user), newFakeSessionStore(), time.Hour)
	ctx := context.Background()

	got, err := strategy.ResolvePrincipal(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = strategy.ResolvePrincipal(ctx, "no-such-session")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStrategy_RevokeInvalidatesImmediately(t *testing.T) {
	user := testUser(t, 3, "carol", "hunter22")
	sessions := newFakeSessionStore()
	strategy := NewSessionStrategy(newFakeDirectory(user), sessions, time.Hour)
	ctx := context.Background()

	key, err := strategy.IssueCredential(ctx, user)
	require.NoError(t, err)

	require.NoError(t, strategy.RevokeCredential(ctx, key))

	got, err := strategy.ResolvePrincipal(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStrategy_OrphanedSessionDropped(t *testing.T) {
	user := testUser(t, 3, "carol", "hunter22")
	dir := newFakeDirectory(user)
	sessions := newFakeSessionStore()
	strategy := NewSessionStrategy(dir, sessions, time.Hour)
	ctx := context.Background()

	key, err := strategy.IssueCredential(ctx, user)
	require.NoError(t, err)

	delete(dir.users, 3)

	got, err := strategy.ResolvePrincipal(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The dangling session is cleaned up on first resolution.
	_, ok, err := sessions.GetSession(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStrategy_Authenticate(t *testing.T) {
	user := testUser(t, 3, "carol", "hunter22")
	strategy := NewSessionStrategy(newFakeDirectory(user), newFakeSessionStore(), time.Hour)
	ctx := context.Background()

	got, err := strategy.Authenticate(ctx, "carol", "hunter22")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = strategy.Authenticate(ctx, "carol", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = strategy.Authenticate(ctx, "mallory", "hunter22")
	require.NoError(t, err)
	assert.Nil(t, got)
}
