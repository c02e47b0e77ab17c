package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberBoyAyush/cappychat/internal/types"
)

func seedUser(id string, registered time.Time, prefs types.Preferences) types.UserAccount {
	return types.UserAccount{
		ID:           id,
		Email:        id + "@example.com",
		RegisteredAt: registered,
		Preferences:  prefs,
	}
}

func TestMemoryGetUser(t *testing.T) {
	m := NewMemory()
	m.Put(seedUser("user-1", time.Now(), types.Preferences{
		Tier:        types.TierPremium,
		FreeCredits: types.Ptr(800),
	}))

	got, err := m.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.TierPremium, got.Preferences.Tier)
	require.NotNil(t, got.Preferences.FreeCredits)
	assert.Equal(t, 800, *got.Preferences.FreeCredits)

	_, err = m.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryListUsersPagination(t *testing.T) {
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"c", "a", "b"} {
		m.Put(seedUser(id, base, types.Preferences{}))
	}
	m.Put(seedUser("later", base.Add(time.Hour), types.Preferences{}))

	page, err := m.ListUsers(context.Background(), 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	// Registration time first, then id, so ordering is stable across calls.
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)
	assert.Equal(t, "c", page[2].ID)

	page, err = m.ListUsers(context.Background(), 3, 3)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "later", page[0].ID)

	page, err = m.ListUsers(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryUpdatePreferencesMerges(t *testing.T) {
	m := NewMemory()
	m.PutBag(seedUser("user-1", time.Now(), types.Preferences{}), map[string]any{
		"tier":        "premium",
		"freeCredits": 800,
		"theme":       "dark",
	})

	err := m.UpdatePreferences(context.Background(), "user-1", map[string]any{
		"tier":        "free",
		"freeCredits": 80,
	})
	require.NoError(t, err)

	bag := m.Bag("user-1")
	assert.Equal(t, "free", bag["tier"])
	assert.Equal(t, 80, bag["freeCredits"])
	assert.Equal(t, "dark", bag["theme"], "keys absent from the write must survive")

	err = m.UpdatePreferences(context.Background(), "nobody", map[string]any{"tier": "free"})
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestMemorySessions(t *testing.T) {
	m := NewMemory()
	m.Put(seedUser("user-1", time.Now(), types.Preferences{}))
	m.AddSession("user-1", "sess-a")
	m.AddSession("user-1", "sess-b")

	n, err := m.RevokeSessions(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, m.SessionCount("user-1"))

	n, err = m.RevokeSessions(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryCountUsers(t *testing.T) {
	m := NewMemory()
	count, err := m.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	m.Put(seedUser("user-1", time.Now(), types.Preferences{}))
	m.Put(seedUser("user-2", time.Now(), types.Preferences{}))

	count, err = m.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
