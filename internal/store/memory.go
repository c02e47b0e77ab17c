package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// Memory is an in-memory PreferenceStore used by tests and local development.
// It reproduces the backend's semantics faithfully: preference writes are
// shallow key merges, reads return decoded copies, and listing is stable
// creation order with offset pagination.
type Memory struct {
	mu       sync.Mutex
	users    map[string]memUser
	sessions map[string][]string // userID -> session ids
}

type memUser struct {
	account types.UserAccount // Preferences field unused; bag is authoritative
	bag     map[string]any
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]memUser),
		sessions: make(map[string][]string),
	}
}

// Put inserts or replaces a user record. The account's Preferences are
// encoded into the stored bag form.
func (m *Memory) Put(account types.UserAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[account.ID] = memUser{
		account: account,
		bag:     account.Preferences.ToMap(),
	}
}

// PutBag inserts or replaces a user with a raw preference bag, bypassing the
// typed encoding. Useful for seeding documents with unknown/corrupt fields.
func (m *Memory) PutBag(account types.UserAccount, bag map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]any, len(bag))
	for k, v := range bag {
		copied[k] = v
	}
	m.users[account.ID] = memUser{account: account, bag: copied}
}

// Bag returns a copy of the raw stored bag for assertions in tests.
func (m *Memory) Bag(id string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(u.bag))
	for k, v := range u.bag {
		out[k] = v
	}
	return out
}

// AddSession records a session id for a user.
func (m *Memory) AddSession(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = append(m.sessions[userID], sessionID)
}

// SessionCount returns the number of live sessions for a user.
func (m *Memory) SessionCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions[userID])
}

// GetUser implements PreferenceStore.
func (m *Memory) GetUser(ctx context.Context, id string) (types.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.UserAccount{}, fmt.Errorf("get user %s: %w", id, ErrUserNotFound)
	}
	return m.decode(u), nil
}

// ListUsers implements PreferenceStore. Ordering is by registration time,
// then id, to mirror the backend's stable creation ordering.
func (m *Memory) ListUsers(ctx context.Context, limit, offset int) ([]types.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]memUser, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].account, all[j].account
		if !a.RegisteredAt.Equal(b.RegisteredAt) {
			return a.RegisteredAt.Before(b.RegisteredAt)
		}
		return a.ID < b.ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	out := make([]types.UserAccount, 0, end-offset)
	for _, u := range all[offset:end] {
		out = append(out, m.decode(u))
	}
	return out, nil
}

// UpdatePreferences implements PreferenceStore with shallow key-merge
// semantics: keys in bag overwrite, other keys survive.
func (m *Memory) UpdatePreferences(ctx context.Context, id string, bag map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("update preferences for %s: %w", id, ErrUserNotFound)
	}
	for k, v := range bag {
		u.bag[k] = v
	}
	m.users[id] = u
	return nil
}

// CountUsers implements PreferenceStore.
func (m *Memory) CountUsers(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

// RevokeSessions implements SessionRevoker.
func (m *Memory) RevokeSessions(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sessions[userID])
	delete(m.sessions, userID)
	return n, nil
}

func (m *Memory) decode(u memUser) types.UserAccount {
	account := u.account
	bag := make(map[string]any, len(u.bag))
	for k, v := range u.bag {
		bag[k] = v
	}
	account.Preferences = types.PreferencesFromMap(bag)
	return account
}
