// Package store defines the preference store boundary: the minimal set of
// operations this service needs from the external user/preferences backend.
//
// Persistence is owned by a backend-as-a-service document store. The contract
// is deliberately small: get one user, list users by offset page, and apply a
// merge write to one user's preference bag. The store offers last-write-wins
// semantics only; callers mitigate races by merging a freshly re-read bag and
// keeping each logical operation to exactly one write.
package store

import (
	"context"
	"errors"

	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// ErrUserNotFound is returned by GetUser when no user exists with the given id.
var ErrUserNotFound = errors.New("user not found")

// PreferenceStore is the consumed interface over the external user store.
type PreferenceStore interface {
	// GetUser fetches a single user record including its preference bag.
	// Returns ErrUserNotFound (possibly wrapped) when the id is unknown.
	GetUser(ctx context.Context, id string) (types.UserAccount, error)

	// ListUsers returns one offset page of users in stable creation order.
	// A short page (fewer than limit results) means the sweep has reached
	// the end of the collection.
	ListUsers(ctx context.Context, limit, offset int) ([]types.UserAccount, error)

	// UpdatePreferences applies a merge write: keys present in bag overwrite
	// the stored values, keys absent from bag survive unchanged. No key is
	// ever removed.
	UpdatePreferences(ctx context.Context, id string, bag map[string]any) error

	// CountUsers returns the total number of user records.
	CountUsers(ctx context.Context) (int64, error)
}

// SessionRevoker deletes all active sessions for one user. Used by the
// chunked logout sweep; separate from PreferenceStore because most consumers
// never touch sessions.
type SessionRevoker interface {
	// RevokeSessions removes every session belonging to userID and returns
	// the number of sessions deleted.
	RevokeSessions(ctx context.Context, userID string) (int, error)
}
