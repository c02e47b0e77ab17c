// Package firestore implements the preference store boundary on Google Cloud
// Firestore. User records live in a single collection with the preference bag
// as a nested map field; preference writes use field-mask merges so keys not
// named by a mutation are untouched at the storage layer as well as in the
// application's merge logic.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/CyberBoyAyush/cappychat/internal/store"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// Field names inside a user document.
const (
	fieldEmail         = "email"
	fieldDisplayName   = "displayName"
	fieldEmailVerified = "emailVerified"
	fieldRegisteredAt  = "registeredAt"
	fieldPreferences   = "preferences"

	// Session documents reference their owner by this field.
	fieldSessionUserID = "userId"
)

// Config holds collection names for the Firestore store.
type Config struct {
	// UsersCollection is the collection holding user documents.
	// Default: "users".
	UsersCollection string

	// SessionsCollection is the collection holding session documents.
	// Default: "sessions".
	SessionsCollection string
}

// Store implements store.PreferenceStore and store.SessionRevoker on
// Firestore.
type Store struct {
	client   *firestore.Client
	users    string
	sessions string
}

// New creates a Firestore-backed store.
func New(client *firestore.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if cfg.UsersCollection == "" {
		cfg.UsersCollection = "users"
	}
	if cfg.SessionsCollection == "" {
		cfg.SessionsCollection = "sessions"
	}
	return &Store{
		client:   client,
		users:    cfg.UsersCollection,
		sessions: cfg.SessionsCollection,
	}, nil
}

// GetUser implements store.PreferenceStore.
func (s *Store) GetUser(ctx context.Context, id string) (types.UserAccount, error) {
	snap, err := s.client.Collection(s.users).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.UserAccount{}, fmt.Errorf("get user %s: %w", id, store.ErrUserNotFound)
		}
		return types.UserAccount{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return decodeUser(snap), nil
}

// ListUsers implements store.PreferenceStore. Pages are ordered by
// registration time (document creation order) so the offset cursor is stable
// while a sweep is in flight.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]types.UserAccount, error) {
	iter := s.client.Collection(s.users).
		OrderBy(fieldRegisteredAt, firestore.Asc).
		Offset(offset).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var out []types.UserAccount
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list users (offset %d): %w", offset, err)
		}
		out = append(out, decodeUser(snap))
	}
	return out, nil
}

// UpdatePreferences implements store.PreferenceStore using a MergeAll set:
// only the field paths present in bag are written, everything else in the
// document survives untouched.
func (s *Store) UpdatePreferences(ctx context.Context, id string, bag map[string]any) error {
	if len(bag) == 0 {
		return nil
	}
	_, err := s.client.Collection(s.users).Doc(id).Set(ctx, map[string]any{
		fieldPreferences: bag,
	}, firestore.MergeAll)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("update preferences for %s: %w", id, store.ErrUserNotFound)
		}
		return fmt.Errorf("update preferences for %s: %w", id, err)
	}
	return nil
}

// CountUsers implements store.PreferenceStore via a server-side aggregation
// so the count does not stream every document.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	res, err := s.client.Collection(s.users).NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	v, ok := res["count"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count users: unexpected aggregation result %T", res["count"])
	}
	return v.GetIntegerValue(), nil
}

// RevokeSessions implements store.SessionRevoker by deleting every session
// document owned by the user.
func (s *Store) RevokeSessions(ctx context.Context, userID string) (int, error) {
	iter := s.client.Collection(s.sessions).
		Where(fieldSessionUserID, "==", userID).
		Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("listing sessions for %s: %w", userID, err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return deleted, fmt.Errorf("deleting session %s: %w", snap.Ref.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

// decodeUser converts a Firestore document snapshot into the domain account.
// Field decoding is lenient: a malformed field degrades to its zero value
// rather than failing the read.
func decodeUser(snap *firestore.DocumentSnapshot) types.UserAccount {
	data := snap.Data()

	account := types.UserAccount{ID: snap.Ref.ID}
	if v, ok := data[fieldEmail].(string); ok {
		account.Email = v
	}
	if v, ok := data[fieldDisplayName].(string); ok {
		account.DisplayName = v
	}
	if v, ok := data[fieldEmailVerified].(bool); ok {
		account.EmailVerified = v
	}
	if v, ok := data[fieldRegisteredAt].(time.Time); ok {
		account.RegisteredAt = v.UTC()
	} else {
		account.RegisteredAt = snap.CreateTime
	}
	if bag, ok := data[fieldPreferences].(map[string]any); ok {
		account.Preferences = types.PreferencesFromMap(bag)
	}
	return account
}
