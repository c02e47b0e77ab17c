package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/CyberBoyAyush/cappychat/internal/metrics"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// Resilient wraps a PreferenceStore with a circuit breaker so a degraded
// backend sheds load quickly instead of stacking up slow failing calls.
// A tripped breaker surfaces as an ordinary error to the caller, which the
// sweep counts as a per-user failure and the webhook handler reports as a
// retryable write failure.
type Resilient struct {
	inner   PreferenceStore
	breaker *gobreaker.CircuitBreaker[any]
}

// NewResilient wraps inner with a circuit breaker that opens after five
// consecutive failures and probes again after 30 seconds.
func NewResilient(inner PreferenceStore) *Resilient {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "preference-store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A missing user is a business outcome, not a backend fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUserNotFound)
		},
	})
	return &Resilient{inner: inner, breaker: cb}
}

// GetUser implements PreferenceStore.
func (r *Resilient) GetUser(ctx context.Context, id string) (types.UserAccount, error) {
	v, err := r.breaker.Execute(func() (any, error) {
		return r.inner.GetUser(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			metrics.StoreErrorsTotal.WithLabelValues("get_user").Inc()
		}
		return types.UserAccount{}, err
	}
	return v.(types.UserAccount), nil
}

// ListUsers implements PreferenceStore.
func (r *Resilient) ListUsers(ctx context.Context, limit, offset int) ([]types.UserAccount, error) {
	v, err := r.breaker.Execute(func() (any, error) {
		return r.inner.ListUsers(ctx, limit, offset)
	})
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("list_users").Inc()
		return nil, err
	}
	return v.([]types.UserAccount), nil
}

// UpdatePreferences implements PreferenceStore.
func (r *Resilient) UpdatePreferences(ctx context.Context, id string, bag map[string]any) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.inner.UpdatePreferences(ctx, id, bag)
	})
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		metrics.StoreErrorsTotal.WithLabelValues("update_preferences").Inc()
	}
	return err
}

// CountUsers implements PreferenceStore.
func (r *Resilient) CountUsers(ctx context.Context) (int64, error) {
	v, err := r.breaker.Execute(func() (any, error) {
		return r.inner.CountUsers(ctx)
	})
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("count_users").Inc()
		return 0, err
	}
	return v.(int64), nil
}
