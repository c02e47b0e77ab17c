package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CyberBoyAyush/cappychat/internal/store"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// UserPreferenceStore is the subset of the preference store the event
// processor needs.
type UserPreferenceStore interface {
	GetUser(ctx context.Context, id string) (types.UserAccount, error)
	UpdatePreferences(ctx context.Context, id string, bag map[string]any) error
}

// Processor applies subscription lifecycle events to a user's preference
// bag. Each event produces at most one merged write; subscription fields and
// tier/credit fields always land in the same write so a concurrent reader
// never observes a half-applied transition.
// DefaultRetryThreshold is the number of consecutive failed payment
// attempts after which a subscription is treated as expired.
const DefaultRetryThreshold = 3

type Processor struct {
	store          UserPreferenceStore
	catalog        TierCatalog
	retryThreshold int
	logger         *slog.Logger

	// now is a hook for tests; production uses time.Now.
	now func() time.Time
}

// NewProcessor creates a webhook event processor. A retryThreshold of zero
// or less selects DefaultRetryThreshold.
func NewProcessor(s UserPreferenceStore, catalog TierCatalog, retryThreshold int, logger *slog.Logger) *Processor {
	if retryThreshold <= 0 {
		retryThreshold = DefaultRetryThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:          s,
		catalog:        catalog,
		retryThreshold: retryThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// Process applies one event. The returned error is the retryable class: the
// caller (webhook endpoint) should let the provider redeliver the event.
// Conditions redelivery cannot fix (no extractable user id, user not found,
// unrecognized event type) are logged and return nil so the delivery is
// acknowledged.
//
// Applying the same event twice is safe: every transition writes absolute
// values (full allotments, retryCount set or incremented from the freshly
// read bag), so a redelivered event converges instead of drifting.
func (p *Processor) Process(ctx context.Context, event *SubscriptionEvent) error {
	userID := event.ExtractUserID()
	if userID == "" {
		p.logger.WarnContext(ctx, "webhook event has no extractable user id",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	}

	account, err := p.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			p.logger.WarnContext(ctx, "webhook event for unknown user",
				"event_id", event.ID,
				"event_type", event.Type,
				"user_id", userID,
			)
			return nil
		}
		return fmt.Errorf("loading user %s for event %s: %w", userID, event.ID, err)
	}

	prefs := account.Preferences.Clone()
	applied := p.apply(ctx, event, &prefs)
	if !applied {
		return nil
	}

	if err := p.store.UpdatePreferences(ctx, userID, prefs.ToMap()); err != nil {
		return fmt.Errorf("writing preferences for %s after event %s: %w", userID, event.ID, err)
	}

	p.logger.InfoContext(ctx, "applied subscription event",
		"event_id", event.ID,
		"event_type", event.Type,
		"user_id", userID,
		"tier", prefs.EffectiveTier(),
		"subscription_status", prefs.SubscriptionStatus,
	)
	return nil
}

// apply mutates prefs per the event type. Returns false when the event type
// is not recognized (nothing to write).
func (p *Processor) apply(ctx context.Context, event *SubscriptionEvent, prefs *types.Preferences) bool {
	now := p.now().UTC()

	switch event.Type {
	case EventSubscriptionActive:
		p.grantPremium(event, prefs, now)

	case EventSubscriptionRenewed:
		p.grantPremium(event, prefs, now)
		prefs.RetryCount = types.Ptr(0)
		if event.Data.PaymentID != "" {
			prefs.LastPaymentID = event.Data.PaymentID
		}

	case EventSubscriptionCancelled:
		// Tier and credits stay: the user remains entitled until the end
		// of the paid period. The scheduled sweep downgrades once the
		// billing date passes.
		prefs.SubscriptionStatus = types.SubStatusCancelled
		prefs.CancelAtEnd = types.Ptr(true)

	case EventSubscriptionExpired:
		p.expire(prefs, now)

	case EventSubscriptionFailed:
		rc := prefs.RetryCountValue() + 1
		prefs.RetryCount = types.Ptr(rc)
		if rc >= p.retryThreshold {
			p.expire(prefs, now)
		} else {
			prefs.SubscriptionStatus = types.SubStatusFailed
		}

	case EventPaymentSucceeded:
		prefs.RetryCount = types.Ptr(0)
		if event.Data.PaymentID != "" {
			prefs.LastPaymentID = event.Data.PaymentID
		}
		if event.Data.CustomerID != "" {
			prefs.SubscriptionCustomerID = event.Data.CustomerID
		}

	case EventPaymentFailed:
		prefs.RetryCount = types.Ptr(prefs.RetryCountValue() + 1)

	default:
		p.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return false
	}
	return true
}

// grantPremium applies the premium entitlement shared by activation and
// renewal: full premium allotment, active status, and whatever provider
// identifiers the payload carries.
func (p *Processor) grantPremium(event *SubscriptionEvent, prefs *types.Preferences, now time.Time) {
	a := p.catalog.Allotment(types.TierPremium)

	prefs.Tier = types.TierPremium
	prefs.FreeCredits = types.Ptr(a.FreeCredits)
	prefs.PremiumCredits = types.Ptr(a.PremiumCredits)
	prefs.SuperPremiumCredits = types.Ptr(a.SuperPremiumCredits)
	prefs.LastResetDate = types.Ptr(now)

	prefs.SubscriptionTier = types.SubTierPremium
	prefs.SubscriptionStatus = types.SubStatusActive
	prefs.CancelAtEnd = types.Ptr(false)

	if event.Data.CustomerID != "" {
		prefs.SubscriptionCustomerID = event.Data.CustomerID
	}
	if event.Data.SubscriptionID != "" {
		prefs.SubscriptionID = event.Data.SubscriptionID
	}
	if event.Data.Currency != "" {
		prefs.Currency = event.Data.Currency
	}
	if event.Data.Amount != nil {
		prefs.Amount = types.Ptr(*event.Data.Amount)
	}
	if next := event.NextBilling(); !next.IsZero() {
		prefs.NextBillingDate = types.Ptr(next)
	}
}

// expire downgrades the account to the free tier in full: free allotment,
// FREE subscription tier, expired status.
func (p *Processor) expire(prefs *types.Preferences, now time.Time) {
	a := p.catalog.Allotment(types.TierFree)

	prefs.Tier = types.TierFree
	prefs.FreeCredits = types.Ptr(a.FreeCredits)
	prefs.PremiumCredits = types.Ptr(a.PremiumCredits)
	prefs.SuperPremiumCredits = types.Ptr(a.SuperPremiumCredits)
	prefs.LastResetDate = types.Ptr(now)

	prefs.SubscriptionTier = types.SubTierFree
	prefs.SubscriptionStatus = types.SubStatusExpired
}
