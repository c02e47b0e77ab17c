// Package reconcile implements the periodic credit reset rules, the
// downgrade decision table, and the bulk sweeps that apply them.
package reconcile

import (
	"time"

	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// DefaultPeriodDays is the billing cycle length used for periodic credit
// resets.
const DefaultPeriodDays = 30

// IsResetDue reports whether a user's periodic credit reset is due. A nil
// lastResetDate means the user was never reset and is immediately due. The
// comparison uses whole elapsed days, so a reset at day 29.9 is not yet due.
func IsResetDue(lastResetDate *time.Time, periodDays int, now time.Time) bool {
	if lastResetDate == nil {
		return true
	}
	days := int(now.Sub(*lastResetDate).Hours()) / 24
	return days >= periodDays
}

// DowngradeDecision is the outcome of the downgrade decision table.
type DowngradeDecision struct {
	ShouldDowngrade bool
	Reason          string

	// FromCancellation is set when the downgrade was triggered by a
	// cancelled subscription; in that case the reconciler also flips the
	// subscription mirror fields to FREE/expired.
	FromCancellation bool
}

// DecideDowngrade evaluates the downgrade decision table, first match wins.
// Ambiguous or inconsistent subscription state always resolves toward the
// free tier: an account must never retain premium credits indefinitely
// because its billing fields are incomplete.
func DecideDowngrade(
	status types.SubscriptionStatus,
	cancelAtEnd bool,
	nextBillingDate *time.Time,
	currentTier types.TierName,
	now time.Time,
) DowngradeDecision {
	switch {
	case status == types.SubStatusCancelled && !cancelAtEnd:
		return DowngradeDecision{
			ShouldDowngrade:  true,
			Reason:           "immediate cancellation",
			FromCancellation: true,
		}

	case status == types.SubStatusCancelled && cancelAtEnd:
		if nextBillingDate == nil {
			return DowngradeDecision{
				ShouldDowngrade:  true,
				Reason:           "cancelled with no billing date on record",
				FromCancellation: true,
			}
		}
		if now.After(*nextBillingDate) {
			return DowngradeDecision{
				ShouldDowngrade:  true,
				Reason:           "cancelled, past billing date",
				FromCancellation: true,
			}
		}
		// Still inside the paid period.
		return DowngradeDecision{}

	case status == types.SubStatusExpired && currentTier != types.TierFree:
		return DowngradeDecision{
			ShouldDowngrade: true,
			Reason:          "subscription already expired",
		}

	case status == "" && currentTier != types.TierFree:
		return DowngradeDecision{
			ShouldDowngrade: true,
			Reason:          "no subscription status on record",
		}

	default:
		return DowngradeDecision{}
	}
}
