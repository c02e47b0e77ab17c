package reconcile

import (
	"time"

	"github.com/CyberBoyAyush/cappychat/internal/billing"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// Outcome is the result of reconciling a single user. When Changed is false
// the Preferences field holds the untouched bag and nothing should be
// written.
type Outcome struct {
	Changed     bool
	Preferences types.Preferences
	Downgraded  bool
	Reason      string
}

// ReconcileUser applies the reset and downgrade rules to one account and
// returns the merged preference state to persist. It is pure: no I/O, no
// clock access (now is a parameter), and the input account is never mutated.
// The caller performs the actual write.
//
// Malformed preference fields never fail reconciliation; decoding already
// degraded them to their absent forms, which the rules treat as "reset due"
// and "free tier" respectively.
func ReconcileUser(account types.UserAccount, catalog billing.TierCatalog, periodDays int, now time.Time) Outcome {
	now = now.UTC()
	prefs := account.Preferences.Clone()

	if !IsResetDue(prefs.LastResetDate, periodDays, now) {
		return Outcome{Preferences: prefs}
	}

	tier := prefs.EffectiveTier()
	decision := DecideDowngrade(
		prefs.SubscriptionStatus,
		prefs.CancelAtEndValue(),
		prefs.NextBillingDate,
		tier,
		now,
	)
	if decision.ShouldDowngrade {
		tier = types.TierFree
		if decision.FromCancellation {
			prefs.SubscriptionTier = types.SubTierFree
			prefs.SubscriptionStatus = types.SubStatusExpired
		}
	}

	a := catalog.Allotment(tier)
	prefs.Tier = tier
	prefs.FreeCredits = types.Ptr(a.FreeCredits)
	prefs.PremiumCredits = types.Ptr(a.PremiumCredits)
	prefs.SuperPremiumCredits = types.Ptr(a.SuperPremiumCredits)

	// One timestamp per reconciliation: all three counters share it.
	prefs.LastResetDate = types.Ptr(now)

	return Outcome{
		Changed:     true,
		Preferences: prefs,
		Downgraded:  decision.ShouldDowngrade,
		Reason:      decision.Reason,
	}
}
