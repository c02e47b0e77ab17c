// Package billing provides the tier catalog and the subscription webhook
// event processor.
package billing

import "github.com/CyberBoyAyush/cappychat/internal/types"

// TierCatalog defines the authoritative credit allotments for each tier.
// This is the single source of truth for what a reset grants.
type TierCatalog interface {
	// Allotment returns the per-cycle credit grant for the given tier.
	// For unknown tiers, returns the Free allotment to fail safely.
	Allotment(tier types.TierName) types.CreditAllotment
}

// staticTierCatalog is a compile-time catalog backed by an in-memory map.
// It implements TierCatalog and is the standard implementation for
// production use.
type staticTierCatalog struct {
	allotments map[types.TierName]types.CreditAllotment
}

// tierDefaults defines the hardcoded credit allotments:
//
//	| Tier    | Free | Premium | Super-Premium |
//	|---------|------|---------|---------------|
//	| free    | 80   | 10      | 2             |
//	| premium | 800  | 400     | 20            |
//	| admin   | unlimited across the board     |
//
// Admin uses types.UnlimitedCredits (-1); enforcement code must treat a
// negative balance as no limit.
var tierDefaults = map[types.TierName]types.CreditAllotment{
	types.TierFree: {
		FreeCredits:         80,
		PremiumCredits:      10,
		SuperPremiumCredits: 2,
	},
	types.TierPremium: {
		FreeCredits:         800,
		PremiumCredits:      400,
		SuperPremiumCredits: 20,
	},
	types.TierAdmin: {
		FreeCredits:         types.UnlimitedCredits,
		PremiumCredits:      types.UnlimitedCredits,
		SuperPremiumCredits: types.UnlimitedCredits,
	},
}

// freeAllotment is cached to avoid map lookups on the fallback path.
var freeAllotment = tierDefaults[types.TierFree]

// NewStaticTierCatalog returns a TierCatalog backed by the hardcoded
// allotments. This is the standard production implementation; no database or
// external service is required.
func NewStaticTierCatalog() TierCatalog {
	// Copy the defaults into a new map so callers cannot mutate the
	// package-level variable.
	m := make(map[types.TierName]types.CreditAllotment, len(tierDefaults))
	for k, v := range tierDefaults {
		m[k] = v
	}
	return &staticTierCatalog{allotments: m}
}

// Allotment returns the per-cycle credit grant for the given tier.
// If the tier is unknown, it returns the Free allotment as a safe default.
func (c *staticTierCatalog) Allotment(tier types.TierName) types.CreditAllotment {
	if a, ok := c.allotments[tier]; ok {
		return a
	}
	return freeAllotment
}
