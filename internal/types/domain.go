// Package types defines the domain model shared across the reconciliation
// service: tier names, subscription state, the user preferences bag, and the
// standard application error type.
package types

import "time"

// TierName identifies a user's access tier within the chat product.
type TierName string

const (
	TierFree    TierName = "free"
	TierPremium TierName = "premium"
	TierAdmin   TierName = "admin"
)

// SubscriptionTier mirrors the payment provider's plan naming. It is an
// independent string space from TierName (uppercase by provider convention)
// and must be kept consistent with it by every write this service performs.
type SubscriptionTier string

const (
	SubTierFree    SubscriptionTier = "FREE"
	SubTierPremium SubscriptionTier = "PREMIUM"
)

// SubscriptionStatus is the provider-reported lifecycle state of a user's
// subscription. The field is free text in stored data; only these four values
// are meaningfully interpreted.
type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusCancelled SubscriptionStatus = "cancelled"
	SubStatusExpired   SubscriptionStatus = "expired"
	SubStatusFailed    SubscriptionStatus = "failed"
)

// UnlimitedCredits is the sentinel credit value meaning "no limit".
// Only the admin tier uses it.
const UnlimitedCredits = -1

// CreditAllotment holds the three independent credit counters granted to a
// tier on each reset.
type CreditAllotment struct {
	FreeCredits         int `json:"freeCredits"`
	PremiumCredits      int `json:"premiumCredits"`
	SuperPremiumCredits int `json:"superPremiumCredits"`
}

// UserAccount is the externally-owned user record. This service only reads
// and writes the Preferences bag; the remaining fields are informational.
type UserAccount struct {
	ID            string
	Email         string
	DisplayName   string
	EmailVerified bool
	RegisteredAt  time.Time
	Preferences   Preferences
}
