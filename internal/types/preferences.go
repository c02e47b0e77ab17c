package types

import (
	"time"
)

// Preference bag key names. These are the exact keys used in stored user
// documents; changing them breaks interoperability with existing data.
const (
	KeyTier                = "tier"
	KeyFreeCredits         = "freeCredits"
	KeyPremiumCredits      = "premiumCredits"
	KeySuperPremiumCredits = "superPremiumCredits"
	KeyLastResetDate       = "lastResetDate"

	KeySubscriptionTier        = "subscriptionTier"
	KeySubscriptionStatus      = "subscriptionStatus"
	KeySubscriptionCustomerID  = "subscriptionCustomerId"
	KeySubscriptionID          = "subscriptionId"
	KeySubscriptionNextBilling = "subscriptionNextBillingDate"
	KeySubscriptionCancelAtEnd = "subscriptionCancelAtEnd"
	KeySubscriptionRetryCount  = "subscriptionRetryCount"
	KeySubscriptionLastPayment = "subscriptionLastPayment"
	KeySubscriptionCurrency    = "subscriptionCurrency"
	KeySubscriptionAmount      = "subscriptionAmount"

	// Legacy spelling of KeySubscriptionNextBilling still present in older
	// documents. Read as a fallback, never written.
	keySubscriptionPeriodEnd = "subscriptionPeriodEnd"
)

// Preferences is the typed view of a user's preference bag.
//
// Pointer fields distinguish "absent" from a zero value, which matters for
// merge writes: a field that was never present in the stored document must
// not be introduced by an unrelated mutation. Keys this service does not
// understand are captured in Extra on decode and re-emitted unchanged on
// encode, so merges are structurally incapable of dropping them.
type Preferences struct {
	Tier                TierName
	FreeCredits         *int
	PremiumCredits      *int
	SuperPremiumCredits *int
	LastResetDate       *time.Time

	SubscriptionTier       SubscriptionTier
	SubscriptionStatus     SubscriptionStatus
	SubscriptionCustomerID string
	SubscriptionID         string
	NextBillingDate        *time.Time
	CancelAtEnd            *bool
	RetryCount             *int
	LastPaymentID          string
	Currency               string
	Amount                 *float64

	// Extra holds every key not interpreted above, passed through unchanged.
	Extra map[string]any
}

// Ptr returns a pointer to v. Convenience for building literal Preferences.
func Ptr[T any](v T) *T {
	return &v
}

// EffectiveTier returns the user's tier, treating absence as free.
func (p Preferences) EffectiveTier() TierName {
	if p.Tier == "" {
		return TierFree
	}
	return p.Tier
}

// RetryCountValue returns the consecutive-failed-payment counter, treating
// absence as zero.
func (p Preferences) RetryCountValue() int {
	if p.RetryCount == nil {
		return 0
	}
	return *p.RetryCount
}

// CancelAtEndValue returns the cancel-at-period-end flag, treating absence
// as false.
func (p Preferences) CancelAtEndValue() bool {
	if p.CancelAtEnd == nil {
		return false
	}
	return *p.CancelAtEnd
}

// Clone returns a deep copy of the preferences, including the Extra map.
// Mutating the copy never affects the original bag.
func (p Preferences) Clone() Preferences {
	out := p
	out.FreeCredits = clonePtr(p.FreeCredits)
	out.PremiumCredits = clonePtr(p.PremiumCredits)
	out.SuperPremiumCredits = clonePtr(p.SuperPremiumCredits)
	out.LastResetDate = clonePtr(p.LastResetDate)
	out.NextBillingDate = clonePtr(p.NextBillingDate)
	out.CancelAtEnd = clonePtr(p.CancelAtEnd)
	out.RetryCount = clonePtr(p.RetryCount)
	out.Amount = clonePtr(p.Amount)
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// PreferencesFromMap decodes a raw preference document into a typed bag.
//
// Decoding never fails: a missing or unparseable field degrades to its
// absent/zero form (a corrupt lastResetDate string is treated as "never
// reset"). Unrecognized keys land in Extra.
func PreferencesFromMap(m map[string]any) Preferences {
	var p Preferences
	if len(m) == 0 {
		return p
	}

	for k, v := range m {
		switch k {
		case KeyTier:
			p.Tier = TierName(asString(v))
		case KeyFreeCredits:
			p.FreeCredits = asInt(v)
		case KeyPremiumCredits:
			p.PremiumCredits = asInt(v)
		case KeySuperPremiumCredits:
			p.SuperPremiumCredits = asInt(v)
		case KeyLastResetDate:
			p.LastResetDate = asTime(v)
		case KeySubscriptionTier:
			p.SubscriptionTier = SubscriptionTier(asString(v))
		case KeySubscriptionStatus:
			p.SubscriptionStatus = SubscriptionStatus(asString(v))
		case KeySubscriptionCustomerID:
			p.SubscriptionCustomerID = asString(v)
		case KeySubscriptionID:
			p.SubscriptionID = asString(v)
		case KeySubscriptionNextBilling:
			p.NextBillingDate = asTime(v)
		case KeySubscriptionCancelAtEnd:
			p.CancelAtEnd = asBool(v)
		case KeySubscriptionRetryCount:
			p.RetryCount = asInt(v)
		case KeySubscriptionLastPayment:
			p.LastPaymentID = asString(v)
		case KeySubscriptionCurrency:
			p.Currency = asString(v)
		case KeySubscriptionAmount:
			p.Amount = asFloat(v)
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
		}
	}

	// Older documents used subscriptionPeriodEnd for the billing boundary.
	if p.NextBillingDate == nil {
		if raw, ok := p.Extra[keySubscriptionPeriodEnd]; ok {
			p.NextBillingDate = asTime(raw)
		}
	}

	return p
}

// ToMap encodes the bag back into its stored document form. Only fields that
// are present are emitted; Extra keys are passed through unchanged (known
// fields win on collision). Timestamps are encoded as UTC ISO-8601 strings.
func (p Preferences) ToMap() map[string]any {
	out := make(map[string]any, len(p.Extra)+16)
	for k, v := range p.Extra {
		out[k] = v
	}

	if p.Tier != "" {
		out[KeyTier] = string(p.Tier)
	}
	putInt(out, KeyFreeCredits, p.FreeCredits)
	putInt(out, KeyPremiumCredits, p.PremiumCredits)
	putInt(out, KeySuperPremiumCredits, p.SuperPremiumCredits)
	putTime(out, KeyLastResetDate, p.LastResetDate)

	if p.SubscriptionTier != "" {
		out[KeySubscriptionTier] = string(p.SubscriptionTier)
	}
	if p.SubscriptionStatus != "" {
		out[KeySubscriptionStatus] = string(p.SubscriptionStatus)
	}
	if p.SubscriptionCustomerID != "" {
		out[KeySubscriptionCustomerID] = p.SubscriptionCustomerID
	}
	if p.SubscriptionID != "" {
		out[KeySubscriptionID] = p.SubscriptionID
	}
	putTime(out, KeySubscriptionNextBilling, p.NextBillingDate)
	if p.CancelAtEnd != nil {
		out[KeySubscriptionCancelAtEnd] = *p.CancelAtEnd
	}
	putInt(out, KeySubscriptionRetryCount, p.RetryCount)
	if p.LastPaymentID != "" {
		out[KeySubscriptionLastPayment] = p.LastPaymentID
	}
	if p.Currency != "" {
		out[KeySubscriptionCurrency] = p.Currency
	}
	if p.Amount != nil {
		out[KeySubscriptionAmount] = *p.Amount
	}

	return out
}

func putInt(m map[string]any, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}

func putTime(m map[string]any, key string, v *time.Time) {
	if v != nil {
		m[key] = v.UTC().Format(time.RFC3339)
	}
}

// ---------------------------------------------------------------------------
// Lenient coercion helpers
// ---------------------------------------------------------------------------
//
// Stored documents come from multiple writers: the document store SDK returns
// int64 and time.Time, JSON decoding yields float64 and strings. All numeric
// and timestamp fields accept every shape they have been observed in; any
// other shape decodes as absent.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) *int {
	switch n := v.(type) {
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	default:
		return nil
	}
}

func asFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func asBool(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func asTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		u := t.UTC()
		return &u
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				u := parsed.UTC()
				return &u
			}
		}
		return nil
	default:
		return nil
	}
}
