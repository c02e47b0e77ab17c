package billing

import (
	"time"
)

// Subscription lifecycle event types delivered by the payment provider.
const (
	EventSubscriptionActive    = "subscription.active"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionExpired   = "subscription.expired"
	EventSubscriptionFailed    = "subscription.failed"
	EventPaymentSucceeded      = "payment.succeeded"
	EventPaymentFailed         = "payment.failed"
)

// SubscriptionEvent is a minimal representation of a provider webhook event
// tailored to the fields this system acts on. We avoid importing the
// provider SDK's full event type to keep the processor decoupled from the
// SDK and to make testing straightforward.
type SubscriptionEvent struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData carries the subscription payload of an event. Providers are not
// consistent about where the user reference lives, so several locations are
// modelled and ExtractUserID resolves them in priority order.
type EventData struct {
	UserID          string            `json:"userId"`
	Metadata        map[string]string `json:"metadata"`
	Customer        *EventCustomer    `json:"customer"`
	SubscriptionID  string            `json:"subscriptionId"`
	CustomerID      string            `json:"customerId"`
	PaymentID       string            `json:"paymentId"`
	Currency        string            `json:"currency"`
	Amount          *float64          `json:"amount"`
	NextBillingDate string            `json:"nextBillingDate"`
}

// EventCustomer is the nested customer object some events carry.
type EventCustomer struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// EventTimestamp returns the event's created timestamp as a time.Time.
// A zero Created field yields the zero time; callers fall back to their own
// clock in that case.
func (e *SubscriptionEvent) EventTimestamp() time.Time {
	if e.Created == 0 {
		return time.Time{}
	}
	return time.Unix(e.Created, 0).UTC()
}

// ExtractUserID resolves the user reference from the event payload.
// Providers place it in different spots depending on event type and API
// version, so the lookup walks a prioritized list of locations and key
// spellings:
//
//  1. data.metadata.userId
//  2. data.metadata.user_id
//  3. data.customer.metadata.userId
//  4. data.customer.metadata.user_id
//  5. data.userId
//
// Returns "" when no location yields a value; the caller treats that as a
// non-retryable missing-identity event.
func (e *SubscriptionEvent) ExtractUserID() string {
	if id := e.Data.Metadata["userId"]; id != "" {
		return id
	}
	if id := e.Data.Metadata["user_id"]; id != "" {
		return id
	}
	if c := e.Data.Customer; c != nil {
		if id := c.Metadata["userId"]; id != "" {
			return id
		}
		if id := c.Metadata["user_id"]; id != "" {
			return id
		}
	}
	return e.Data.UserID
}

// NextBilling parses the payload's next billing date. Returns the zero time
// when the field is absent or unparseable; a malformed date never fails the
// event.
func (e *SubscriptionEvent) NextBilling() time.Time {
	if e.Data.NextBillingDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, e.Data.NextBillingDate)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
