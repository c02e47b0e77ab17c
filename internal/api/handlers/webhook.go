// Package handlers contains the HTTP handler implementations for the
// CappyChat reconciliation API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/CyberBoyAyush/cappychat/internal/billing"
	"github.com/CyberBoyAyush/cappychat/internal/core"
	"github.com/CyberBoyAyush/cappychat/internal/metrics"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

// maxWebhookBodySize limits subscription webhook payloads (64 KB). Provider
// payloads are small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// signatureHeader carries the provider's payload signature.
const signatureHeader = "Stripe-Signature"

// EventProcessor applies one subscription event. An error means the event
// was not fully applied and the provider should redeliver it.
type EventProcessor interface {
	Process(ctx context.Context, event *billing.SubscriptionEvent) error
}

// WebhookVerifier abstracts provider webhook signature checking.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the signature header and
	// signing secret. Returns nil on success.
	Verify(payload []byte, header string, secret string) error
}

// StripeVerifier implements WebhookVerifier with the provider SDK's
// HMAC-SHA256 check, including timestamp tolerance.
type StripeVerifier struct{}

// Verify implements WebhookVerifier.
func (StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return webhook.ValidatePayload(payload, header, secret)
}

// WebhookHandler receives subscription lifecycle events from the payment
// provider. It is not behind auth middleware; security is the payload
// signature.
type WebhookHandler struct {
	verifier  WebhookVerifier
	processor EventProcessor
	secret    types.SecretString
	logger    *slog.Logger
}

// NewWebhookHandler creates the subscription webhook handler.
func NewWebhookHandler(verifier WebhookVerifier, processor EventProcessor, secret types.SecretString, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
		secret:    secret,
		logger:    logger,
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/subscription", h.Handle)
}

// Handle processes one webhook delivery. Response codes drive the
// provider's redelivery behavior:
//   - 2xx: event acknowledged. Also used for events redelivery cannot fix
//     (missing user identity); those are logged and acknowledged.
//   - 401: signature missing or invalid.
//   - 5xx: the preference write failed before committing; the provider
//     should redeliver.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get(signatureHeader)
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing webhook signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSignatureMissing,
			"missing webhook signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret.Unmask()); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSignatureInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event billing.SubscriptionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing subscription webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.processor.Process(r.Context(), &event); err != nil {
		// The preference write did not commit; a non-2xx response makes
		// the provider redeliver the event.
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "error").Inc()
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalStore,
			"event processing failed",
			err,
		))
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "applied").Inc()
	core.JSON(w, r, http.StatusOK, map[string]any{"received": true})
}
