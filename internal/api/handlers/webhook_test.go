package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberBoyAyush/cappychat/internal/billing"
	"github.com/CyberBoyAyush/cappychat/internal/core"
	"github.com/CyberBoyAyush/cappychat/internal/types"
)

type stubVerifier struct {
	err     error
	payload []byte
	header  string
	secret  string
}

func (v *stubVerifier) Verify(payload []byte, header, secret string) error {
	v.payload = payload
	v.header = header
	v.secret = secret
	return v.err
}

type stubProcessor struct {
	events []*billing.SubscriptionEvent
	err    error
}

func (p *stubProcessor) Process(_ context.Context, event *billing.SubscriptionEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func webhookRequest(t *testing.T, body []byte, signature string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/subscription", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req
}

func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp.Error.Code
}

func TestWebhookHandler_AppliesEvent(t *testing.T) {
	verifier := &stubVerifier{}
	processor := &stubProcessor{}
	h := NewWebhookHandler(verifier, processor, types.SecretString("whsec_test"), nil)

	payload := []byte(`{"id":"evt_1","type":"subscription.active","data":{"metadata":{"userId":"user-1"}}}`)
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(t, payload, "t=1,v1=abc"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())

	assert.Equal(t, payload, verifier.payload)
	assert.Equal(t, "t=1,v1=abc", verifier.header)
	assert.Equal(t, "whsec_test", verifier.secret)

	require.Len(t, processor.events, 1)
	assert.Equal(t, "evt_1", processor.events[0].ID)
	assert.Equal(t, billing.EventSubscriptionActive, processor.events[0].Type)
	assert.Equal(t, "user-1", processor.events[0].ExtractUserID())
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	processor := &stubProcessor{}
	h := NewWebhookHandler(&stubVerifier{}, processor, types.SecretString("whsec_test"), nil)

	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(t, []byte(`{}`), ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthSignatureMissing), decodeErrorCode(t, rec.Body))
	assert.Empty(t, processor.events, "unsigned payloads must never reach the processor")
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("signature mismatch")}
	processor := &stubProcessor{}
	h := NewWebhookHandler(verifier, processor, types.SecretString("whsec_test"), nil)

	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(t, []byte(`{}`), "t=1,v1=bad"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthSignatureInvalid), decodeErrorCode(t, rec.Body))
	assert.Empty(t, processor.events)
}

func TestWebhookHandler_MalformedBody(t *testing.T) {
	h := NewWebhookHandler(&stubVerifier{}, &stubProcessor{}, types.SecretString("whsec_test"), nil)

	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(t, []byte(`{not json`), "t=1,v1=abc"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidJSON), decodeErrorCode(t, rec.Body))
}

func TestWebhookHandler_ProcessingFailureIsRetryable(t *testing.T) {
	processor := &stubProcessor{err: errors.New("firestore write deadline exceeded")}
	h := NewWebhookHandler(&stubVerifier{}, processor, types.SecretString("whsec_test"), nil)

	payload := []byte(`{"id":"evt_2","type":"subscription.renewed","data":{"userId":"user-2"}}`)
	rec := httptest.NewRecorder()
	h.Handle(rec, webhookRequest(t, payload, "t=1,v1=abc"))

	// A failed write must surface as 5xx so the provider redelivers.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(types.ErrCodeInternalStore), decodeErrorCode(t, rec.Body))
}

func TestWebhookHandler_Routing(t *testing.T) {
	h := NewWebhookHandler(&stubVerifier{}, &stubProcessor{}, types.SecretString("whsec_test"), nil)

	router := chi.NewRouter()
	h.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/subscription",
		bytes.NewReader([]byte(`{"id":"evt_3","type":"payment.succeeded","data":{"userId":"user-3"}}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
