package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hostwise/whatsapp-concierge/internal/whatsapp"
)

type capturedProcessor struct {
	payloads []whatsapp.WebhookPayload
}

func (c *capturedProcessor) ProcessPayload(_ context.Context, payload whatsapp.WebhookPayload) {
	c.payloads = append(c.payloads, payload)
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifyHandshake(t *testing.T) {
	h := NewWhatsAppWebhookHandler("vtoken", "secret", &capturedProcessor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=vtoken&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.HandleVerify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Fatalf("challenge must be echoed verbatim, got %q", rec.Body.String())
	}
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	h := NewWhatsAppWebhookHandler("vtoken", "secret", &capturedProcessor{}, nil)

	for _, query := range []string{
		"hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1",
		"hub.mode=unsubscribe&hub.verify_token=vtoken&hub.challenge=1",
		"hub.challenge=1",
	} {
		req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?"+query, nil)
		rec := httptest.NewRecorder()
		h.HandleVerify(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("query %q: expected 403, got %d", query, rec.Code)
		}
	}
}

func TestWebhookDeliveryVerifiedAndDispatched(t *testing.T) {
	processor := &capturedProcessor{}
	h := NewWhatsAppWebhookHandler("vtoken", "secret", processor, nil)

	body := `{"object":"whatsapp_business_account","entry":[{"id":"e1","changes":[]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("secret", []byte(body)))
	rec := httptest.NewRecorder()
	h.HandleDelivery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(processor.payloads) != 1 || processor.payloads[0].Object != whatsapp.BusinessAccountObject {
		t.Fatalf("payload not dispatched: %+v", processor.payloads)
	}
}

func TestWebhookDeliveryRejectsBadSignature(t *testing.T) {
	processor := &capturedProcessor{}
	h := NewWhatsAppWebhookHandler("vtoken", "secret", processor, nil)

	body := `{"object":"whatsapp_business_account","entry":[]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("othersecret", []byte(body)))
	rec := httptest.NewRecorder()
	h.HandleDelivery(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(processor.payloads) != 0 {
		t.Fatal("unverified payload must not be processed")
	}
}

func TestWebhookDeliveryRejectsMissingSignature(t *testing.T) {
	h := NewWhatsAppWebhookHandler("vtoken", "secret", &capturedProcessor{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.HandleDelivery(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookDeliveryRejectsMalformedJSON(t *testing.T) {
	h := NewWhatsAppWebhookHandler("vtoken", "secret", &capturedProcessor{}, nil)

	body := `{not json`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("secret", []byte(body)))
	rec := httptest.NewRecorder()
	h.HandleDelivery(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
