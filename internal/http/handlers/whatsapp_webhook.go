package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hostwise/whatsapp-concierge/internal/whatsapp"
	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

const subscribeMode = "subscribe"

var webhookTracer = otel.Tracer("concierge.internal.http.webhook")

// PayloadProcessor consumes a verified, decoded webhook delivery.
type PayloadProcessor interface {
	ProcessPayload(ctx context.Context, payload whatsapp.WebhookPayload)
}

// WhatsAppWebhookHandler terminates the Meta webhook: handshake on GET,
// signature-checked delivery on POST.
type WhatsAppWebhookHandler struct {
	verifyToken string
	appSecret   string
	processor   PayloadProcessor
	logger      *logging.Logger
}

func NewWhatsAppWebhookHandler(verifyToken, appSecret string, processor PayloadProcessor, logger *logging.Logger) *WhatsAppWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		verifyToken: strings.TrimSpace(verifyToken),
		appSecret:   strings.TrimSpace(appSecret),
		processor:   processor,
		logger:      logger,
	}
}

// HandleVerify answers the subscription handshake. The challenge is echoed
// verbatim only when both the mode literal and the verify token match.
func (h *WhatsAppWebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == subscribeMode && h.verifyToken != "" && token == h.verifyToken {
		h.logger.Info("webhook handshake verified")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge))
		return
	}

	h.logger.Warn("webhook handshake rejected", "mode", mode)
	writeJSONError(w, http.StatusForbidden, "Verification failed")
}

// HandleDelivery verifies the signature over the exact raw bytes, then
// decodes and dispatches the payload. Per-message failures never surface
// here; the provider gets a success acknowledgement unless authentication
// or decoding fails.
func (h *WhatsAppWebhookHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "webhook.delivery")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !whatsapp.VerifySignature(h.appSecret, body, signature) {
		h.logger.Warn("invalid webhook signature", "has_signature", signature != "")
		writeJSONError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	payload, err := whatsapp.ParsePayload(body)
	if err != nil {
		h.logger.Error("webhook payload decode failed", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	span.SetAttributes(attribute.Int("concierge.entry_count", len(payload.Entry)))

	h.processor.ProcessPayload(ctx, payload)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
