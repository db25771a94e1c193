package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hostwise/whatsapp-concierge/internal/activity"
	"github.com/hostwise/whatsapp-concierge/internal/ai"
	"github.com/hostwise/whatsapp-concierge/internal/store"
	"github.com/hostwise/whatsapp-concierge/internal/whatsapp"
	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

// ConversationStore is the persistence surface for operator conversation
// tooling.
type ConversationStore interface {
	ListConversations(ctx context.Context, accountID uuid.UUID, limit int) ([]store.ConversationRecord, error)
	ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.MessageRecord, error)
	GetConversationWithAccount(ctx context.Context, conversationID uuid.UUID) (*store.ConversationWithAccount, error)
	FindActivePropertyLink(ctx context.Context, accountID uuid.UUID, customerPhone string) (*store.PropertyLink, *store.PropertyInfo, error)
	InsertMessage(ctx context.Context, q store.Querier, msg store.NewMessage) (uuid.UUID, bool, error)
	UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, direction string, at time.Time, needsIntervention bool) error
	ClearIntervention(ctx context.Context, conversationID uuid.UUID) error
}

// DraftPreviewer produces a gated draft without sending it.
type DraftPreviewer interface {
	Draft(ctx context.Context, conversationID uuid.UUID, incoming string, property *ai.PropertyContext) ai.DraftResult
}

// OutboundSender posts operator messages to the Graph API.
type OutboundSender interface {
	SendText(ctx context.Context, req whatsapp.SendRequest) (string, error)
}

// ActivityFeed reads recent pipeline events.
type ActivityFeed interface {
	Recent(ctx context.Context, n int) ([]activity.Event, error)
}

// AdminConversationsHandler serves operator endpoints: conversation listing,
// message history, manual sends, AI previews, and the activity feed.
type AdminConversationsHandler struct {
	store     ConversationStore
	drafter   DraftPreviewer
	messenger OutboundSender
	feed      ActivityFeed
	logger    *logging.Logger
}

func NewAdminConversationsHandler(convStore ConversationStore, drafter DraftPreviewer, messenger OutboundSender, feed ActivityFeed, logger *logging.Logger) *AdminConversationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminConversationsHandler{
		store:     convStore,
		drafter:   drafter,
		messenger: messenger,
		feed:      feed,
		logger:    logger,
	}
}

type conversationListItem struct {
	ID                 string     `json:"id"`
	CustomerPhone      string     `json:"customer_phone"`
	BusinessPhone      string     `json:"business_phone"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastDirection      string     `json:"last_message_direction,omitempty"`
	NeedsIntervention  bool       `json:"needs_intervention"`
	InterventionReason string     `json:"intervention_reason,omitempty"`
	Status             string     `json:"status"`
}

// ListConversations returns the most recently active conversations for an
// account.
func (h *AdminConversationsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(r.URL.Query().Get("account_id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "account_id query parameter must be a UUID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.store.ListConversations(r.Context(), accountID, limit)
	if err != nil {
		h.logger.Error("conversation listing failed", "account_id", accountID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "conversation listing failed")
		return
	}

	items := make([]conversationListItem, 0, len(records))
	for _, rec := range records {
		items = append(items, conversationListItem{
			ID:                 rec.ID.String(),
			CustomerPhone:      rec.CustomerPhone,
			BusinessPhone:      rec.BusinessPhone,
			LastMessageAt:      rec.LastMessageAt,
			LastDirection:      rec.LastMessageDirection,
			NeedsIntervention:  rec.NeedsIntervention,
			InterventionReason: rec.InterventionReason,
			Status:             rec.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

type messageListItem struct {
	ID             string    `json:"id"`
	Direction      string    `json:"direction"`
	MessageType    string    `json:"message_type"`
	Text           string    `json:"text,omitempty"`
	Status         string    `json:"status,omitempty"`
	IsAutoResponse bool      `json:"is_auto_response"`
	NeedsReview    bool      `json:"needs_manual_review"`
	AIConfidence   *float64  `json:"ai_confidence,omitempty"`
	AIReasoning    string    `json:"ai_reasoning,omitempty"`
	AIError        string    `json:"ai_error,omitempty"`
	ContactName    string    `json:"contact_name,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ListMessages returns a conversation's history in chronological order.
func (h *AdminConversationsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	records, err := h.store.ListRecentMessages(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("message listing failed", "conversation_id", conversationID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "message listing failed")
		return
	}

	items := make([]messageListItem, 0, len(records))
	for _, rec := range records {
		items = append(items, messageListItem{
			ID:             rec.ID.String(),
			Direction:      rec.Direction,
			MessageType:    rec.MessageType,
			Text:           rec.Text,
			Status:         rec.Status,
			IsAutoResponse: rec.IsAutoResponse,
			NeedsReview:    rec.NeedsManualReview,
			AIConfidence:   rec.AIConfidence,
			AIReasoning:    rec.AIReasoning,
			AIError:        rec.AIError,
			ContactName:    rec.ContactName,
			Timestamp:      rec.ProviderTimestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items})
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage posts an operator-written text into a conversation. A send
// clears the intervention flag since a human has taken over.
func (h *AdminConversationsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	loaded, err := h.store.GetConversationWithAccount(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("conversation load failed", "conversation_id", conversationID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "conversation load failed")
		return
	}
	if loaded == nil {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	providerID, err := h.messenger.SendText(r.Context(), whatsapp.SendRequest{
		PhoneNumberID: loaded.Account.PhoneNumberID,
		AccessToken:   loaded.Account.AccessToken,
		To:            loaded.Conversation.CustomerPhone,
		Body:          req.Message,
	})
	if err != nil {
		var apiErr *whatsapp.APIError
		if errors.As(err, &apiErr) && apiErr.TokenExpired() {
			h.logger.Error("access token expired", "account_id", loaded.Account.ID)
			writeJSONError(w, http.StatusUnauthorized, "WhatsApp access token expired")
			return
		}
		h.logger.Error("manual send failed", "conversation_id", conversationID, "error", err)
		writeJSONError(w, http.StatusBadGateway, "message send failed")
		return
	}

	now := time.Now().UTC()
	messageID, _, err := h.store.InsertMessage(r.Context(), nil, store.NewMessage{
		ConversationID:    conversationID,
		WhatsAppMessageID: providerID,
		Direction:         whatsapp.DirectionOutbound,
		FromPhone:         loaded.Conversation.BusinessPhone,
		ToPhone:           loaded.Conversation.CustomerPhone,
		MessageType:       whatsapp.MessageTypeText,
		Content:           []byte(fmt.Sprintf(`{"text":{"body":%q}}`, req.Message)),
		Text:              req.Message,
		Status:            store.DeliveryStatusSent,
		ProviderTimestamp: now,
	})
	if err != nil {
		h.logger.Error("outbound persistence failed", "provider_message_id", providerID, "error", err)
	}
	if err := h.store.UpdateLastMessage(r.Context(), conversationID, whatsapp.DirectionOutbound, now, false); err != nil {
		h.logger.Error("conversation metadata update failed", "conversation_id", conversationID, "error", err)
	}
	if err := h.store.ClearIntervention(r.Context(), conversationID); err != nil {
		h.logger.Error("clearing intervention failed", "conversation_id", conversationID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":                  messageID.String(),
		"provider_message_id": providerID,
	})
}

type previewRequest struct {
	Message string `json:"message"`
}

// PreviewAIResponse drafts and gates a reply for a conversation without
// sending anything.
func (h *AdminConversationsHandler) PreviewAIResponse(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	loaded, err := h.store.GetConversationWithAccount(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("conversation load failed", "conversation_id", conversationID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "conversation load failed")
		return
	}
	if loaded == nil {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var propertyCtx *ai.PropertyContext
	if _, property, err := h.store.FindActivePropertyLink(r.Context(), loaded.Account.ID, loaded.Conversation.CustomerPhone); err == nil && property != nil {
		propertyCtx = &ai.PropertyContext{Name: property.Name, Address: property.Address, Details: property.Details}
	}

	draft := h.drafter.Draft(r.Context(), conversationID, req.Message, propertyCtx)
	if draft.Err != nil {
		h.logger.Error("draft preview failed", "conversation_id", conversationID, "error", draft.Err)
		writeJSONError(w, http.StatusInternalServerError, "AI processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":    draft.Response,
		"confidence":  draft.Confidence,
		"should_send": draft.ShouldSend,
		"reasoning":   draft.Reasoning,
	})
}

// Activity returns the recent pipeline event feed, newest first.
func (h *AdminConversationsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.feed.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("activity feed read failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "activity feed unavailable")
		return
	}
	if events == nil {
		events = []activity.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
