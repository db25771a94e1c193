// Package inbound drives the per-message pipeline behind the WhatsApp
// webhook: normalize, resolve the conversation, persist, draft a reply,
// gate it, and either send or flag the thread for an operator.
package inbound

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hostwise/whatsapp-concierge/internal/activity"
	"github.com/hostwise/whatsapp-concierge/internal/ai"
	"github.com/hostwise/whatsapp-concierge/internal/observability/metrics"
	"github.com/hostwise/whatsapp-concierge/internal/store"
	"github.com/hostwise/whatsapp-concierge/internal/whatsapp"
	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

// Intervention reasons surfaced to operators.
const (
	ReasonNoProperty          = "No property linked"
	ReasonAutoRespondDisabled = "Auto-response disabled"
	ReasonAIFailed            = "AI processing failed"
	ReasonSendFailed          = "AI response generation succeeded but sending failed"
)

// autoSendFloor is the policy threshold applied on top of the classifier
// verdict. A shouldSend classification below this never auto-sends.
const defaultAutoSendFloor = 0.95

// Gateway is the persistence surface the pipeline needs. *store.Store
// implements it.
type Gateway interface {
	FindAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*store.AccountRecord, error)
	FindOrCreateConversation(ctx context.Context, q store.Querier, accountID, userID uuid.UUID, customerPhone, businessPhone string) (uuid.UUID, error)
	FindActivePropertyLink(ctx context.Context, accountID uuid.UUID, customerPhone string) (*store.PropertyLink, *store.PropertyInfo, error)
	InsertMessage(ctx context.Context, q store.Querier, msg store.NewMessage) (uuid.UUID, bool, error)
	UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, direction string, at time.Time, needsIntervention bool) error
	FlagIntervention(ctx context.Context, conversationID uuid.UUID, reason string) error
	AttachAIOutcome(ctx context.Context, messageID uuid.UUID, confidence float64, reasoning string, needsReview bool) error
	MarkAIError(ctx context.Context, messageID uuid.UUID, aiErr string) error
	UpdateDeliveryStatus(ctx context.Context, whatsappMessageID, status string) error
}

// ReplyDrafter produces a candidate reply plus a confidence verdict.
type ReplyDrafter interface {
	Draft(ctx context.Context, conversationID uuid.UUID, incoming string, property *ai.PropertyContext) ai.DraftResult
}

// Messenger posts outbound texts and returns the provider message id.
type Messenger interface {
	SendText(ctx context.Context, req whatsapp.SendRequest) (string, error)
}

// ActivitySink receives feed events. Errors are the sink's problem.
type ActivitySink interface {
	Record(ctx context.Context, evt activity.Event)
}

// Processor is the webhook-side orchestrator.
type Processor struct {
	gateway       Gateway
	drafter       ReplyDrafter
	messenger     Messenger
	activity      ActivitySink
	metrics       *metrics.PipelineMetrics
	autoSendFloor float64
	logger        *logging.Logger
}

func NewProcessor(gateway Gateway, drafter ReplyDrafter, messenger Messenger, sink ActivitySink, m *metrics.PipelineMetrics, autoSendFloor float64, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	if autoSendFloor <= 0 || autoSendFloor > 1 {
		autoSendFloor = defaultAutoSendFloor
	}
	return &Processor{
		gateway:       gateway,
		drafter:       drafter,
		messenger:     messenger,
		activity:      sink,
		metrics:       m,
		autoSendFloor: autoSendFloor,
		logger:        logger,
	}
}

// ProcessPayload walks every entry/change pair in a verified webhook delivery.
// It never returns an error for per-message failures; those are isolated and
// logged so the provider always gets its acknowledgement.
func (p *Processor) ProcessPayload(ctx context.Context, payload whatsapp.WebhookPayload) {
	if payload.Object != whatsapp.BusinessAccountObject {
		p.logger.Info("ignoring non-business-account webhook", "object", payload.Object)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			started := time.Now()
			event, err := whatsapp.RouteChange(change)
			if err != nil {
				p.logger.Error("undecodable webhook change", "field", change.Field, "error", err)
				p.metrics.ObserveInbound(change.Field, "decode_error")
				continue
			}
			switch {
			case event.Messages != nil:
				p.processMessagesChange(ctx, event.Messages)
				p.metrics.ObserveInbound(whatsapp.FieldMessages, "ok")
			case event.TemplateStatus != nil:
				p.logger.Info("template status update", "entry_id", entry.ID)
				p.metrics.ObserveInbound(whatsapp.FieldTemplateStatusUpdate, "ignored")
			default:
				p.logger.Info("unhandled webhook field", "field", event.Unrecognized)
				p.metrics.ObserveInbound(event.Unrecognized, "unhandled")
			}
			p.metrics.ObserveWebhookLatency(change.Field, time.Since(started).Seconds())
		}
	}
}

func (p *Processor) processMessagesChange(ctx context.Context, value *whatsapp.MessagesValue) {
	if len(value.Messages) > 0 {
		account, err := p.gateway.FindAccountByPhoneNumberID(ctx, value.Metadata.PhoneNumberID)
		if err != nil {
			p.logger.Error("account lookup failed", "phone_number_id", value.Metadata.PhoneNumberID, "error", err)
		} else if account == nil {
			// No conversation context is possible without an account;
			// drop the whole batch but keep the success acknowledgement
			// so the provider does not retry forever.
			p.logger.Warn("no active account for inbound messages", "phone_number_id", value.Metadata.PhoneNumberID)
		} else {
			for _, raw := range value.Messages {
				p.processOne(ctx, account, value, raw)
			}
		}
	}

	p.processStatuses(ctx, value.Statuses)
}

// processOne runs the full pipeline for a single message. A panic anywhere
// inside is contained here so sibling messages in the batch still run.
func (p *Processor) processOne(ctx context.Context, account *store.AccountRecord, value *whatsapp.MessagesValue, raw whatsapp.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing message", "message_id", raw.ID, "panic", fmt.Sprint(r))
		}
	}()

	msg, err := whatsapp.Normalize(raw, value.Metadata, value.Contacts)
	if err != nil {
		p.logger.Error("message normalization failed", "message_id", raw.ID, "error", err)
		return
	}

	conversationID, err := p.gateway.FindOrCreateConversation(ctx, nil, account.ID, account.UserID, msg.FromPhone, account.DisplayPhoneNumber)
	if err != nil {
		p.logger.Error("conversation resolution failed", "from", msg.FromPhone, "error", err)
		return
	}

	link, property, err := p.gateway.FindActivePropertyLink(ctx, account.ID, msg.FromPhone)
	if err != nil {
		// Treat an unreadable link like a missing one: hold for review
		// rather than auto-replying blind.
		p.logger.Error("property link lookup failed", "account_id", account.ID, "from", msg.FromPhone, "error", err)
		link, property = nil, nil
	}

	autoRespond := link != nil && link.AutoRespond
	needsReview := !autoRespond || property == nil
	reviewReason := ""
	if needsReview {
		reviewReason = ReasonAutoRespondDisabled
		if property == nil {
			reviewReason = ReasonNoProperty
		}
	}

	messageID, inserted, err := p.gateway.InsertMessage(ctx, nil, store.NewMessage{
		ConversationID:    conversationID,
		WhatsAppMessageID: msg.ProviderMessageID,
		Direction:         whatsapp.DirectionInbound,
		FromPhone:         msg.FromPhone,
		ToPhone:           msg.ToPhone,
		MessageType:       msg.MessageType,
		Content:           msg.Content,
		Text:              msg.Text,
		Status:            store.DeliveryStatusReceived,
		NeedsManualReview: needsReview,
		AIError:           reviewReason,
		ContactName:       msg.ContactName,
		ProviderTimestamp: msg.ProviderTimestamp,
	})
	if err != nil {
		p.logger.Error("inbound message persistence failed", "message_id", msg.ProviderMessageID, "error", err)
		return
	}
	if !inserted {
		p.logger.Info("duplicate webhook delivery ignored", "message_id", msg.ProviderMessageID)
		return
	}

	p.record(ctx, activity.Event{
		Kind:           "message_received",
		ConversationID: conversationID.String(),
		Phone:          msg.FromPhone,
		Detail:         map[string]any{"type": msg.MessageType},
	})

	if err := p.gateway.UpdateLastMessage(ctx, conversationID, whatsapp.DirectionInbound, msg.ProviderTimestamp, needsReview); err != nil {
		p.logger.Error("conversation metadata update failed", "conversation_id", conversationID, "error", err)
	}

	if needsReview {
		p.flag(ctx, conversationID, reviewReason)
		p.metrics.ObserveReplyDecision("held_manual_review")
		return
	}

	if msg.MessageType != whatsapp.MessageTypeText || msg.Text == "" {
		p.metrics.ObserveReplyDecision("skipped_no_text")
		return
	}

	p.respond(ctx, account, conversationID, messageID, msg, property)
}

// respond drafts, gates, and possibly sends the auto-reply for one persisted
// inbound text message.
func (p *Processor) respond(ctx context.Context, account *store.AccountRecord, conversationID, messageID uuid.UUID, msg whatsapp.NormalizedMessage, property *store.PropertyInfo) {
	draft := p.drafter.Draft(ctx, conversationID, msg.Text, &ai.PropertyContext{
		Name:    property.Name,
		Address: property.Address,
		Details: property.Details,
	})
	if draft.Err != nil {
		p.logger.Error("reply drafting failed", "conversation_id", conversationID, "error", draft.Err)
		if err := p.gateway.MarkAIError(ctx, messageID, draft.Err.Error()); err != nil {
			p.logger.Error("marking ai error failed", "message_id", messageID, "error", err)
		}
		p.flag(ctx, conversationID, ReasonAIFailed)
		p.metrics.ObserveReplyDecision("ai_error")
		return
	}

	p.metrics.ObserveDraftConfidence(draft.Confidence)

	if !draft.ShouldSend || draft.Confidence < p.autoSendFloor {
		if err := p.gateway.AttachAIOutcome(ctx, messageID, draft.Confidence, draft.Reasoning, true); err != nil {
			p.logger.Error("attaching ai outcome failed", "message_id", messageID, "error", err)
		}
		pct := int(math.Round(draft.Confidence * 100))
		p.flag(ctx, conversationID, fmt.Sprintf("AI reply held for review (%d%% confidence): %s", pct, draft.Reasoning))
		p.metrics.ObserveReplyDecision("held_low_confidence")
		return
	}

	providerID, err := p.messenger.SendText(ctx, whatsapp.SendRequest{
		PhoneNumberID: account.PhoneNumberID,
		AccessToken:   account.AccessToken,
		To:            msg.FromPhone,
		Body:          draft.Response,
	})
	if err != nil {
		p.logger.Error("auto-reply send failed", "conversation_id", conversationID, "error", err)
		if markErr := p.gateway.MarkAIError(ctx, messageID, err.Error()); markErr != nil {
			p.logger.Error("marking send failure failed", "message_id", messageID, "error", markErr)
		}
		p.flag(ctx, conversationID, ReasonSendFailed)
		p.metrics.ObserveOutbound("failed", true)
		p.metrics.ObserveReplyDecision("send_failed")
		return
	}

	now := time.Now().UTC()
	outboundID, _, err := p.gateway.InsertMessage(ctx, nil, store.NewMessage{
		ConversationID:    conversationID,
		WhatsAppMessageID: providerID,
		Direction:         whatsapp.DirectionOutbound,
		FromPhone:         msg.ToPhone,
		ToPhone:           msg.FromPhone,
		MessageType:       whatsapp.MessageTypeText,
		Content:           []byte(fmt.Sprintf(`{"text":{"body":%q}}`, draft.Response)),
		Text:              draft.Response,
		Status:            store.DeliveryStatusSent,
		IsAutoResponse:    true,
		ProviderTimestamp: now,
	})
	if err != nil {
		p.logger.Error("outbound message persistence failed", "provider_message_id", providerID, "error", err)
	} else if err := p.gateway.AttachAIOutcome(ctx, outboundID, draft.Confidence, draft.Reasoning, false); err != nil {
		p.logger.Error("attaching outbound ai outcome failed", "message_id", outboundID, "error", err)
	}

	if err := p.gateway.UpdateLastMessage(ctx, conversationID, whatsapp.DirectionOutbound, now, false); err != nil {
		p.logger.Error("conversation metadata update failed", "conversation_id", conversationID, "error", err)
	}

	p.metrics.ObserveOutbound("sent", true)
	p.metrics.ObserveReplyDecision("auto_sent")
	p.record(ctx, activity.Event{
		Kind:           "auto_reply_sent",
		ConversationID: conversationID.String(),
		Phone:          msg.FromPhone,
		Detail:         map[string]any{"confidence": draft.Confidence},
	})
}

// processStatuses applies delivery/read receipts. Unknown provider ids are a
// no-op by contract.
func (p *Processor) processStatuses(ctx context.Context, statuses []whatsapp.Status) {
	for _, status := range statuses {
		if status.ID == "" || status.Status == "" {
			continue
		}
		if err := p.gateway.UpdateDeliveryStatus(ctx, status.ID, status.Status); err != nil {
			p.logger.Error("delivery status update failed", "message_id", status.ID, "error", err)
		}
	}
}

func (p *Processor) flag(ctx context.Context, conversationID uuid.UUID, reason string) {
	if err := p.gateway.FlagIntervention(ctx, conversationID, reason); err != nil {
		p.logger.Error("flagging intervention failed", "conversation_id", conversationID, "error", err)
		return
	}
	p.record(ctx, activity.Event{
		Kind:           "intervention_flagged",
		ConversationID: conversationID.String(),
		Detail:         map[string]any{"reason": reason},
	})
}

func (p *Processor) record(ctx context.Context, evt activity.Event) {
	if p.activity != nil {
		p.activity.Record(ctx, evt)
	}
}
