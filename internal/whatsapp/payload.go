package whatsapp

import (
	"encoding/json"
	"fmt"
)

// BusinessAccountObject is the payload object value for WhatsApp Business webhooks.
const BusinessAccountObject = "whatsapp_business_account"

// Change field discriminators sent by the platform.
const (
	FieldMessages             = "messages"
	FieldTemplateStatusUpdate = "message_template_status_update"
)

// WebhookPayload is the top-level body of a webhook delivery.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes delivered for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one field-discriminated event value. Value is kept raw so
// each field variant decodes only when routed.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// Metadata identifies the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to inbound messages.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// RawMessage is one inbound message as delivered by the platform.
type RawMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *TextBody       `json:"text,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// TextBody is the text payload of a text-type message.
type TextBody struct {
	Body string `json:"body"`
}

// Status is a delivery/read receipt for a previously sent message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// MessagesValue is the decoded value of a change with field "messages".
type MessagesValue struct {
	MessagingProduct string       `json:"messaging_product"`
	Metadata         Metadata     `json:"metadata"`
	Contacts         []Contact    `json:"contacts"`
	Messages         []RawMessage `json:"messages"`
	Statuses         []Status     `json:"statuses"`
}

// ChangeEvent is the tagged union produced by routing a change by its field.
// Exactly one of Messages / TemplateStatus is set for the recognized variants;
// Unrecognized carries the field name otherwise.
type ChangeEvent struct {
	Messages       *MessagesValue
	TemplateStatus json.RawMessage
	Unrecognized   string
}

// ParsePayload decodes a webhook delivery body.
func ParsePayload(body []byte) (WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookPayload{}, fmt.Errorf("whatsapp: decode webhook payload: %w", err)
	}
	return payload, nil
}

// RouteChange decodes a change into its field variant. Unknown fields are not
// an error; they surface as the Unrecognized variant so callers can log and
// move on.
func RouteChange(change Change) (ChangeEvent, error) {
	switch change.Field {
	case FieldMessages:
		var value MessagesValue
		if err := json.Unmarshal(change.Value, &value); err != nil {
			return ChangeEvent{}, fmt.Errorf("whatsapp: decode messages change: %w", err)
		}
		retainRawContent(&value, change.Value)
		return ChangeEvent{Messages: &value}, nil
	case FieldTemplateStatusUpdate:
		return ChangeEvent{TemplateStatus: change.Value}, nil
	default:
		return ChangeEvent{Unrecognized: change.Field}, nil
	}
}

// retainRawContent re-extracts each message's original JSON so the full
// provider document can be persisted as the message content.
func retainRawContent(value *MessagesValue, raw json.RawMessage) {
	var shallow struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &shallow); err != nil {
		return
	}
	for i := range value.Messages {
		if i < len(shallow.Messages) {
			value.Messages[i].Raw = shallow.Messages[i]
		}
	}
}
