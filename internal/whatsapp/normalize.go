package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// MessageTypeText is the only type that carries extractable free text.
const MessageTypeText = "text"

// NormalizedMessage is the internal record shape for one provider message.
type NormalizedMessage struct {
	ProviderMessageID string
	Direction         string
	FromPhone         string
	ToPhone           string
	MessageType       string
	Content           json.RawMessage
	Text              string
	ContactName       string
	ProviderTimestamp time.Time
}

// Normalize maps a raw provider message into the internal record shape.
// Text is extracted only for text-type messages; a missing contact match is
// not an error. A malformed timestamp fails this message alone.
func Normalize(msg RawMessage, metadata Metadata, contacts []Contact) (NormalizedMessage, error) {
	if strings.TrimSpace(msg.ID) == "" {
		return NormalizedMessage{}, fmt.Errorf("whatsapp: message missing id")
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(msg.Timestamp), 10, 64)
	if err != nil {
		return NormalizedMessage{}, fmt.Errorf("whatsapp: malformed message timestamp %q: %w", msg.Timestamp, err)
	}

	messageType := msg.Type
	if messageType == "" {
		messageType = "unknown"
	}

	var text string
	if messageType == MessageTypeText && msg.Text != nil {
		text = msg.Text.Body
	}

	var contactName string
	for _, contact := range contacts {
		if contact.WaID == msg.From {
			contactName = contact.Profile.Name
			break
		}
	}

	content := msg.Raw
	if len(content) == 0 {
		content, _ = json.Marshal(msg)
	}

	return NormalizedMessage{
		ProviderMessageID: msg.ID,
		Direction:         DirectionInbound,
		FromPhone:         msg.From,
		ToPhone:           metadata.PhoneNumberID,
		MessageType:       messageType,
		Content:           content,
		Text:              text,
		ContactName:       contactName,
		ProviderTimestamp: time.Unix(seconds, 0).UTC(),
	}, nil
}
