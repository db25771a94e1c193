package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Message delivery statuses reported by the provider.
const (
	DeliveryStatusReceived  = "received"
	DeliveryStatusSent      = "sent"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusRead      = "read"
	DeliveryStatusFailed    = "failed"
)

// MessageRecord is one persisted inbound or outbound message.
type MessageRecord struct {
	ID                uuid.UUID
	ConversationID    uuid.UUID
	WhatsAppMessageID string
	Direction         string
	FromPhone         string
	ToPhone           string
	MessageType       string
	Content           []byte
	Text              string
	Status            string
	IsAutoResponse    bool
	NeedsManualReview bool
	AIConfidence      *float64
	AIReasoning       string
	AIError           string
	ContactName       string
	ProviderTimestamp time.Time
	CreatedAt         time.Time
}

// NewMessage carries the fields for an insert.
type NewMessage struct {
	ConversationID    uuid.UUID
	WhatsAppMessageID string
	Direction         string
	FromPhone         string
	ToPhone           string
	MessageType       string
	Content           []byte
	Text              string
	Status            string
	IsAutoResponse    bool
	NeedsManualReview bool
	AIError           string
	ContactName       string
	ProviderTimestamp time.Time
}

// InsertMessage persists a message. A redelivered provider message id is
// swallowed by the conflict clause; inserted reports whether a new row was
// written so callers can skip further processing on duplicates.
func (s *Store) InsertMessage(ctx context.Context, q Querier, msg NewMessage) (id uuid.UUID, inserted bool, err error) {
	if q == nil {
		q = s.pool
	}
	query := `
		INSERT INTO messages (
			id, conversation_id, whatsapp_message_id, direction, from_phone, to_phone,
			message_type, content, message_text, delivery_status,
			is_auto_response, needs_manual_review, ai_processing_error, contact_name, provider_timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15)
		ON CONFLICT (whatsapp_message_id) DO NOTHING
		RETURNING id
	`
	err = q.QueryRow(ctx, query,
		uuid.New(), msg.ConversationID, msg.WhatsAppMessageID, msg.Direction, msg.FromPhone, msg.ToPhone,
		msg.MessageType, msg.Content, msg.Text, msg.Status,
		msg.IsAutoResponse, msg.NeedsManualReview, msg.AIError, msg.ContactName, msg.ProviderTimestamp,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("store: insert message: %w", err)
	}
	return id, true, nil
}

// UpdateDeliveryStatus records a provider status update. Unknown message ids
// are ignored.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, whatsappMessageID, status string) error {
	query := `
		UPDATE messages
		SET delivery_status = $2, updated_at = now()
		WHERE whatsapp_message_id = $1
	`
	if _, err := s.pool.Exec(ctx, query, whatsappMessageID, status); err != nil {
		return fmt.Errorf("store: update delivery status: %w", err)
	}
	return nil
}

// AttachAIOutcome stores the classifier verdict on a message so operators can
// see why a reply was or was not sent. needsReview forces the manual-review
// flag when the verdict held the reply back.
func (s *Store) AttachAIOutcome(ctx context.Context, messageID uuid.UUID, confidence float64, reasoning string, needsReview bool) error {
	query := `
		UPDATE messages
		SET ai_confidence_score = $2, ai_reasoning = $3, needs_manual_review = $4, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, messageID, confidence, reasoning, needsReview); err != nil {
		return fmt.Errorf("store: attach ai outcome: %w", err)
	}
	return nil
}

// MarkAIError records a generation failure against the inbound message.
func (s *Store) MarkAIError(ctx context.Context, messageID uuid.UUID, aiErr string) error {
	query := `
		UPDATE messages
		SET ai_processing_error = $2, needs_manual_review = TRUE, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, messageID, aiErr); err != nil {
		return fmt.Errorf("store: mark ai error: %w", err)
	}
	return nil
}

// ListRecentMessages returns up to limit messages for a conversation in
// chronological order.
func (s *Store) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, conversation_id, whatsapp_message_id, direction, from_phone, to_phone,
			message_type, content, COALESCE(message_text, ''), COALESCE(delivery_status, ''),
			is_auto_response, needs_manual_review, ai_confidence_score,
			COALESCE(ai_reasoning, ''), COALESCE(ai_processing_error, ''),
			COALESCE(contact_name, ''), provider_timestamp, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY provider_timestamp DESC
			LIMIT $2
		) recent
		ORDER BY provider_timestamp ASC
	`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recent messages: %w", err)
	}
	defer rows.Close()
	var out []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.WhatsAppMessageID, &rec.Direction, &rec.FromPhone, &rec.ToPhone,
			&rec.MessageType, &rec.Content, &rec.Text, &rec.Status,
			&rec.IsAutoResponse, &rec.NeedsManualReview, &rec.AIConfidence,
			&rec.AIReasoning, &rec.AIError,
			&rec.ContactName, &rec.ProviderTimestamp, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
