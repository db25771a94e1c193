package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Conversation statuses.
const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
	ConversationStatusBlocked  = "blocked"
)

// ConversationRecord is one business-number/customer-number thread.
type ConversationRecord struct {
	ID                   uuid.UUID
	WhatsAppAccountID    uuid.UUID
	UserID               uuid.UUID
	CustomerPhone        string
	BusinessPhone        string
	LastMessageAt        *time.Time
	LastMessageDirection string
	NeedsIntervention    bool
	InterventionReason   string
	Status               string
}

// FindOrCreateConversation returns the conversation id for an
// (account, customer phone) pair, creating it if absent. The upsert makes the
// operation atomic under concurrent webhook deliveries for the same pair.
func (s *Store) FindOrCreateConversation(ctx context.Context, q Querier, accountID, userID uuid.UUID, customerPhone, businessPhone string) (uuid.UUID, error) {
	if q == nil {
		q = s.pool
	}
	query := `
		INSERT INTO conversations (
			id, whatsapp_account_id, user_id, customer_phone, business_phone, status
		)
		VALUES ($1, $2, $3, $4, $5, 'active')
		ON CONFLICT (whatsapp_account_id, customer_phone) DO UPDATE
		SET updated_at = now()
		RETURNING id
	`
	var id uuid.UUID
	if err := q.QueryRow(ctx, query, uuid.New(), accountID, userID, customerPhone, businessPhone).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("store: find or create conversation: %w", err)
	}
	return id, nil
}

// UpdateLastMessage records the latest message direction and timestamp on the
// conversation and refreshes the review flag.
func (s *Store) UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, direction string, at time.Time, needsIntervention bool) error {
	query := `
		UPDATE conversations
		SET last_message_at = $2,
			last_message_direction = $3,
			needs_intervention = $4,
			updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, conversationID, at, direction, needsIntervention); err != nil {
		return fmt.Errorf("store: update last message: %w", err)
	}
	return nil
}

// FlagIntervention marks a conversation for human review with a reason.
func (s *Store) FlagIntervention(ctx context.Context, conversationID uuid.UUID, reason string) error {
	query := `
		UPDATE conversations
		SET needs_intervention = TRUE,
			intervention_reason = $2,
			updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, conversationID, reason); err != nil {
		return fmt.Errorf("store: flag intervention: %w", err)
	}
	return nil
}

// ClearIntervention removes the review flag, e.g. after an operator replies.
func (s *Store) ClearIntervention(ctx context.Context, conversationID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET needs_intervention = FALSE,
			intervention_reason = NULL,
			updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, conversationID); err != nil {
		return fmt.Errorf("store: clear intervention: %w", err)
	}
	return nil
}

// ConversationWithAccount joins a conversation with the credentials needed to
// send into it.
type ConversationWithAccount struct {
	Conversation ConversationRecord
	Account      AccountRecord
}

// GetConversationWithAccount loads a conversation and its owning account, or
// nil when the conversation does not exist.
func (s *Store) GetConversationWithAccount(ctx context.Context, conversationID uuid.UUID) (*ConversationWithAccount, error) {
	query := `
		SELECT c.id, c.whatsapp_account_id, c.user_id, c.customer_phone, c.business_phone,
			c.last_message_at, COALESCE(c.last_message_direction, ''),
			c.needs_intervention, COALESCE(c.intervention_reason, ''), c.status,
			a.id, a.user_id, a.business_account_id, a.phone_number_id,
			a.display_phone_number, a.access_token, a.status
		FROM conversations c
		JOIN whatsapp_accounts a ON a.id = c.whatsapp_account_id
		WHERE c.id = $1
	`
	var out ConversationWithAccount
	err := s.pool.QueryRow(ctx, query, conversationID).Scan(
		&out.Conversation.ID, &out.Conversation.WhatsAppAccountID, &out.Conversation.UserID,
		&out.Conversation.CustomerPhone, &out.Conversation.BusinessPhone,
		&out.Conversation.LastMessageAt, &out.Conversation.LastMessageDirection,
		&out.Conversation.NeedsIntervention, &out.Conversation.InterventionReason, &out.Conversation.Status,
		&out.Account.ID, &out.Account.UserID, &out.Account.BusinessAccountID, &out.Account.PhoneNumberID,
		&out.Account.DisplayPhoneNumber, &out.Account.AccessToken, &out.Account.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation with account: %w", err)
	}
	return &out, nil
}

// ListConversations returns the most recently active conversations for an account.
func (s *Store) ListConversations(ctx context.Context, accountID uuid.UUID, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, whatsapp_account_id, user_id, customer_phone, business_phone,
			last_message_at, COALESCE(last_message_direction, ''),
			needs_intervention, COALESCE(intervention_reason, ''), status
		FROM conversations
		WHERE whatsapp_account_id = $1
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()
	var out []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(&rec.ID, &rec.WhatsAppAccountID, &rec.UserID, &rec.CustomerPhone, &rec.BusinessPhone,
			&rec.LastMessageAt, &rec.LastMessageDirection,
			&rec.NeedsIntervention, &rec.InterventionReason, &rec.Status); err != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
