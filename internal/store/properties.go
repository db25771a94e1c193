package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PropertyInfo is the listing context handed to the reply drafter.
type PropertyInfo struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Name    string
	Address string
	Details []byte
}

// PropertyLink binds one guest phone number, within a WhatsApp account, to
// the listing it should be answered about.
type PropertyLink struct {
	ID                uuid.UUID
	WhatsAppAccountID uuid.UUID
	PropertyID        uuid.UUID
	CustomerPhone     string
	AutoRespond       bool
}

// FindActivePropertyLink returns the current link for a guest phone within an
// account plus the linked property, or nil when that guest has no active link.
func (s *Store) FindActivePropertyLink(ctx context.Context, accountID uuid.UUID, customerPhone string) (*PropertyLink, *PropertyInfo, error) {
	query := `
		SELECT l.id, l.whatsapp_account_id, l.property_id, l.customer_phone, l.auto_respond,
			p.id, p.user_id, p.name, COALESCE(p.address, ''), p.details
		FROM property_links l
		JOIN properties p ON p.id = l.property_id
		WHERE l.whatsapp_account_id = $1 AND l.customer_phone = $2 AND l.unlinked_at IS NULL
		ORDER BY l.created_at DESC
		LIMIT 1
	`
	var link PropertyLink
	var prop PropertyInfo
	err := s.pool.QueryRow(ctx, query, accountID, customerPhone).Scan(
		&link.ID, &link.WhatsAppAccountID, &link.PropertyID, &link.CustomerPhone, &link.AutoRespond,
		&prop.ID, &prop.UserID, &prop.Name, &prop.Address, &prop.Details,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: find property link: %w", err)
	}
	return &link, &prop, nil
}

// InsertProperty creates a listing record. Details is free-form JSON.
func (s *Store) InsertProperty(ctx context.Context, userID uuid.UUID, name, address string, details []byte) (uuid.UUID, error) {
	query := `
		INSERT INTO properties (id, user_id, name, address, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query, uuid.New(), userID, name, address, details).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("store: insert property: %w", err)
	}
	return id, nil
}

// UpsertPropertyLink retires any existing link for the guest phone and
// creates a fresh one pointing at property. Runs in a transaction so a guest
// never has two active links within the same account.
func (s *Store) UpsertPropertyLink(ctx context.Context, accountID, propertyID uuid.UUID, customerPhone string, autoRespond bool) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: begin link tx: %w", err)
	}
	defer tx.Rollback(ctx)

	retire := `
		UPDATE property_links
		SET unlinked_at = now()
		WHERE whatsapp_account_id = $1 AND customer_phone = $2 AND unlinked_at IS NULL
	`
	if _, err := tx.Exec(ctx, retire, accountID, customerPhone); err != nil {
		return uuid.Nil, fmt.Errorf("store: retire property link: %w", err)
	}

	insert := `
		INSERT INTO property_links (id, whatsapp_account_id, property_id, customer_phone, auto_respond)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, insert, uuid.New(), accountID, propertyID, customerPhone, autoRespond).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("store: insert property link: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("store: commit link tx: %w", err)
	}
	return id, nil
}

// SetAutoRespond toggles automatic replies on one guest phone's active link.
func (s *Store) SetAutoRespond(ctx context.Context, accountID uuid.UUID, customerPhone string, enabled bool) error {
	query := `
		UPDATE property_links
		SET auto_respond = $3, updated_at = now()
		WHERE whatsapp_account_id = $1 AND customer_phone = $2 AND unlinked_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, query, accountID, customerPhone, enabled); err != nil {
		return fmt.Errorf("store: set auto respond: %w", err)
	}
	return nil
}

// UnlinkProperty retires one guest phone's active link without creating a new
// one.
func (s *Store) UnlinkProperty(ctx context.Context, accountID uuid.UUID, customerPhone string) error {
	query := `
		UPDATE property_links
		SET unlinked_at = now()
		WHERE whatsapp_account_id = $1 AND customer_phone = $2 AND unlinked_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, query, accountID, customerPhone); err != nil {
		return fmt.Errorf("store: unlink property: %w", err)
	}
	return nil
}
