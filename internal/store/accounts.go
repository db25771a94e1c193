package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Account statuses.
const (
	AccountStatusActive    = "active"
	AccountStatusInactive  = "inactive"
	AccountStatusSuspended = "suspended"
)

// AccountRecord is one WhatsApp business account.
type AccountRecord struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	BusinessAccountID  string
	PhoneNumberID      string
	DisplayPhoneNumber string
	AccessToken        string
	Status             string
}

// FindAccountByPhoneNumberID returns the active account owning a phone number
// id, or nil when none exists.
func (s *Store) FindAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*AccountRecord, error) {
	query := `
		SELECT id, user_id, business_account_id, phone_number_id,
			display_phone_number, access_token, status
		FROM whatsapp_accounts
		WHERE phone_number_id = $1 AND status = 'active'
	`
	var rec AccountRecord
	err := s.pool.QueryRow(ctx, query, phoneNumberID).Scan(
		&rec.ID, &rec.UserID, &rec.BusinessAccountID, &rec.PhoneNumberID,
		&rec.DisplayPhoneNumber, &rec.AccessToken, &rec.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find account by phone number id: %w", err)
	}
	return &rec, nil
}

// UpsertAccount registers a business account or refreshes its credential and
// display number. The phone number id is the natural key.
func (s *Store) UpsertAccount(ctx context.Context, q Querier, rec AccountRecord) (uuid.UUID, error) {
	if q == nil {
		q = s.pool
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = AccountStatusActive
	}
	query := `
		INSERT INTO whatsapp_accounts (
			id, user_id, business_account_id, phone_number_id,
			display_phone_number, access_token, status
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (phone_number_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			display_phone_number = EXCLUDED.display_phone_number,
			updated_at = now()
		RETURNING id
	`
	var id uuid.UUID
	if err := q.QueryRow(ctx, query, rec.ID, rec.UserID, rec.BusinessAccountID, rec.PhoneNumberID,
		rec.DisplayPhoneNumber, rec.AccessToken, rec.Status).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("store: upsert account: %w", err)
	}
	return id, nil
}

// UpdateAccountStatus transitions an account between active/inactive/suspended.
func (s *Store) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status string) error {
	query := `
		UPDATE whatsapp_accounts
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, accountID, status); err != nil {
		return fmt.Errorf("store: update account status: %w", err)
	}
	return nil
}
