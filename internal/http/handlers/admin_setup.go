package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hostwise/whatsapp-concierge/internal/store"
	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

// SetupStore is the persistence surface for account/property administration.
type SetupStore interface {
	UpsertAccount(ctx context.Context, q store.Querier, rec store.AccountRecord) (uuid.UUID, error)
	UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status string) error
	InsertProperty(ctx context.Context, userID uuid.UUID, name, address string, details []byte) (uuid.UUID, error)
	UpsertPropertyLink(ctx context.Context, accountID, propertyID uuid.UUID, customerPhone string, autoRespond bool) (uuid.UUID, error)
	SetAutoRespond(ctx context.Context, accountID uuid.UUID, customerPhone string, enabled bool) error
	UnlinkProperty(ctx context.Context, accountID uuid.UUID, customerPhone string) error
}

// AdminSetupHandler registers accounts, properties, and the links between
// them. Provisioning is an explicit operator action; ingestion never creates
// any of these records as a side effect.
type AdminSetupHandler struct {
	store  SetupStore
	logger *logging.Logger
}

func NewAdminSetupHandler(setupStore SetupStore, logger *logging.Logger) *AdminSetupHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSetupHandler{store: setupStore, logger: logger}
}

type registerAccountRequest struct {
	UserID             string `json:"user_id"`
	BusinessAccountID  string `json:"business_account_id"`
	PhoneNumberID      string `json:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	AccessToken        string `json:"access_token"`
}

// RegisterAccount creates or refreshes a WhatsApp business account.
func (h *AdminSetupHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "user_id must be a UUID")
		return
	}
	if strings.TrimSpace(req.PhoneNumberID) == "" || strings.TrimSpace(req.AccessToken) == "" {
		writeJSONError(w, http.StatusBadRequest, "phone_number_id and access_token are required")
		return
	}

	id, err := h.store.UpsertAccount(r.Context(), nil, store.AccountRecord{
		UserID:             userID,
		BusinessAccountID:  req.BusinessAccountID,
		PhoneNumberID:      req.PhoneNumberID,
		DisplayPhoneNumber: req.DisplayPhoneNumber,
		AccessToken:        req.AccessToken,
	})
	if err != nil {
		h.logger.Error("account registration failed", "phone_number_id", req.PhoneNumberID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "account registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// UpdateAccountStatus transitions an account between active/inactive/suspended.
func (h *AdminSetupHandler) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	switch req.Status {
	case store.AccountStatusActive, store.AccountStatusInactive, store.AccountStatusSuspended:
	default:
		writeJSONError(w, http.StatusBadRequest, "status must be active, inactive, or suspended")
		return
	}
	if err := h.store.UpdateAccountStatus(r.Context(), accountID, req.Status); err != nil {
		h.logger.Error("account status update failed", "account_id", accountID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "status update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

type createPropertyRequest struct {
	UserID  string          `json:"user_id"`
	Name    string          `json:"name"`
	Address string          `json:"address"`
	Details json.RawMessage `json:"details"`
}

// CreateProperty stores a listing record with free-form details.
func (h *AdminSetupHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req createPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "user_id must be a UUID")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := h.store.InsertProperty(r.Context(), userID, req.Name, req.Address, req.Details)
	if err != nil {
		h.logger.Error("property creation failed", "name", req.Name, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "property creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

type linkPropertyRequest struct {
	AccountID     string `json:"account_id"`
	PropertyID    string `json:"property_id"`
	CustomerPhone string `json:"customer_phone"`
	AutoRespond   bool   `json:"auto_respond"`
}

// LinkProperty points a guest phone at a property within an account. Any
// previous link for that phone is retired.
func (h *AdminSetupHandler) LinkProperty(w http.ResponseWriter, r *http.Request) {
	var req linkPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "account_id must be a UUID")
		return
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "property_id must be a UUID")
		return
	}
	phone := strings.TrimSpace(req.CustomerPhone)
	if phone == "" {
		writeJSONError(w, http.StatusBadRequest, "customer_phone is required")
		return
	}

	id, err := h.store.UpsertPropertyLink(r.Context(), accountID, propertyID, phone, req.AutoRespond)
	if err != nil {
		h.logger.Error("property link failed", "account_id", accountID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "property link failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// SetAutoRespond toggles automatic replies for one guest phone's active link.
func (h *AdminSetupHandler) SetAutoRespond(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	var req struct {
		CustomerPhone string `json:"customer_phone"`
		Enabled       bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	phone := strings.TrimSpace(req.CustomerPhone)
	if phone == "" {
		writeJSONError(w, http.StatusBadRequest, "customer_phone is required")
		return
	}
	if err := h.store.SetAutoRespond(r.Context(), accountID, phone, req.Enabled); err != nil {
		h.logger.Error("auto-respond toggle failed", "account_id", accountID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "auto-respond toggle failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// UnlinkProperty retires one guest phone's active property link. The phone
// comes in as a query parameter on the DELETE.
func (h *AdminSetupHandler) UnlinkProperty(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	phone := strings.TrimSpace(r.URL.Query().Get("customer_phone"))
	if phone == "" {
		writeJSONError(w, http.StatusBadRequest, "customer_phone is required")
		return
	}
	if err := h.store.UnlinkProperty(r.Context(), accountID, phone); err != nil {
		h.logger.Error("property unlink failed", "account_id", accountID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "property unlink failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
