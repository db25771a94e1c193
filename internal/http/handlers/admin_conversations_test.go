package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hostwise/whatsapp-concierge/internal/activity"
	"github.com/hostwise/whatsapp-concierge/internal/ai"
	"github.com/hostwise/whatsapp-concierge/internal/store"
	"github.com/hostwise/whatsapp-concierge/internal/whatsapp"
)

type fakeConvStore struct {
	conversations []store.ConversationRecord
	messages      []store.MessageRecord
	loaded        *store.ConversationWithAccount
	property      *store.PropertyInfo
	inserted      []store.NewMessage
	cleared       int
	lastUpdated   int
}

func (f *fakeConvStore) ListConversations(context.Context, uuid.UUID, int) ([]store.ConversationRecord, error) {
	return f.conversations, nil
}

func (f *fakeConvStore) ListRecentMessages(context.Context, uuid.UUID, int) ([]store.MessageRecord, error) {
	return f.messages, nil
}

func (f *fakeConvStore) GetConversationWithAccount(context.Context, uuid.UUID) (*store.ConversationWithAccount, error) {
	return f.loaded, nil
}

func (f *fakeConvStore) FindActivePropertyLink(_ context.Context, _ uuid.UUID, customerPhone string) (*store.PropertyLink, *store.PropertyInfo, error) {
	if f.property == nil {
		return nil, nil, nil
	}
	return &store.PropertyLink{CustomerPhone: customerPhone, AutoRespond: true}, f.property, nil
}

func (f *fakeConvStore) InsertMessage(_ context.Context, _ store.Querier, msg store.NewMessage) (uuid.UUID, bool, error) {
	f.inserted = append(f.inserted, msg)
	return uuid.New(), true, nil
}

func (f *fakeConvStore) UpdateLastMessage(context.Context, uuid.UUID, string, time.Time, bool) error {
	f.lastUpdated++
	return nil
}

func (f *fakeConvStore) ClearIntervention(context.Context, uuid.UUID) error {
	f.cleared++
	return nil
}

type fakePreviewDrafter struct {
	result ai.DraftResult
}

func (f *fakePreviewDrafter) Draft(context.Context, uuid.UUID, string, *ai.PropertyContext) ai.DraftResult {
	return f.result
}

type fakeSender struct {
	err  error
	sent []whatsapp.SendRequest
}

func (f *fakeSender) SendText(_ context.Context, req whatsapp.SendRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, req)
	return "wamid.out.1", nil
}

type fakeFeed struct {
	events []activity.Event
}

func (f *fakeFeed) Recent(context.Context, int) ([]activity.Event, error) {
	return f.events, nil
}

func loadedConversation() *store.ConversationWithAccount {
	return &store.ConversationWithAccount{
		Conversation: store.ConversationRecord{
			ID:            uuid.New(),
			CustomerPhone: "491701234567",
			BusinessPhone: "+15550001234",
		},
		Account: store.AccountRecord{
			ID:            uuid.New(),
			PhoneNumberID: "1065551234",
			AccessToken:   "tok",
		},
	}
}

func conversationsRouter(h *AdminConversationsHandler) *chi.Mux {
	router := chi.NewRouter()
	router.Get("/admin/conversations", h.ListConversations)
	router.Get("/admin/conversations/{conversationID}/messages", h.ListMessages)
	router.Post("/admin/conversations/{conversationID}/messages", h.SendMessage)
	router.Post("/admin/conversations/{conversationID}/ai-preview", h.PreviewAIResponse)
	router.Get("/admin/activity", h.Activity)
	return router
}

func TestListConversations(t *testing.T) {
	fs := &fakeConvStore{conversations: []store.ConversationRecord{
		{ID: uuid.New(), CustomerPhone: "491701234567", Status: "active", NeedsIntervention: true, InterventionReason: "No property linked"},
	}}
	router := conversationsRouter(NewAdminConversationsHandler(fs, &fakePreviewDrafter{}, &fakeSender{}, &fakeFeed{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations?account_id="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Conversations []conversationListItem `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Conversations) != 1 || resp.Conversations[0].InterventionReason != "No property linked" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListConversationsRequiresAccountID(t *testing.T) {
	router := conversationsRouter(NewAdminConversationsHandler(&fakeConvStore{}, &fakePreviewDrafter{}, &fakeSender{}, &fakeFeed{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessage(t *testing.T) {
	fs := &fakeConvStore{loaded: loadedConversation()}
	sender := &fakeSender{}
	router := conversationsRouter(NewAdminConversationsHandler(fs, &fakePreviewDrafter{}, sender, &fakeFeed{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/conversations/"+uuid.NewString()+"/messages", strings.NewReader(`{"message":"On my way with the spare key."}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "491701234567" {
		t.Fatalf("send wrong: %+v", sender.sent)
	}
	if len(fs.inserted) != 1 || fs.inserted[0].IsAutoResponse || fs.inserted[0].Direction != whatsapp.DirectionOutbound {
		t.Fatalf("outbound row wrong: %+v", fs.inserted)
	}
	if fs.cleared != 1 {
		t.Fatal("operator reply must clear the intervention flag")
	}
}

func TestSendMessageTokenExpired(t *testing.T) {
	fs := &fakeConvStore{loaded: loadedConversation()}
	sender := &fakeSender{err: &whatsapp.APIError{Code: 190, Type: "OAuthException", Message: "token expired"}}
	router := conversationsRouter(NewAdminConversationsHandler(fs, &fakePreviewDrafter{}, sender, &fakeFeed{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/conversations/"+uuid.NewString()+"/messages", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
	if len(fs.inserted) != 0 {
		t.Fatal("failed send must not persist a message")
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	router := conversationsRouter(NewAdminConversationsHandler(&fakeConvStore{}, &fakePreviewDrafter{}, &fakeSender{}, &fakeFeed{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/conversations/"+uuid.NewString()+"/messages", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPreviewAIResponse(t *testing.T) {
	fs := &fakeConvStore{
		loaded:   loadedConversation(),
		property: &store.PropertyInfo{Name: "Sunny Loft"},
	}
	drafter := &fakePreviewDrafter{result: ai.DraftResult{
		Response:   "The wifi password is Welcome1.",
		Confidence: 0.98,
		ShouldSend: true,
		Reasoning:  "Question about well-documented property information",
	}}
	router := conversationsRouter(NewAdminConversationsHandler(fs, drafter, &fakeSender{}, &fakeFeed{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/conversations/"+uuid.NewString()+"/ai-preview", strings.NewReader(`{"message":"What's the wifi password?"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Response   string  `json:"response"`
		Confidence float64 `json:"confidence"`
		ShouldSend bool    `json:"should_send"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.ShouldSend || resp.Confidence != 0.98 {
		t.Fatalf("unexpected verdict: %+v", resp)
	}
}

func TestActivityFeed(t *testing.T) {
	feed := &fakeFeed{events: []activity.Event{{Kind: "message_received"}}}
	router := conversationsRouter(NewAdminConversationsHandler(&fakeConvStore{}, &fakePreviewDrafter{}, &fakeSender{}, feed, nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/activity?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Events []activity.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Kind != "message_received" {
		t.Fatalf("unexpected events: %+v", resp.Events)
	}
}
