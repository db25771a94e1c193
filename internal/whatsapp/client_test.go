package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientSendText(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v18.0/111222/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out.1"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "v18.0", 2*time.Second, nil)
	id, err := client.SendText(context.Background(), SendRequest{
		PhoneNumberID: "111222",
		AccessToken:   "token-1",
		To:            "15559998888",
		Body:          "The wifi password is Welcome2024!",
	})
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if id != "wamid.out.1" {
		t.Fatalf("unexpected provider message id: %s", id)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotPayload["messaging_product"] != "whatsapp" || gotPayload["to"] != "15559998888" {
		t.Fatalf("unexpected payload: %+v", gotPayload)
	}
}

func TestClientSendTextTokenExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":190,"type":"OAuthException","message":"Error validating access token"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "v18.0", 2*time.Second, nil)
	_, err := client.SendText(context.Background(), SendRequest{
		PhoneNumberID: "111222",
		AccessToken:   "stale",
		To:            "1555",
		Body:          "hi",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if !apiErr.TokenExpired() {
		t.Fatalf("expected token expired, got code %d", apiErr.Code)
	}
}

func TestClientSendTextServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "v18.0", 2*time.Second, nil)
	if _, err := client.SendText(context.Background(), SendRequest{
		PhoneNumberID: "111222",
		AccessToken:   "token",
		To:            "1555",
		Body:          "hi",
	}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClientSendTextValidation(t *testing.T) {
	client := NewClient("", "", 0, nil)
	cases := []SendRequest{
		{PhoneNumberID: "1", AccessToken: "", To: "2", Body: "b"},
		{PhoneNumberID: "", AccessToken: "t", To: "2", Body: "b"},
		{PhoneNumberID: "1", AccessToken: "t", To: "", Body: "b"},
		{PhoneNumberID: "1", AccessToken: "t", To: "2", Body: " "},
	}
	for i, req := range cases {
		if _, err := client.SendText(context.Background(), req); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
