package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hostwise/whatsapp-concierge/internal/http/handlers"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return New(&Config{
		WebhookHandler:  handlers.NewWhatsAppWebhookHandler("verify-me", "", nil, nil),
		SetupHandler:    handlers.NewAdminSetupHandler(nil, nil),
		AdminAuthSecret: "router-test-secret",
	})
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterWebhookVerifyRouted(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Fatalf("expected challenge echoed, got %q", rec.Body.String())
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/accounts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestRouterAdminAcceptsValidToken(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "router-test-secret"))
	r.ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("expected authenticated request to pass auth, got 401")
	}
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	r := New(&Config{
		WebhookHandler: handlers.NewWhatsAppWebhookHandler("verify-me", "", nil, nil),
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when admin routes are disabled, got %d", rec.Code)
	}
}
