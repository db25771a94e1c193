package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func operatorToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func callAdminJWT(secret string, req *http.Request, next http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	AdminJWT(secret)(next).ServeHTTP(rec, req)
	return rec
}

func TestAdminJWTRejectsWhenDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	rec := callAdminJWT("", req, func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a configured secret")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTRejectsMissingBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	rec := callAdminJWT("secret", req, func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTRejectsWrongKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "other-secret", "ops", time.Minute))
	rec := callAdminJWT("secret", req, func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with a forged token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTRejectsExpiredToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "secret", "ops", -time.Minute))
	rec := callAdminJWT("secret", req, func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with an expired token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTExposesOperatorSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "secret", "ops@example.com", time.Minute))

	var got string
	rec := callAdminJWT("secret", req, func(w http.ResponseWriter, r *http.Request) {
		op, ok := OperatorFromContext(r.Context())
		if !ok {
			t.Fatal("expected operator subject in context")
		}
		got = op
		w.WriteHeader(http.StatusOK)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != "ops@example.com" {
		t.Fatalf("unexpected operator subject %q", got)
	}
}
