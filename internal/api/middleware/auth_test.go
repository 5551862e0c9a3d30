package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/auth"
)

func authedHandler(t *testing.T, wantCaller string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := CallerFromContext(r.Context()); got != wantCaller {
			t.Errorf("caller = %q, want %q", got, wantCaller)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func authRequest(handler http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ubhp/send", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	a := NewBridgeAuth("", "", zerolog.Nop())
	if a.Enabled() {
		t.Fatal("auth must be disabled with no credentials configured")
	}
	rec := authRequest(a.RequireAuth(authedHandler(t, "")), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthAPIKey(t *testing.T) {
	a := NewBridgeAuth("", "sk-valid", zerolog.Nop())
	handler := a.RequireAuth(authedHandler(t, "api-key"))

	rec := authRequest(handler, map[string]string{"X-API-Key": "sk-valid"})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid key: status = %d, want 200", rec.Code)
	}

	rec = authRequest(handler, map[string]string{"X-API-Key": "sk-wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", rec.Code)
	}

	rec = authRequest(handler, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing credentials: status = %d, want 401", rec.Code)
	}
}

func TestAuthJWT(t *testing.T) {
	a := NewBridgeAuth("test-secret", "", zerolog.Nop())

	token, err := auth.SignHS256(auth.Claims{
		Subject:   "caller-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, []byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	rec := authRequest(a.RequireAuth(authedHandler(t, "caller-1")),
		map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", rec.Code)
	}

	rec = authRequest(a.RequireAuth(authedHandler(t, "")),
		map[string]string{"Authorization": "Bearer not.a.token"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}

	expired, err := auth.SignHS256(auth.Claims{
		Subject:   "caller-1",
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}, []byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	rec = authRequest(a.RequireAuth(authedHandler(t, "")),
		map[string]string{"Authorization": "Bearer " + expired})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status = %d, want 401", rec.Code)
	}
}

func TestAuthWrongAPIKeyNotFallThroughToJWT(t *testing.T) {
	// A present but wrong API key must fail outright, not be retried as JWT.
	a := NewBridgeAuth("test-secret", "sk-valid", zerolog.Nop())
	rec := authRequest(a.RequireAuth(authedHandler(t, "")),
		map[string]string{"X-API-Key": "sk-wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
