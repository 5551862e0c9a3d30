package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func doRequest(t *testing.T, handler http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ubhp/send", nil)
	req.RemoteAddr = ip + ":54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBurstThen429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPS: 1, Burst: 3}, zerolog.Nop())
	handler := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := doRequest(t, handler, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestRateLimitBucketsAreIndependentPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPS: 1, Burst: 1}, zerolog.Nop())
	handler := rl.Middleware(okHandler())

	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("first IP: status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first IP exhausted: status = %d, want 429", rec.Code)
	}
	if rec := doRequest(t, handler, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("second IP must have its own bucket: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitRefills(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPS: 20, Burst: 1}, zerolog.Nop())
	handler := rl.Middleware(okHandler())

	doRequest(t, handler, "10.0.0.1")
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	// 20 rps refills one token within 50ms.
	time.Sleep(80 * time.Millisecond)

	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("after refill: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitWhitelist(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RPS:       1,
		Burst:     1,
		Whitelist: []string{"10.0.0.9", "192.168.0.0/16"},
	}, zerolog.Nop())
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		if rec := doRequest(t, handler, "10.0.0.9"); rec.Code != http.StatusOK {
			t.Fatalf("whitelisted IP request %d: status = %d, want 200", i+1, rec.Code)
		}
		if rec := doRequest(t, handler, "192.168.4.7"); rec.Code != http.StatusOK {
			t.Fatalf("whitelisted CIDR request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "10.0.0.1:1234", nil, "10.0.0.1"},
		{"x-forwarded-for", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"x-forwarded-for chain", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "203.0.113.7"},
		{"x-real-ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "203.0.113.8"}, "203.0.113.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := RealIP(req); got != tt.want {
				t.Errorf("RealIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
