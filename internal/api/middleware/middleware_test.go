package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tradecore/pkg/crypto"
	"tradecore/pkg/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminAuth(t *testing.T) {
	hash, err := crypto.HashToken("secret-token")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		header   string
		wantCode int
	}{
		{"valid token", hash, "Bearer secret-token", http.StatusOK},
		{"wrong token", hash, "Bearer wrong", http.StatusUnauthorized},
		{"missing header", hash, "", http.StatusUnauthorized},
		{"malformed header", hash, "secret-token", http.StatusUnauthorized},
		{"empty hash disables api", "", "Bearer secret-token", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AdminAuth(tt.hash)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/activity", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewKeyedLimiter(1, 2)
	handler := RateLimit(limiter)(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/u1", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Burst из двух запросов проходит, третий получает 429
	if code := send("10.0.0.1:1234"); code != http.StatusOK {
		t.Errorf("first request: %d", code)
	}
	if code := send("10.0.0.1:1234"); code != http.StatusOK {
		t.Errorf("second request: %d", code)
	}
	if code := send("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("third request: %d, want 429", code)
	}

	// Другой клиент не задет
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other client blocked: %d", code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/accounts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials header missing")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	handler := CORS(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow-origin for foreign origin: %q", got)
	}
}
