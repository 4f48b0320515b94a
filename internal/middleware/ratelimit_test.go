package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCallerKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		userID     string
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "198.51.100.10:1234", want: "ip:198.51.100.10"},
		{name: "ipv6 with port", remoteAddr: net.JoinHostPort("2001:db8::2", "443"), want: "ip:2001:db8::2"},
		{name: "address without port", remoteAddr: "203.0.113.1", want: "ip:203.0.113.1"},
		{name: "user wins over ip", remoteAddr: "198.51.100.10:1234", userID: testUserID, want: "user:" + testUserID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.userID != "" {
				req = req.WithContext(ContextWithUserID(req.Context(), tc.userID))
			}
			if got := callerKey(req); got != tc.want {
				t.Fatalf("callerKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFixedWindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fw := newFixedWindow(1, time.Minute)
	fw.now = func() time.Time { return now }

	if ok, _ := fw.take("ip:a"); !ok {
		t.Fatal("first request should pass")
	}
	ok, wait := fw.take("ip:a")
	if ok || wait != time.Minute {
		t.Fatalf("second request: ok=%v wait=%s", ok, wait)
	}

	now = now.Add(61 * time.Second)
	if ok, _ := fw.take("ip:a"); !ok {
		t.Fatal("request after the window should pass")
	}
	if len(fw.windows) != 1 {
		t.Fatalf("expected a single tracked window, got %d", len(fw.windows))
	}
}

func TestRateLimitPerCaller(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		if userID != "" {
			req = req.WithContext(ContextWithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call("198.51.100.10:1234", ""); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := call("198.51.100.10:1234", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if rec := call("198.51.100.10:1234", testUserID); rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated caller should have its own bucket, got %d", rec.Code)
	}
	if rec := call("198.51.100.11:1234", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("other ip should have its own bucket, got %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	handler := RateLimit(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}
