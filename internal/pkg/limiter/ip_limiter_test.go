package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestMiddlewareLimitsPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 2)
	defer l.Stop()

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1:1000"); code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := do("10.0.0.1:1001"); code != http.StatusTooManyRequests {
		t.Errorf("third request from the same IP: status %d", code)
	}
	if code := do("10.0.0.2:1000"); code != http.StatusNoContent {
		t.Errorf("other IP was limited: status %d", code)
	}

	l.Stop()
}

func TestClientIP(t *testing.T) {
	cases := map[string]string{
		"192.168.1.7:5555": "192.168.1.7",
		"[::1]:80":         "::1",
		"10.1.1.1":         "10.1.1.1",
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if got := ClientIP(req); got != want {
			t.Errorf("ClientIP(%q) = %q, want %q", remote, got, want)
		}
	}
}
