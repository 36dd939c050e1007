package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noContent() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRateLimitUsesOrganizationFromTrustedProxy(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	limited := RateLimit(1, time.Minute, WithTrustedProxies(proxies))(noContent())

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
	first.Header.Set(OrganizationHeader, "org-1")
	first.RemoteAddr = "10.0.0.5:2222"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
	second.Header.Set(OrganizationHeader, "org-1")
	second.RemoteAddr = "10.0.0.6:3333"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by organization key, got %d", secondRec.Code)
	}
}

func TestRateLimitIgnoresClientHeadersFromUntrustedPeer(t *testing.T) {
	limited := RateLimit(2, time.Minute)(noContent())

	codes := make([]int, 0, 3)
	for i, org := range []string{"org-1", "org-2", "org-3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
		req.Header.Set(OrganizationHeader, org)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.0.2.%d", i+1))
		req.RemoteAddr = fmt.Sprintf("198.51.100.11:%d", 2000+i)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimitForwardedForFromTrustedProxy(t *testing.T) {
	l := newWindowLimiter(1, time.Minute)
	WithTrustedProxies([]netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.1/32"),
	})(l)

	cases := []struct {
		name, remote, forwarded, want string
	}{
		{"untrusted peer", "203.0.113.9:1000", "192.0.2.1", "203.0.113.9"},
		{"single hop", "10.1.2.3:1000", "192.0.2.1", "192.0.2.1"},
		{"spoofed leftmost hop", "10.1.2.3:1000", "1.2.3.4, 192.0.2.1, 172.16.0.1", "192.0.2.1"},
		{"only trusted hops", "10.1.2.3:1000", "10.9.9.9", "10.1.2.3"},
		{"no header", "10.1.2.3:1000", "", "10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			assert.Equal(t, tc.want, l.clientKey(req))
		})
	}
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/income-tax", nil)
	first.RemoteAddr = "203.0.113.10:4444"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/income-tax", nil)
	second.RemoteAddr = "203.0.113.10:5555"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by ip key, got %d", secondRec.Code)
	}
}

func TestRateLimitWindowReset(t *testing.T) {
	limited := RateLimit(1, 40*time.Millisecond)(noContent())
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
		req.RemoteAddr = "192.0.2.20:1111"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", code)
	}
	time.Sleep(50 * time.Millisecond)
	if code := send(); code != http.StatusNoContent {
		t.Fatalf("expected third request after window reset to pass, got %d", code)
	}
}

func TestRateLimitReturnsRetryMetadata(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())

	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
	req1.RemoteAddr = "192.0.2.30:1234"
	limited.ServeHTTP(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
	req2.RemoteAddr = "192.0.2.30:1234"
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req2)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttled response, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("expected X-RateLimit-Reset header")
	}
}

func TestBulkRateLimitScope(t *testing.T) {
	limited := BulkRateLimit(4, time.Minute)(noContent())

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/bulletins", nil)
		req.RemoteAddr = "198.51.100.40:8888"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected single computation %d to bypass bulk limits, got %d", i+1, rec.Code)
		}
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/runs", nil)
		req.RemoteAddr = "198.51.100.41:9999"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if i == 0 && rec.Code != http.StatusNoContent {
			t.Fatalf("expected first bulk request to pass, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected second bulk request to be throttled, got %d", rec.Code)
		}
	}
}

func TestWindowLimiterSweepsExpiredWindows(t *testing.T) {
	l := newWindowLimiter(2, time.Second)
	start := time.Unix(1_700_000_000, 0)

	_, _, ok := l.take("a", start)
	require.True(t, ok)
	_, _, ok = l.take("b", start.Add(100*time.Millisecond))
	require.True(t, ok)

	remaining, resetIn, ok := l.take("c", start.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, time.Second, resetIn)
	assert.Len(t, l.windows, 1)
}

func TestRateLimitDisabled(t *testing.T) {
	limited := RateLimit(0, time.Minute)(noContent())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payroll/runs", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestCeilSeconds(t *testing.T) {
	assert.Equal(t, 0, ceilSeconds(0))
	assert.Equal(t, 1, ceilSeconds(10*time.Millisecond))
	assert.Equal(t, 60, ceilSeconds(time.Minute))
}
