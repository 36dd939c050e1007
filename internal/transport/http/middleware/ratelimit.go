package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"paycore/internal/requestctx"
	"paycore/internal/transport/http/api"
)

// OrganizationHeader names the organization a caller computes payroll for.
// Rate limits are counted per organization when a trusted proxy vouches for
// the header, and per client IP otherwise.
const OrganizationHeader = "X-Organization-ID"

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*windowLimiter)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *windowLimiter) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

// WithTrustedProxies lists the peers allowed to speak for the client through
// X-Forwarded-For and the organization header. Requests from any other peer
// are keyed on their own address.
func WithTrustedProxies(prefixes []netip.Prefix) RateLimitOption {
	return func(l *windowLimiter) {
		l.trusted = append(l.trusted, prefixes...)
	}
}

// RateLimit allows limit requests per key in each fixed window. A
// non-positive limit disables it.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newWindowLimiter(limit, window)
	for _, opt := range opts {
		opt(l)
	}
	return l.middleware(func(*http.Request) bool { return true })
}

// BulkRateLimit adds a tighter budget, a quarter of baseLimit, for the
// endpoints that compute many bulletins or render PDFs.
func BulkRateLimit(baseLimit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	limit := 0
	if baseLimit > 0 {
		limit = max(baseLimit/4, 1)
	}
	l := newWindowLimiter(limit, window)
	for _, opt := range opts {
		opt(l)
	}
	return l.middleware(isBulkRequest)
}

type window struct {
	count int
	reset time.Time
}

type windowLimiter struct {
	limit  int
	period time.Duration
	keyFn  RateLimitKeyFunc

	trusted []netip.Prefix

	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

func newWindowLimiter(limit int, period time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
	}
}

func (l *windowLimiter) middleware(applies func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if applies(r) && !l.admit(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// take counts one request for key and reports whether it fits the window.
func (l *windowLimiter) take(key string, now time.Time) (remaining int, resetIn time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for k, win := range l.windows {
			if now.After(win.reset) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.period)
	}

	win, found := l.windows[key]
	if !found || now.After(win.reset) {
		win = &window{reset: now.Add(l.period)}
		l.windows[key] = win
	}
	win.count++
	return max(l.limit-win.count, 0), win.reset.Sub(now), win.count <= l.limit
}

func (l *windowLimiter) admit(w http.ResponseWriter, r *http.Request) bool {
	var key string
	if l.keyFn != nil {
		key = l.keyFn(r)
	}
	if key == "" {
		key = l.clientKey(r)
	}
	remaining, resetIn, ok := l.take(key, time.Now())
	seconds := ceilSeconds(resetIn)

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(seconds))
	if ok {
		return true
	}

	h.Set("Retry-After", strconv.Itoa(max(seconds, 1)))
	requestctx.Logger(r.Context(), slog.Default()).Warn("rate limit exceeded",
		"key", key, "path", r.URL.Path, "limit", l.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// clientKey keys on the peer address. Behind a trusted proxy it prefers the
// organization header, then the nearest untrusted X-Forwarded-For hop.
func (l *windowLimiter) clientKey(r *http.Request) string {
	peer := remoteHost(r)
	if !l.isTrusted(peer) {
		return peer
	}
	if org := strings.TrimSpace(r.Header.Get(OrganizationHeader)); org != "" {
		return "org:" + org
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
	}
	return peer
}

func (l *windowLimiter) isTrusted(host string) bool {
	if len(l.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range l.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

func isBulkRequest(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1"), "/")
	switch path {
	case "/payroll/bulletins/batch", "/payroll/bulletins/pdf", "/payroll/runs":
		return true
	}
	return false
}
