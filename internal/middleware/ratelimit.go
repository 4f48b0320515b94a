package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type window struct {
	used  int
	reset time.Time
}

// fixedWindow counts requests per caller key in windows of length per.
type fixedWindow struct {
	mu        sync.Mutex
	limit     int
	per       time.Duration
	windows   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

func newFixedWindow(limit int, per time.Duration) *fixedWindow {
	return &fixedWindow{
		limit:     limit,
		per:       per,
		windows:   make(map[string]*window),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// take reports whether key may proceed, and if not, how long until it may.
func (f *fixedWindow) take(key string) (bool, time.Duration) {
	now := f.now()
	f.mu.Lock()
	defer f.mu.Unlock()

	if now.Sub(f.lastSweep) > f.per {
		for k, w := range f.windows {
			if now.After(w.reset) {
				delete(f.windows, k)
			}
		}
		f.lastSweep = now
	}
	w, ok := f.windows[key]
	if !ok || now.After(w.reset) {
		w = &window{reset: now.Add(f.per)}
		f.windows[key] = w
	}
	if w.used >= f.limit {
		return false, w.reset.Sub(now)
	}
	w.used++
	return true, 0
}

// RateLimit allows limit requests per window for each caller. Authenticated
// callers are keyed by user id, anonymous ones by remote IP. A limit of zero
// or less disables the check.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	fw := newFixedWindow(limit, per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := fw.take(callerKey(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callerKey expects RemoteAddr to be rewritten by chi's RealIP middleware
// when the service runs behind a proxy.
func callerKey(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
