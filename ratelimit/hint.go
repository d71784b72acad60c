package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-isogeo/core"
)

// Hint is the rate limit state advertised by one backend response.
type Hint struct {
	Limit      int
	Remaining  int
	ResetAt    *time.Time
	RetryAfter time.Duration
	Status     int
	ObservedAt time.Time

	hasLimit     bool
	hasRemaining bool
}

// Throttled reports whether the backend asked the caller to slow down.
func (h Hint) Throttled() bool {
	if h.Status == http.StatusTooManyRequests {
		return true
	}
	if h.Status >= http.StatusInternalServerError {
		return false
	}
	return h.hasRemaining && h.Remaining == 0
}

// Wait returns how long the caller should wait from now, zero when the
// response carried no delay.
func (h Hint) Wait(now time.Time) time.Duration {
	if h.RetryAfter > 0 {
		return h.RetryAfter
	}
	if h.ResetAt != nil && h.ResetAt.After(now) {
		return h.ResetAt.Sub(now)
	}
	return 0
}

// Parse reads the X-RateLimit-* and Retry-After headers of a response.
// It reports false when none are present.
func Parse(raw core.RawResponse, now time.Time) (Hint, bool) {
	hint := Hint{Status: raw.StatusCode, ObservedAt: now.UTC()}
	found := false

	if limit, ok := headerInt(raw.Headers, "X-RateLimit-Limit"); ok {
		hint.Limit, hint.hasLimit, found = limit, true, true
	}
	if remaining, ok := headerInt(raw.Headers, "X-RateLimit-Remaining"); ok {
		hint.Remaining, hint.hasRemaining, found = remaining, true, true
	}
	if resetAt, ok := headerResetAt(raw.Headers); ok {
		hint.ResetAt, found = &resetAt, true
	}
	if retryAfter, ok := retryAfter(raw.Headers, now); ok {
		hint.RetryAfter, found = retryAfter, true
	}
	return hint, found
}

func retryAfter(headers http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(headers.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := http.ParseTime(value); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func headerInt(headers http.Header, key string) (int, bool) {
	value := strings.TrimSpace(headers.Get(key))
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func headerResetAt(headers http.Header) (time.Time, bool) {
	value := strings.TrimSpace(headers.Get("X-RateLimit-Reset"))
	if value == "" {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

// Tracker keeps the latest hint seen by a client. It only observes; callers
// decide whether to slow down.
type Tracker struct {
	mu     sync.RWMutex
	last   Hint
	seen   bool
	logger core.Logger
	now    func() time.Time
}

func NewTracker(logger core.Logger, now func() time.Time) *Tracker {
	if logger == nil {
		logger = core.NopLogger()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Tracker{logger: logger, now: now}
}

func (t *Tracker) Observe(raw core.RawResponse) {
	if t == nil {
		return
	}
	now := t.now()
	hint, ok := Parse(raw, now)
	if !ok {
		return
	}
	t.mu.Lock()
	t.last, t.seen = hint, true
	t.mu.Unlock()
	if hint.Throttled() {
		t.logger.Warn("api rate limit reached",
			"url", raw.URL,
			"status", raw.StatusCode,
			"remaining", hint.Remaining,
			"wait", hint.Wait(now).String(),
		)
	}
}

// Last returns the most recent hint, false when no response carried one.
func (t *Tracker) Last() (Hint, bool) {
	if t == nil {
		return Hint{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.seen
}

func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.last, t.seen = Hint{}, false
	t.mu.Unlock()
}
