package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 3 * time.Minute

// UserRateLimiter hands out one token bucket per user.
type UserRateLimiter struct {
	mu      sync.Mutex
	users   map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	nowFunc func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows perMinute events per user with the given burst.
// A non-positive perMinute disables limiting.
func NewUserRateLimiter(perMinute float64, burst int) *UserRateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60.0)
	}
	if burst <= 0 {
		burst = 1
	}
	return &UserRateLimiter{
		users:   make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether userID may proceed now.
func (l *UserRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	entry, ok := l.users[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Prune forgets users idle for longer than limiterIdleTTL.
func (l *UserRateLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.nowFunc().Add(-limiterIdleTTL)
	removed := 0
	for id, entry := range l.users {
		if entry.lastSeen.Before(cutoff) {
			delete(l.users, id)
			removed++
		}
	}
	return removed
}

// Run prunes idle entries every minute until ctx is cancelled.
func (l *UserRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

// Middleware rejects requests over the per-user rate with 429.
func (l *UserRateLimiter) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := requestUserID(r)
			if userID != "" && !l.Allow(userID) {
				if logger != nil {
					logger.Warn("rate limit exceeded",
						slog.String("userId", userID),
						slog.String("path", r.URL.Path),
					)
				}
				w.Header().Set("Retry-After", "60")
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
