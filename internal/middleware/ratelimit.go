package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore maps client keys to token buckets. Stale entries are swept on
// access so no background goroutine is needed.
type limiterStore struct {
	mu         sync.Mutex
	entries    map[string]*limiterEntry
	limit      rate.Limit
	burst      int
	staleAfter time.Duration
	lastSweep  time.Time
}

func newLimiterStore(limit rate.Limit, burst int, staleAfter time.Duration) *limiterStore {
	return &limiterStore{
		entries:    make(map[string]*limiterEntry),
		limit:      limit,
		burst:      burst,
		staleAfter: staleAfter,
		lastSweep:  time.Now(),
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastSweep) > s.staleAfter {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > s.staleAfter {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}

	if e, ok := s.entries[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	lim := rate.NewLimiter(s.limit, s.burst)
	s.entries[key] = &limiterEntry{limiter: lim, lastSeen: now}
	return lim
}

// RateLimit applies a per-client-IP token bucket. Preflight and /health are
// never limited.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	store := newLimiterStore(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst, 10*time.Minute)

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		if !store.get("ip:" + c.ClientIP()).Allow() {
			metrics.RecordRateLimitHit(c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "Too many requests"})
			return
		}
		c.Next()
	}
}
