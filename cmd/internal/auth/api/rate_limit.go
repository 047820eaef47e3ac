package authapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter map; idle entries are swept past it.
const maxTrackedClients = 10_000

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipLimiter hands out one token bucket per client key.
type ipLimiter struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	idleTTL time.Duration
	clients map[string]*clientLimiter
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	if !cfg.Enabled {
		return nil
	}
	// An idle bucket is full again after burst/rate; forgetting it then is lossless.
	idle := time.Duration(float64(cfg.Burst)/cfg.PerSecond*float64(time.Second)) + time.Minute
	return &ipLimiter{
		perSec:  rate.Limit(cfg.PerSecond),
		burst:   cfg.Burst,
		idleTTL: idle,
		clients: make(map[string]*clientLimiter),
	}
}

// allow consumes one token for key. When denied it reports how long until
// the next token is available.
func (l *ipLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.sweepLocked(now)
		}
		c = &clientLimiter{lim: rate.NewLimiter(l.perSec, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	if c.lim.AllowN(now, 1) {
		return true, 0
	}

	r := c.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

func (l *ipLimiter) sweepLocked(now time.Time) {
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, k)
		}
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	ms := retryAfter.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	writeJSON(w, http.StatusTooManyRequests, matrixError{
		ErrCode:      ErrCodeLimitExceeded,
		Error:        "Too many requests",
		RetryAfterMs: &ms,
	})
}
