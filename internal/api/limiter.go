package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TenantLimiter keeps one token bucket per tenant.
type TenantLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTenantLimiter allows rps requests per second with the given burst per
// tenant. A non-positive rps disables limiting.
func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	l := &TenantLimiter{visitors: make(map[string]*visitor)}
	l.limit, l.burst = toLimit(rps, burst)
	return l
}

func toLimit(rps float64, burst int) (rate.Limit, int) {
	if rps <= 0 {
		return rate.Inf, 0
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.Limit(rps), burst
}

// Allow reports whether the tenant may make a request now.
func (l *TenantLimiter) Allow(tenantID string) bool {
	l.mu.Lock()
	v, ok := l.visitors[tenantID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[tenantID] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

// SetLimit applies a new rate to every existing and future bucket.
func (l *TenantLimiter) SetLimit(rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limit, l.burst = toLimit(rps, burst)
	for _, v := range l.visitors {
		v.limiter.SetLimit(l.limit)
		v.limiter.SetBurst(l.burst)
	}
}

// Cleanup forgets tenants idle for longer than maxIdle.
func (l *TenantLimiter) Cleanup(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for id, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, id)
		}
	}
}
