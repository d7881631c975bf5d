package api

import (
	"sync"
	"time"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

// rateLimiter enforces per-client-IP hourly and daily caps on research
// requests. Hits older than 24 hours are pruned on each check.
type rateLimiter struct {
	mu      sync.Mutex
	perHour int
	perDay  int
	hits    map[string][]time.Time
	now     func() time.Time
}

func newRateLimiter(perHour, perDay int) *rateLimiter {
	return &rateLimiter{
		perHour: perHour,
		perDay:  perDay,
		hits:    make(map[string][]time.Time),
		now:     time.Now,
	}
}

// check records one hit for ip, or returns RateLimitedError when either
// window is already full.
func (r *rateLimiter) check(ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	kept := r.hits[ip][:0]
	hourHits := 0
	for _, t := range r.hits[ip] {
		if now.Sub(t) >= 24*time.Hour {
			continue
		}
		kept = append(kept, t)
		if now.Sub(t) < time.Hour {
			hourHits++
		}
	}
	r.hits[ip] = kept

	if hourHits >= r.perHour {
		return &model.RateLimitedError{Detail: "Rate limit exceeded. Try again in an hour."}
	}
	if len(kept) >= r.perDay {
		return &model.RateLimitedError{Detail: "Daily limit reached. Try again tomorrow."}
	}
	r.hits[ip] = append(kept, now)
	return nil
}
