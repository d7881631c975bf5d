package research

import (
	"sync"
	"time"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

// FreeQuota caps how many free-tier runs the server performs per UTC day.
// The counter resets lazily on the first Take of a new day.
type FreeQuota struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
}

func NewFreeQuota(limit int) *FreeQuota {
	return &FreeQuota{limit: limit, day: today()}
}

// Take consumes one unit of quota, or returns RateLimitedError when the
// day's allowance is spent. A limit of zero or less disables the cap.
func (q *FreeQuota) Take() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if d := today(); d != q.day {
		q.day = d
		q.used = 0
	}
	if q.limit > 0 && q.used >= q.limit {
		return &model.RateLimitedError{Detail: "Free tier daily quota exhausted. Try again tomorrow or use your own API key."}
	}
	q.used++
	return nil
}

// Return hands back a unit taken by a run that failed before producing a
// result, so provider errors don't burn quota.
func (q *FreeQuota) Return() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used > 0 {
		q.used--
	}
}

// Remaining reports how much quota is left today.
func (q *FreeQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if d := today(); d != q.day {
		return q.limit
	}
	if q.limit <= 0 {
		return -1
	}
	return q.limit - q.used
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
