package api

import (
	"errors"
	"testing"
	"time"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

func TestRateLimiterHourlyWindow(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, 10)
	rl.now = func() time.Time { return now }

	if err := rl.check("1.2.3.4"); err != nil {
		t.Fatalf("first hit: %v", err)
	}
	if err := rl.check("1.2.3.4"); err != nil {
		t.Fatalf("second hit: %v", err)
	}
	err := rl.check("1.2.3.4")
	var rateErr *model.RateLimitedError
	if !errors.As(err, &rateErr) {
		t.Fatalf("third hit: want RateLimitedError, got %v", err)
	}
	if rateErr.Detail != "Rate limit exceeded. Try again in an hour." {
		t.Errorf("detail = %q", rateErr.Detail)
	}

	// A different client is unaffected.
	if err := rl.check("5.6.7.8"); err != nil {
		t.Errorf("other ip: %v", err)
	}

	// An hour later the window has rolled over.
	now = now.Add(time.Hour + time.Minute)
	if err := rl.check("1.2.3.4"); err != nil {
		t.Errorf("after hour: %v", err)
	}
}

func TestRateLimiterDailyWindow(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 3)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := rl.check("1.2.3.4"); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		now = now.Add(2 * time.Hour)
	}

	err := rl.check("1.2.3.4")
	var rateErr *model.RateLimitedError
	if !errors.As(err, &rateErr) {
		t.Fatalf("want RateLimitedError, got %v", err)
	}
	if rateErr.Detail != "Daily limit reached. Try again tomorrow." {
		t.Errorf("detail = %q", rateErr.Detail)
	}

	// Old hits age out after 24 hours.
	now = now.Add(24 * time.Hour)
	if err := rl.check("1.2.3.4"); err != nil {
		t.Errorf("after day: %v", err)
	}
}
