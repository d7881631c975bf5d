package research

import (
	"errors"
	"testing"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

func TestFreeQuotaTakeAndReturn(t *testing.T) {
	q := NewFreeQuota(2)

	if err := q.Take(); err != nil {
		t.Fatalf("first take: %v", err)
	}
	if err := q.Take(); err != nil {
		t.Fatalf("second take: %v", err)
	}

	err := q.Take()
	var rerr *model.RateLimitedError
	if !errors.As(err, &rerr) {
		t.Fatalf("want RateLimitedError, got %v", err)
	}

	q.Return()
	if err := q.Take(); err != nil {
		t.Errorf("take after return: %v", err)
	}
}

func TestFreeQuotaUnlimitedWhenZero(t *testing.T) {
	q := NewFreeQuota(0)
	for i := 0; i < 100; i++ {
		if err := q.Take(); err != nil {
			t.Fatalf("take %d: %v", i, err)
		}
	}
	if got := q.Remaining(); got != -1 {
		t.Errorf("remaining = %d, want -1 (unlimited)", got)
	}
}

func TestFreeQuotaRemaining(t *testing.T) {
	q := NewFreeQuota(3)
	q.Take()
	if got := q.Remaining(); got != 2 {
		t.Errorf("remaining = %d, want 2", got)
	}
}
