package backoff

import (
	"testing"
	"time"
)

func TestExponentialBackoffDoublesUpToMax(t *testing.T) {
	b := NewExponentialBackoff(1*time.Second, 5*time.Second)

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("step %d: got %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if got := b.Next(); got != 1*time.Second {
		t.Errorf("after reset: got %v, want 1s", got)
	}
}

func TestExponentialBackoffMaxBelowBase(t *testing.T) {
	b := NewExponentialBackoff(3*time.Second, time.Second)
	if got := b.Next(); got != 3*time.Second {
		t.Fatalf("got %v, want 3s", got)
	}
	if got := b.Next(); got != 3*time.Second {
		t.Errorf("got %v, want 3s", got)
	}
}
