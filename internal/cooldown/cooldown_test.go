package cooldown

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTrackerBegin(t *testing.T) {
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tracker := &memoryTracker{
		expires: make(map[int64]time.Time),
		now:     func() time.Time { return current },
	}
	ctx := context.Background()

	remaining, ok, err := tracker.Begin(ctx, 42, 30*time.Second)
	if err != nil || !ok || remaining != 0 {
		t.Fatalf("first Begin = %v, %v, %v", remaining, ok, err)
	}

	current = current.Add(10 * time.Second)
	remaining, ok, err = tracker.Begin(ctx, 42, 30*time.Second)
	if err != nil || ok {
		t.Fatalf("Begin inside window should be denied: %v, %v", ok, err)
	}
	if remaining != 20*time.Second {
		t.Errorf("remaining = %v, want 20s", remaining)
	}

	// a different user is unaffected
	_, ok, err = tracker.Begin(ctx, 43, 30*time.Second)
	if err != nil || !ok {
		t.Errorf("other user blocked: %v, %v", ok, err)
	}

	current = current.Add(30 * time.Second)
	_, ok, err = tracker.Begin(ctx, 42, 30*time.Second)
	if err != nil || !ok {
		t.Errorf("Begin after expiry denied: %v, %v", ok, err)
	}
}

func TestMemoryTrackerZeroWindow(t *testing.T) {
	tracker := NewMemoryTracker()
	for i := 0; i < 3; i++ {
		_, ok, err := tracker.Begin(context.Background(), 1, 0)
		if err != nil || !ok {
			t.Fatalf("zero window must never block: %v, %v", ok, err)
		}
	}
}
