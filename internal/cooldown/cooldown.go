// Package cooldown tracks the minimum wait between successive
// ticket-creation attempts per user.
package cooldown

import (
	"context"
	"sync"
	"time"
)

// Tracker answers whether a user may open a ticket right now and, when
// allowed, starts their cooldown window.
type Tracker interface {
	// Begin starts the window for the user when none is active. It
	// returns the remaining wait when one already is.
	Begin(ctx context.Context, userID int64, window time.Duration) (time.Duration, bool, error)
}

// memoryTracker keeps expiry times in a map. Fine for a single
// process; restarts forget cooldowns, which is acceptable for a
// human-paced guard.
type memoryTracker struct {
	mu      sync.Mutex
	expires map[int64]time.Time
	now     func() time.Time
}

// NewMemoryTracker creates the in-process tracker.
func NewMemoryTracker() Tracker {
	return &memoryTracker{
		expires: make(map[int64]time.Time),
		now:     time.Now,
	}
}

func (m *memoryTracker) Begin(ctx context.Context, userID int64, window time.Duration) (time.Duration, bool, error) {
	if window <= 0 {
		return 0, true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, ok := m.expires[userID]; ok && now.Before(until) {
		return until.Sub(now), false, nil
	}
	m.expires[userID] = now.Add(window)
	return 0, true, nil
}
