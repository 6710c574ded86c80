package cooldown

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-bot/internal/persistence"
)

// redisTracker stores cooldown windows as SET NX keys with a TTL, so
// cooldowns survive restarts and are shared when the bot is ever run
// with more than one process.
type redisTracker struct {
	client *persistence.Redis
}

// NewRedisTracker creates the Redis-backed tracker.
func NewRedisTracker(client *persistence.Redis) Tracker {
	return &redisTracker{client: client}
}

func (r *redisTracker) Begin(ctx context.Context, userID int64, window time.Duration) (time.Duration, bool, error) {
	if window <= 0 {
		return 0, true, nil
	}
	key := persistence.CooldownKey(userID)
	set, err := r.client.Client.SetNX(ctx, key, "1", window).Result()
	if err != nil {
		return 0, false, err
	}
	if set {
		return 0, true, nil
	}
	ttl, err := r.client.Client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return ttl, false, nil
}
