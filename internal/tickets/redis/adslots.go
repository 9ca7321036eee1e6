package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const slotKey = "advertised_slots"

// AdSlots tracks the system-wide advertised-ticket count in Redis so the
// cap is enforced atomically across concurrent admin actions: INCR first,
// then roll back when the result overshoots the cap. Two racing acquires
// can never both land under the cap.
type AdSlots struct {
	Client *redis.Client
	Cap    int64
}

func NewAdSlots(client *redis.Client, cap int64) *AdSlots {
	return &AdSlots{Client: client, Cap: cap}
}

// Acquire reserves one advertisement slot. Returns false when the cap is
// already reached.
func (a *AdSlots) Acquire(ctx context.Context) (bool, error) {
	n, err := a.Client.Incr(ctx, slotKey).Result()
	if err != nil {
		return false, err
	}
	if n > a.Cap {
		if err := a.Client.Decr(ctx, slotKey).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Release frees one slot. Never drops below zero.
func (a *AdSlots) Release(ctx context.Context) error {
	n, err := a.Client.Decr(ctx, slotKey).Result()
	if err != nil {
		return err
	}
	if n < 0 {
		return a.Client.Set(ctx, slotKey, 0, 0).Err()
	}
	return nil
}

// Sync seeds the counter from the durable store, called on startup so the
// Redis view matches the database after restarts.
func (a *AdSlots) Sync(ctx context.Context, count int) error {
	return a.Client.Set(ctx, slotKey, count, 0).Err()
}

// Count returns the current number of reserved slots.
func (a *AdSlots) Count(ctx context.Context) (int64, error) {
	n, err := a.Client.Get(ctx, slotKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
