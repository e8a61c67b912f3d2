package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

// MarkSeen records eventID for service and reports whether it had already
// been recorded.
func MarkSeen(ctx context.Context, rdb redis.Cmdable, service, eventID string) (bool, error) {
	ok, err := rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Deduper binds MarkSeen to a client so consumers can depend on an interface.
type Deduper struct{ RDB redis.Cmdable }

func (d *Deduper) MarkSeen(ctx context.Context, service, eventID string) (bool, error) {
	return MarkSeen(ctx, d.RDB, service, eventID)
}

// Forget undoes MarkSeen so a redelivered event is processed again.
func (d *Deduper) Forget(ctx context.Context, service, eventID string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
