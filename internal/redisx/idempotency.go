package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const idemPending = "pending"

// ErrInFlight means another request with the same key has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Idempotency guards order placement retries. The database stays the source
// of truth; the key only maps a client retry onto the order it already made.
type Idempotency struct{ RDB redis.Cmdable }

// Reserve claims key for userID. When the key already resolved to an order,
// that order id is returned with reserved=false.
func (i *Idempotency) Reserve(ctx context.Context, userID, key string) (orderID string, reserved bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderPlace, userID, key)
	ok, err := i.RDB.SetNX(ctx, k, idemPending, TTLIdemPending).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return i.Reserve(ctx, userID, key)
	}
	if err != nil {
		return "", false, err
	}
	if v == idemPending {
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderPlace, userID, key), orderID, TTLIdempotency).Err()
}

// Release drops a reservation whose placement failed so the client can retry.
func (i *Idempotency) Release(ctx context.Context, userID, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemOrderPlace, userID, key)).Err()
}
