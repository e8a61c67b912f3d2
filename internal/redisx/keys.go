package redisx

import "time"

const (
	// Idempotent order placement: idem:order:place:{user_id}:{key} -> order_id
	KeyIdemOrderPlace = "idem:order:place:%s:%s"

	// Order status cache: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// a reservation whose request died must not block retries for long
	TTLIdemPending = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
