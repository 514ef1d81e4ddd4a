package redisx

import "time"

const (
	// Phone-verified session token issued by the identity provider:
	// phonesess:{token} -> user_id
	KeyPhoneSession = "phonesess:%s"

	// Cache order status, scoped to the owner so one shopper's warm cache
	// never answers for another:
	// order_status:{owner}:{kind}:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPhoneSession = 24 * time.Hour
	TTLStatusCache  = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
