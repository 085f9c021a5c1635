package constants

import "time"

// Redis key layout: ticketing:{module}:{operation}:{identifier}

const (
	CACHE_PREFIX = "ticketing"
)

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_SEMI_STATIC_QUICK = 1 * time.Minute // event pricing, read-only to the core
	TTL_REALTIME_SHORT    = 5 * time.Second // live capacity counts
)

// ================== EVENTS MODULE ==================

const (
	CACHE_KEY_EVENT_OFFERS       = CACHE_PREFIX + ":events:offers:uuid:"       // + event-id
	CACHE_KEY_EVENT_AVAILABILITY = CACHE_PREFIX + ":events:availability:uuid:" // + event-id
)

const (
	TTL_EVENT_OFFERS       = TTL_SEMI_STATIC_QUICK
	TTL_EVENT_AVAILABILITY = TTL_REALTIME_SHORT
)

// ================== SWEEPER ==================

const (
	LOCK_KEY_EXPIRY_SWEEPER = CACHE_PREFIX + ":sweeper:lock"
)

// ================== RATE LIMIT ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit:"
)

// ================== HELPER FUNCTIONS ==================

func BuildEventOffersKey(eventID string) string {
	return CACHE_KEY_EVENT_OFFERS + eventID
}

func BuildAvailabilityKey(eventID string) string {
	return CACHE_KEY_EVENT_AVAILABILITY + eventID
}
