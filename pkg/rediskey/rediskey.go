package rediskey

import "fmt"

// Key namespaces (global convention across services)
const (
	RateLimitPrefix = "ratelimit"
	OfferLockPrefix = "lock:offer"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildOfferLockKey returns "lock:offer:{offerID}" — the named lock that
// serializes cap check-then-insert for one offer.
func BuildOfferLockKey(offerID string) string {
	return NamespaceKey(OfferLockPrefix, offerID)
}

// BuildRateLimitBucketKey returns "ratelimit:{name}:{bucket}" where bucket is
// the unix timestamp of the bucket start.
func BuildRateLimitBucketKey(name string, bucket int64) string {
	return fmt.Sprintf("%s:%s:%d", RateLimitPrefix, name, bucket)
}

// BuildRegistrationLimitKey returns the limiter name for sign-ups of one app.
func BuildRegistrationLimitKey(appID string) string {
	return fmt.Sprintf("register:app:%s", appID)
}

// BuildOrderCreationLimitKey returns the limiter name for order creation of
// one user.
func BuildOrderCreationLimitKey(appID, userID string) string {
	return fmt.Sprintf("create_order:app:%s:user:%s", appID, userID)
}

// BuildEarnAppLimitKey returns the limiter name for earned amounts of one app.
func BuildEarnAppLimitKey(appID string) string {
	return fmt.Sprintf("earn:app:%s", appID)
}

// BuildEarnUserLimitKey returns the limiter name for earned amounts of one user.
func BuildEarnUserLimitKey(appID, userID string) string {
	return fmt.Sprintf("earn:app:%s:user:%s", appID, userID)
}
