package portal

import (
	"time"

	"github.com/saiset-co/b2b-portal/cache"
)

// defaultTTLs are per key kind. portal.ttl in the config overrides them; a
// kind missing from both uses the store's default TTL.
var defaultTTLs = map[string]time.Duration{
	cache.KindUser:      5 * time.Minute,
	cache.KindUsers:     5 * time.Minute,
	cache.KindCompany:   10 * time.Minute,
	cache.KindOrders:    2 * time.Minute,
	cache.KindOrder:     2 * time.Minute,
	cache.KindAddresses: 10 * time.Minute,
	cache.KindCart:      30 * time.Second,
	cache.KindProducts:  5 * time.Minute,
	cache.KindInvoices:  2 * time.Minute,
	cache.KindQuotes:    2 * time.Minute,
	cache.KindCredit:    5 * time.Minute,
}

func resolveTTLs(overrides map[string]time.Duration) map[string]time.Duration {
	ttls := make(map[string]time.Duration, len(defaultTTLs)+len(overrides))
	for kind, ttl := range defaultTTLs {
		ttls[kind] = ttl
	}
	for kind, ttl := range overrides {
		ttls[kind] = ttl
	}
	return ttls
}
