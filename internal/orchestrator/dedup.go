package orchestrator

import (
	"sync"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// routeDedup suppresses repeated pickups of the same price discrepancy: the
// scanner rediscovers a route on every tick until the prices converge or the
// trade lands, and each discovery must be acted on at most once per TTL
// window. It is safe for concurrent use.
type routeDedup struct {
	seen map[string]time.Time // route key -> last acted on
	ttl  time.Duration
	mu   sync.Mutex
}

func newRouteDedup(ttl time.Duration) *routeDedup {
	return &routeDedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func routeKey(opp domain.Opportunity) string {
	return opp.Pair.String() + "|" + opp.Route.BuyVenue + "|" + opp.Route.SellVenue
}

// isDuplicate returns true if the opportunity's route was acted on within the
// TTL window. Otherwise the route is recorded and false is returned. Expired
// entries are pruned on the way through to bound memory.
func (d *routeDedup) isDuplicate(opp domain.Opportunity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}

	key := routeKey(opp)
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}
