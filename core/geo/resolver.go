package geo

import (
	"time"

	"github.com/lmoreno87/advmatch/core/logger"
	"github.com/lmoreno87/advmatch/core/model"
)

// membership is the cached grouping lookup for one location.
type membership struct {
	metro    string
	hasMetro bool
	hub      string
	hasHub   bool
}

// Resolver maps location pairs to proximity scores using the metro-area and
// logistics-hub tables. Lookups are cached per location with a short TTL
// since the underlying grouping data changes rarely.
type Resolver struct {
	groups Groups
	cache  *ttlCache[membership]
	log    logger.Logger
}

// NewResolver creates a resolver over the given group tables. cacheTTL <= 0
// disables caching.
func NewResolver(groups Groups, cacheTTL time.Duration, log logger.Logger) *Resolver {
	r := &Resolver{groups: groups, log: log}
	if cacheTTL > 0 {
		r.cache = newTTLCache[membership](cacheTTL)
	}
	return r
}

func (r *Resolver) lookup(loc model.Location) membership {
	key := loc.Key()
	if r.cache != nil {
		if m, ok := r.cache.get(key); ok {
			return m
		}
	}
	var m membership
	m.metro, m.hasMetro = r.groups.MetroArea(key)
	m.hub, m.hasHub = r.groups.Hub(key)
	if r.cache != nil {
		r.cache.set(key, m)
	}
	return m
}

// Proximity resolves the proximity score between a request location and an
// advisor location. The first matching rule wins:
//
//  1. same city                      -> 5.0
//  2. same metro area and same hub   -> 4.0
//  3. same hub                       -> 3.5
//  4. anything else                  -> 3.0
//
// Locations absent from both tables score 3.0 and the gap is logged for data
// quality review.
func (r *Resolver) Proximity(reqLoc, advLoc model.Location) float64 {
	if reqLoc.Equal(advLoc) {
		return ProximitySameCity
	}
	req := r.lookup(reqLoc)
	adv := r.lookup(advLoc)

	sameHub := req.hasHub && adv.hasHub && req.hub == adv.hub
	if sameHub && req.hasMetro && adv.hasMetro && req.metro == adv.metro {
		return ProximitySameMetro
	}
	if sameHub {
		return ProximitySameHub
	}
	if !adv.hasMetro && !adv.hasHub && r.log != nil {
		r.log.Warnf("location %q missing from metro and hub tables, using default proximity", advLoc.City)
	}
	return ProximityDefault
}

// InAnyMetro reports whether the location belongs to any metro-area group.
func (r *Resolver) InAnyMetro(loc model.Location) bool {
	return r.lookup(loc).hasMetro
}

// SameHub reports whether both locations share a logistics-hub group.
func (r *Resolver) SameHub(a, b model.Location) bool {
	ma, mb := r.lookup(a), r.lookup(b)
	return ma.hasHub && mb.hasHub && ma.hub == mb.hub
}
