package geo

import "github.com/lmoreno87/advmatch/core/model"

// Proximity scores returned by the resolver. No other values exist; unknown
// locations always fall through to ProximityDefault rather than erroring,
// since missing geographic metadata must never block matching.
const (
	ProximitySameCity  = 5.0
	ProximitySameMetro = 4.0
	ProximitySameHub   = 3.5
	ProximityDefault   = 3.0
)

// Groups answers membership questions against the metro-area and
// logistics-hub tables. Implementations are read-only; the resolver has no
// persistence concerns of its own.
type Groups interface {
	// MetroArea returns the metro-area group a location belongs to.
	MetroArea(location string) (string, bool)
	// Hub returns the logistics-hub group a location belongs to.
	Hub(location string) (string, bool)
}

// StaticGroups is an in-memory Groups implementation built from configured
// group membership lists.
type StaticGroups struct {
	metro map[string]string
	hub   map[string]string
}

// NewStaticGroups indexes group membership lists keyed by group name.
func NewStaticGroups(metroAreas, hubs map[string][]string) *StaticGroups {
	g := &StaticGroups{
		metro: make(map[string]string),
		hub:   make(map[string]string),
	}
	for name, locations := range metroAreas {
		for _, loc := range locations {
			g.metro[model.NormalizeLocation(loc)] = name
		}
	}
	for name, locations := range hubs {
		for _, loc := range locations {
			g.hub[model.NormalizeLocation(loc)] = name
		}
	}
	return g
}

// MetroArea implements Groups.
func (g *StaticGroups) MetroArea(location string) (string, bool) {
	name, ok := g.metro[model.NormalizeLocation(location)]
	return name, ok
}

// Hub implements Groups.
func (g *StaticGroups) Hub(location string) (string, bool) {
	name, ok := g.hub[model.NormalizeLocation(location)]
	return name, ok
}
