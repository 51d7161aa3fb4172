package scoring

import (
	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/logger"
	"github.com/lmoreno87/advmatch/core/model"
)

// defaultTrust substitutes for advisors with no rating history.
const defaultTrust = 3.0

// Breakdown holds the four normalized sub-scores and the weighted total for
// one (request, advisor) pair. Every value is within [1.0, 5.0].
type Breakdown struct {
	Proximity   float64 `json:"proximity"`
	Activity    float64 `json:"activity"`
	Performance float64 `json:"performance"`
	Trust       float64 `json:"trust"`
	Total       float64 `json:"total"`
}

// Scorer computes advisor scores against requests using an immutable weight
// snapshot. Swap the snapshot between requests, never mid-computation.
type Scorer struct {
	resolver *geo.Resolver
	weights  Weights
	log      logger.Logger
}

// NewScorer creates a scorer. The weights are assumed validated at
// configuration load.
func NewScorer(resolver *geo.Resolver, weights Weights, log logger.Logger) *Scorer {
	return &Scorer{resolver: resolver, weights: weights, log: log}
}

// clamp bounds a score to [1.0, 5.0]. Upstream data can be malformed, so
// every sub-score and the total pass through here.
func clamp(v float64) float64 {
	if v < 1.0 {
		return 1.0
	}
	if v > 5.0 {
		return 5.0
	}
	return v
}

// percentTo5 maps a percentage in [0, 100] onto the [1.0, 5.0] scale. A
// missing history (zero percent) maps to the floor.
func percentTo5(pct float64) float64 {
	return clamp(1.0 + 4.0*(pct/100.0))
}

// Score computes the sub-scores and the weighted total for the advisor
// against the request.
func (s *Scorer) Score(req model.Request, adv model.Advisor) Breakdown {
	b := Breakdown{
		Proximity:   clamp(s.resolver.Proximity(req.Location, adv.Location)),
		Activity:    percentTo5(adv.ActivityPct),
		Performance: percentTo5(adv.PerformancePct),
	}
	if adv.Trust == 0 {
		if s.log != nil {
			s.log.Debugf("advisor %s has no trust rating, using default %.1f", adv.ID, defaultTrust)
		}
		b.Trust = defaultTrust
	} else {
		b.Trust = clamp(adv.Trust)
	}
	w := s.weights
	b.Total = clamp(b.Proximity*w.Proximity + b.Activity*w.Activity + b.Performance*w.Performance + b.Trust*w.Trust)
	return b
}
