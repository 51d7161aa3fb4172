package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/lmoreno87/advmatch/core/model"
)

// weightTolerance is the accepted deviation of the weight sum from 1.0.
const weightTolerance = 1e-6

// Weights defines the relative importance of each sub-score. The four
// weights must sum to 1.0 within weightTolerance.
type Weights struct {
	Proximity   float64 `json:"proximity"`
	Activity    float64 `json:"activity"`
	Performance float64 `json:"performance"`
	Trust       float64 `json:"trust"`
}

// DefaultWeights returns the standard weight set.
func DefaultWeights() Weights {
	return Weights{Proximity: 0.40, Activity: 0.25, Performance: 0.20, Trust: 0.15}
}

// Validate rejects weight sets that do not sum to 1.0.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Proximity, w.Activity, w.Performance, w.Trust} {
		if v < 0 || v > 1 {
			return &model.ConfigurationError{Key: "scoring.weights", Reason: "each weight must be within [0, 1]"}
		}
	}
	sum := floats.Sum([]float64{w.Proximity, w.Activity, w.Performance, w.Trust})
	if math.Abs(sum-1.0) > weightTolerance {
		return &model.ConfigurationError{Key: "scoring.weights", Reason: "weights must sum to 1.0"}
	}
	return nil
}

// Config defines scoring parameters.
type Config struct {
	Weights Weights `json:"weights"`
}

// SetDefaults applies the default weight set when none is configured.
func (c *Config) SetDefaults() {
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
}

// Validate checks the configured weights.
func (c Config) Validate() error { return c.Weights.Validate() }
