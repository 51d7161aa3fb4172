package evaluate

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/lmoreno87/advmatch/core/model"
)

const weightTolerance = 1e-6

// Ranking orders for line-item candidates. The relative priority of score
// and coverage is configurable because business intent differs between
// deployments; the cascade minimum applies either way.
const (
	RankScoreFirst    = "score"
	RankCoverageFirst = "coverage"
)

// Weights defines the relative importance of the three line-entry scores.
type Weights struct {
	Price    float64 `json:"price"`
	Time     float64 `json:"time"`
	Warranty float64 `json:"warranty"`
}

// DefaultWeights returns the standard evaluation weight set.
func DefaultWeights() Weights {
	return Weights{Price: 0.50, Time: 0.35, Warranty: 0.15}
}

// Validate rejects weight sets that do not sum to 1.0.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Price, w.Time, w.Warranty} {
		if v < 0 || v > 1 {
			return &model.ConfigurationError{Key: "evaluate.weights", Reason: "each weight must be within [0, 1]"}
		}
	}
	sum := floats.Sum([]float64{w.Price, w.Time, w.Warranty})
	if math.Abs(sum-1.0) > weightTolerance {
		return &model.ConfigurationError{Key: "evaluate.weights", Reason: "weights must sum to 1.0"}
	}
	return nil
}

// Config defines evaluation parameters.
type Config struct {
	Weights Weights `json:"weights"`
	// MinCoveragePct is the minimum offer coverage, in percent, required to
	// win a line item through the cascade.
	MinCoveragePct float64 `json:"min_coverage_pct"`
	// Ranking selects the candidate ordering: "score" (line total first,
	// coverage as tie-break) or "coverage" (coverage first).
	Ranking string `json:"ranking"`
	// BudgetSeconds is the hard wall-clock budget for one evaluation run.
	BudgetSeconds int `json:"budget_seconds"`
}

// SetDefaults applies the standard evaluation parameters.
func (c *Config) SetDefaults() {
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
	if c.MinCoveragePct == 0 {
		c.MinCoveragePct = 50
	}
	if c.Ranking == "" {
		c.Ranking = RankScoreFirst
	}
	if c.BudgetSeconds == 0 {
		c.BudgetSeconds = 5
	}
}

// Validate checks the evaluation parameters.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.MinCoveragePct < 0 || c.MinCoveragePct > 100 {
		return &model.ConfigurationError{Key: "evaluate.min_coverage_pct", Reason: "must be within [0, 100]"}
	}
	if c.Ranking != RankScoreFirst && c.Ranking != RankCoverageFirst {
		return &model.ConfigurationError{Key: "evaluate.ranking", Reason: "must be \"score\" or \"coverage\""}
	}
	if c.BudgetSeconds <= 0 {
		return &model.ConfigurationError{Key: "evaluate.budget_seconds", Reason: "must be positive"}
	}
	return nil
}
