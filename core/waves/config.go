package waves

import "github.com/lmoreno87/advmatch/core/model"

// Config defines wave scheduling parameters.
type Config struct {
	// MinOffers is the default number of SUBMITTED offers that triggers
	// the early exit into evaluation. Requests may override it.
	MinOffers int `json:"min_offers"`
}

// SetDefaults applies the standard minimum.
func (c *Config) SetDefaults() {
	if c.MinOffers == 0 {
		c.MinOffers = 2
	}
}

// Validate checks the wave parameters.
func (c Config) Validate() error {
	if c.MinOffers <= 0 {
		return &model.ConfigurationError{Key: "waves.min_offers", Reason: "must be positive"}
	}
	return nil
}
