package tiering

import (
	"fmt"
	"time"

	"github.com/lmoreno87/advmatch/core/model"
)

// Tier numbering. Tiers 1 through 4 are actively notified in escalating
// waves; ReserveTier collects everyone below the last threshold and is never
// notified.
const (
	FirstTier   = 1
	LastWaveTier = 4
	ReserveTier = 5
)

// TierSettings maps one notified tier to its channel and wait timeout.
type TierSettings struct {
	Channel        model.NotificationChannel `json:"channel"`
	TimeoutMinutes int                       `json:"timeout_minutes"`
}

// Timeout returns the tier wait window as a duration.
func (t TierSettings) Timeout() time.Duration {
	return time.Duration(t.TimeoutMinutes) * time.Minute
}

// Config defines the tier thresholds and per-tier settings.
type Config struct {
	// Thresholds are the strictly-decreasing score cutoffs T1..T4. A total
	// below the last threshold lands in the reserve tier.
	Thresholds []float64 `json:"thresholds"`
	// Tiers holds settings for tiers 1..4.
	Tiers map[int]TierSettings `json:"tiers"`
}

// SetDefaults applies the standard thresholds, channels and timeouts.
func (c *Config) SetDefaults() {
	if len(c.Thresholds) == 0 {
		c.Thresholds = []float64{4.5, 4.0, 3.5, 3.0}
	}
	defaults := map[int]TierSettings{
		1: {Channel: model.ChannelWhatsApp, TimeoutMinutes: 15},
		2: {Channel: model.ChannelWhatsApp, TimeoutMinutes: 20},
		3: {Channel: model.ChannelPush, TimeoutMinutes: 25},
		4: {Channel: model.ChannelPush, TimeoutMinutes: 30},
	}
	if c.Tiers == nil {
		c.Tiers = make(map[int]TierSettings, len(defaults))
	}
	for tier, ts := range defaults {
		if _, ok := c.Tiers[tier]; !ok {
			c.Tiers[tier] = ts
		}
	}
}

// Validate rejects thresholds that are not strictly decreasing and tiers
// with missing or non-positive settings.
func (c Config) Validate() error {
	if len(c.Thresholds) != LastWaveTier {
		return &model.ConfigurationError{
			Key:    "tiering.thresholds",
			Reason: fmt.Sprintf("exactly %d thresholds are required", LastWaveTier),
		}
	}
	for i := 1; i < len(c.Thresholds); i++ {
		if c.Thresholds[i] >= c.Thresholds[i-1] {
			return &model.ConfigurationError{Key: "tiering.thresholds", Reason: "thresholds must be strictly decreasing"}
		}
	}
	for tier := FirstTier; tier <= LastWaveTier; tier++ {
		ts, ok := c.Tiers[tier]
		if !ok {
			return &model.ConfigurationError{
				Key:    "tiering.tiers",
				Reason: fmt.Sprintf("settings for tier %d are missing", tier),
			}
		}
		if ts.TimeoutMinutes <= 0 {
			return &model.ConfigurationError{
				Key:    "tiering.tiers",
				Reason: fmt.Sprintf("tier %d timeout must be positive", tier),
			}
		}
		switch ts.Channel {
		case model.ChannelWhatsApp, model.ChannelPush:
		default:
			return &model.ConfigurationError{
				Key:    "tiering.tiers",
				Reason: fmt.Sprintf("tier %d has unknown channel %q", tier, ts.Channel),
			}
		}
	}
	return nil
}

// Tier maps a total score onto its tier. Thresholds partition the score
// space without gaps or overlaps, so every total maps to exactly one tier.
func (c Config) Tier(total float64) int {
	for i, threshold := range c.Thresholds {
		if total >= threshold {
			return i + 1
		}
	}
	return ReserveTier
}
