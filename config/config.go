// Package config loads the engine configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lmoreno87/advmatch/core/evaluate"
	coremetrics "github.com/lmoreno87/advmatch/core/metrics"
	"github.com/lmoreno87/advmatch/core/scoring"
	"github.com/lmoreno87/advmatch/core/tiering"
	"github.com/lmoreno87/advmatch/core/waves"
	"github.com/lmoreno87/advmatch/infra/locks"
	"github.com/lmoreno87/advmatch/infra/notify"
)

type Config struct {
	HTTP     HTTPConfig         `json:"http"`
	Geo      GeoConfig          `json:"geo"`
	Scoring  scoring.Config     `json:"scoring"`
	Tiering  tiering.Config     `json:"tiering"`
	Waves    waves.Config       `json:"waves"`
	Evaluate evaluate.Config    `json:"evaluate"`
	Metrics  coremetrics.Config `json:"metrics"`
	Notify   notify.Config      `json:"notify"`
	Redis    locks.Config       `json:"redis"`
	Audit    AuditConfig        `json:"audit"`
}

// Load reads the file, applies AM_-prefixed environment overrides
// (AM_HTTP__ADDR=:9000 sets http.addr), fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("AM_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "am_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values in every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.Geo.SetDefaults()
	c.Scoring.SetDefaults()
	c.Tiering.SetDefaults()
	c.Waves.SetDefaults()
	c.Evaluate.SetDefaults()
	c.Notify.SetDefaults()
	c.Redis.SetDefaults()
	c.Audit.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if err := c.Tiering.Validate(); err != nil {
		return fmt.Errorf("tiering: %w", err)
	}
	if err := c.Waves.Validate(); err != nil {
		return fmt.Errorf("waves: %w", err)
	}
	if err := c.Evaluate.Validate(); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}

// HTTPConfig configures the intake API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `json:"shutdown_seconds"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 10
	}
}

// GeoConfig holds the geography tables and resolver cache settings.
type GeoConfig struct {
	// MetroAreas maps a metro-area name to its member locations.
	MetroAreas map[string][]string `json:"metro_areas"`
	// Hubs maps a logistics-hub name to its member locations.
	Hubs map[string][]string `json:"hubs"`
	// CacheTTLSeconds bounds the resolver's membership cache.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

func (c *GeoConfig) SetDefaults() {
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 300
	}
}

// AuditConfig selects the audit trail backend.
type AuditConfig struct {
	// Backend selects the store type: "jsonl", "sqlite" or "nop".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// APIToken protects the audit query endpoint when non-empty.
	APIToken string `json:"api_token"`
}

func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "audit.log"
	}
}

func (c AuditConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "nop":
	default:
		return fmt.Errorf("unknown audit backend %s", c.Backend)
	}
	if c.Backend != "nop" && c.Path == "" {
		return fmt.Errorf("audit path is required")
	}
	return nil
}
