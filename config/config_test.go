package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lmoreno87/advmatch/core/model"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `http:
  addr: ":9090"
geo:
  metro_areas:
    lima-metro: ["lima", "callao"]
  hubs:
    hub-norte: ["trujillo", "chiclayo"]
waves:
  min_offers: 3
tiering:
  tiers:
    1:
      channel: "whatsapp"
      timeout_minutes: 5
evaluate:
  ranking: "coverage"
redis:
  enabled: true
  addr: "redis:6379"
notify:
  enabled: true
  broker: "tcp://broker:1883"
audit:
  backend: "sqlite"
  path: "audit.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"http.addr", cfg.HTTP.Addr, ":9090"},
		{"geo.metro", cfg.Geo.MetroAreas["lima-metro"][1], "callao"},
		{"geo.hub", cfg.Geo.Hubs["hub-norte"][0], "trujillo"},
		{"waves.min_offers", cfg.Waves.MinOffers, 3},
		{"tiering.tier1.channel", cfg.Tiering.Tiers[1].Channel, model.ChannelWhatsApp},
		{"tiering.tier1.timeout", cfg.Tiering.Tiers[1].Timeout(), 5 * time.Minute},
		{"tiering.tier3.default", cfg.Tiering.Tiers[3].Channel, model.ChannelPush},
		{"evaluate.ranking", cfg.Evaluate.Ranking, "coverage"},
		{"redis.addr", cfg.Redis.Addr, "redis:6379"},
		{"notify.broker", cfg.Notify.Broker, "tcp://broker:1883"},
		{"audit.backend", cfg.Audit.Backend, "sqlite"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
	if got := cfg.Scoring.Weights.Proximity; got != 0.40 {
		t.Errorf("default proximity weight: got %v", got)
	}
	if got := cfg.Evaluate.BudgetSeconds; got != 5 {
		t.Errorf("default eval budget: got %v", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `http:
  addr: ":8080"
`)
	t.Setenv("AM_HTTP__ADDR", ":7070")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("env override ignored: %s", cfg.HTTP.Addr)
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "http = {}")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadRejectsInvalidWeights(t *testing.T) {
	path := writeConfig(t, "config.yaml", `scoring:
  weights:
    proximity: 0.9
    activity: 0.9
    performance: 0.1
    trust: 0.1
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected weight validation error")
	}
}
