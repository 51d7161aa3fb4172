package tiering

import (
	"context"
	"testing"

	"github.com/lmoreno87/advmatch/core/audit"
	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/model"
	"github.com/lmoreno87/advmatch/core/scoring"
)

type memAudit struct {
	records []audit.Record
}

func (m *memAudit) Append(_ context.Context, rec audit.Record) error {
	m.records = append(m.records, rec)
	return nil
}
func (m *memAudit) Query(context.Context, audit.Query) ([]audit.Record, error) { return m.records, nil }
func (m *memAudit) Close() error                                               { return nil }

func testService(store audit.Store) *Service {
	groups := geo.NewStaticGroups(
		map[string][]string{"lima-metro": {"lima", "callao"}},
		map[string][]string{"hub-centro": {"lima", "callao", "huacho"}},
	)
	resolver := geo.NewResolver(groups, 0, nil)
	scorer := scoring.NewScorer(resolver, scoring.DefaultWeights(), nil)
	cfg := Config{}
	cfg.SetDefaults()
	return NewService(resolver, scorer, cfg, store, nil)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	bad := cfg
	bad.Thresholds = []float64{4.5, 4.5, 3.5, 3.0}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected non-decreasing thresholds to be rejected")
	}

	bad = cfg
	bad.Thresholds = []float64{4.5, 4.0, 3.5}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected short threshold list to be rejected")
	}

	bad = Config{Thresholds: []float64{4.5, 4.0, 3.5, 3.0}, Tiers: map[int]TierSettings{
		1: {Channel: model.ChannelWhatsApp, TimeoutMinutes: 15},
		2: {Channel: model.ChannelWhatsApp, TimeoutMinutes: 0},
		3: {Channel: model.ChannelPush, TimeoutMinutes: 25},
		4: {Channel: model.ChannelPush, TimeoutMinutes: 30},
	}}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected zero timeout to be rejected")
	}
}

func TestConfig_TierPartition(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	cases := []struct {
		total float64
		tier  int
	}{
		{5.0, 1}, {4.5, 1}, {4.49, 2}, {4.0, 2}, {3.99, 3},
		{3.5, 3}, {3.49, 4}, {3.0, 4}, {2.99, 5}, {1.0, 5},
	}
	for _, tc := range cases {
		if got := cfg.Tier(tc.total); got != tc.tier {
			t.Errorf("total %v: expected tier %d got %d", tc.total, tc.tier, got)
		}
	}
	// Every representable total maps to exactly one tier.
	for total := 1.0; total <= 5.0; total += 0.01 {
		tier := cfg.Tier(total)
		if tier < 1 || tier > ReserveTier {
			t.Fatalf("total %v mapped outside tier range: %d", total, tier)
		}
	}
}

func TestDetermineEligible(t *testing.T) {
	svc := testService(audit.NopStore{})
	req := model.Request{ID: "r1", Location: model.NewLocation("lima", "")}
	advisors := []model.Advisor{
		{ID: "same-city", State: model.AdvisorActive, Location: model.NewLocation("lima", "")},
		{ID: "other-metro", State: model.AdvisorActive, Location: model.NewLocation("callao", "")},
		{ID: "same-hub", State: model.AdvisorActive, Location: model.NewLocation("huacho", "")},
		{ID: "nowhere", State: model.AdvisorActive, Location: model.NewLocation("iquitos", "")},
		{ID: "suspended", State: model.AdvisorSuspended, Location: model.NewLocation("lima", "")},
		{ID: "inactive", State: model.AdvisorInactive, Location: model.NewLocation("callao", "")},
	}
	eligible := svc.DetermineEligible(req, advisors)
	want := map[string]bool{"same-city": true, "other-metro": true, "same-hub": true}
	if len(eligible) != len(want) {
		t.Fatalf("expected %d eligible got %d: %#v", len(want), len(eligible), eligible)
	}
	for _, adv := range eligible {
		if !want[adv.ID] {
			t.Errorf("unexpected eligible advisor %s", adv.ID)
		}
	}
}

func TestClassify_PersistsAuditBeforeReturning(t *testing.T) {
	store := &memAudit{}
	svc := testService(store)
	req := model.Request{ID: "r1", Location: model.NewLocation("lima", "")}
	advisors := []model.Advisor{
		{ID: "top", State: model.AdvisorActive, Location: model.NewLocation("lima", ""), Trust: 5, ActivityPct: 100, PerformancePct: 100},
		{ID: "low", State: model.AdvisorActive, Location: model.NewLocation("huacho", "")},
	}
	tiers, err := svc.Classify(context.Background(), req, advisors)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(store.records) != 1 || store.records[0].Kind != audit.KindTiering {
		t.Fatalf("expected one tiering audit record got %#v", store.records)
	}
	if len(store.records[0].Scores) != 2 {
		t.Fatalf("expected 2 score lines got %d", len(store.records[0].Scores))
	}

	if len(tiers[1]) != 1 || tiers[1][0].Advisor.ID != "top" {
		t.Fatalf("expected advisor top in tier 1, got %#v", tiers)
	}
	rec := tiers[1][0]
	if rec.Channel != model.ChannelWhatsApp || rec.Timeout.Minutes() != 15 {
		t.Fatalf("tier 1 settings not applied: %#v", rec)
	}
	// Advisor with floor sub-scores lands in the reserve tier with no
	// channel or timeout.
	found := false
	for _, r := range tiers[ReserveTier] {
		if r.Advisor.ID == "low" {
			found = true
			if r.Channel != "" || r.Timeout != 0 {
				t.Fatalf("reserve tier must carry no notification settings: %#v", r)
			}
		}
	}
	if !found {
		t.Fatalf("expected advisor low in reserve tier, got %#v", tiers)
	}
}
