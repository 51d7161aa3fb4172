package scoring

import (
	"math"
	"testing"

	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/model"
)

func testResolver() *geo.Resolver {
	groups := geo.NewStaticGroups(
		map[string][]string{"metro": {"lima", "callao"}},
		map[string][]string{"hub": {"lima", "callao", "huacho"}},
	)
	return geo.NewResolver(groups, 0, nil)
}

func TestWeights_Validate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights rejected: %v", err)
	}
	bad := Weights{Proximity: 0.5, Activity: 0.5, Performance: 0.5, Trust: 0.5}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected weights summing to 2.0 to be rejected")
	}
	neg := Weights{Proximity: 1.2, Activity: -0.2, Performance: 0, Trust: 0}
	if err := neg.Validate(); err == nil {
		t.Fatal("expected negative weight to be rejected")
	}
	// Within tolerance of 1e-6 must pass.
	close := Weights{Proximity: 0.4, Activity: 0.25, Performance: 0.2, Trust: 0.15 + 5e-7}
	if err := close.Validate(); err != nil {
		t.Fatalf("weights within tolerance rejected: %v", err)
	}
}

func TestScore_DefaultWeights(t *testing.T) {
	s := NewScorer(testResolver(), DefaultWeights(), nil)
	req := model.Request{Location: model.NewLocation("lima", "")}
	adv := model.Advisor{
		ID:             "a1",
		Location:       model.NewLocation("lima", ""),
		Trust:          4.0,
		ActivityPct:    50,
		PerformancePct: 100,
	}
	b := s.Score(req, adv)
	if b.Proximity != 5.0 {
		t.Fatalf("expected same-city proximity 5.0 got %v", b.Proximity)
	}
	if b.Activity != 3.0 {
		t.Fatalf("expected activity 3.0 got %v", b.Activity)
	}
	if b.Performance != 5.0 {
		t.Fatalf("expected performance 5.0 got %v", b.Performance)
	}
	want := 5.0*0.40 + 3.0*0.25 + 5.0*0.20 + 4.0*0.15
	if math.Abs(b.Total-want) > 1e-9 {
		t.Fatalf("expected total %v got %v", want, b.Total)
	}
}

func TestScore_MissingHistoryFallbacks(t *testing.T) {
	s := NewScorer(testResolver(), DefaultWeights(), nil)
	req := model.Request{Location: model.NewLocation("lima", "")}
	adv := model.Advisor{ID: "a1", Location: model.NewLocation("iquitos", "")}
	b := s.Score(req, adv)
	if b.Activity != 1.0 || b.Performance != 1.0 {
		t.Fatalf("expected floor sub-scores got activity=%v performance=%v", b.Activity, b.Performance)
	}
	if b.Trust != 3.0 {
		t.Fatalf("expected default trust 3.0 got %v", b.Trust)
	}
}

func TestScore_BoundsAlwaysHold(t *testing.T) {
	s := NewScorer(testResolver(), DefaultWeights(), nil)
	req := model.Request{Location: model.NewLocation("lima", "")}
	advisors := []model.Advisor{
		{ID: "malformed-high", Location: model.NewLocation("lima", ""), Trust: 99, ActivityPct: 500, PerformancePct: 300},
		{ID: "malformed-low", Location: model.NewLocation("lima", ""), Trust: -4, ActivityPct: -50, PerformancePct: -10},
		{ID: "empty", Location: model.Location{}},
	}
	for _, adv := range advisors {
		b := s.Score(req, adv)
		for name, v := range map[string]float64{
			"proximity":   b.Proximity,
			"activity":    b.Activity,
			"performance": b.Performance,
			"trust":       b.Trust,
			"total":       b.Total,
		} {
			if v < 1.0 || v > 5.0 {
				t.Errorf("advisor %s: %s out of bounds: %v", adv.ID, name, v)
			}
		}
	}
}
