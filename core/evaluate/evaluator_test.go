package evaluate

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/lmoreno87/advmatch/core/model"
)

func defaultEvaluator() *Evaluator {
	cfg := Config{}
	cfg.SetDefaults()
	return New(cfg, nil)
}

func request(items int) model.Request {
	req := model.Request{ID: "r1", Location: model.NewLocation("lima", "")}
	for i := 0; i < items; i++ {
		req.LineItems = append(req.LineItems, model.LineItem{ID: lineID(i), Code: "ITEM", Quantity: 1})
	}
	return req
}

func lineID(i int) string { return string(rune('a'+i)) + "-item" }

func entry(item int, price float64, days, warranty int) model.OfferLineEntry {
	return model.OfferLineEntry{
		LineItemID:     lineID(item),
		UnitPrice:      price,
		Quantity:       1,
		WarrantyMonths: warranty,
		DeliveryDays:   days,
	}
}

func offer(id string, submitted time.Time, entries ...model.OfferLineEntry) model.Offer {
	return model.Offer{
		ID:          id,
		RequestID:   "r1",
		AdvisorID:   "adv-" + id,
		Entries:     entries,
		State:       model.OfferSubmitted,
		SubmittedAt: submitted,
	}
}

func TestEvaluate_EmptyLineItemUnallocated(t *testing.T) {
	e := defaultEvaluator()
	req := request(2)
	offers := []model.Offer{offer("o1", time.Now(), entry(0, 100_000, 0, 6))}
	res, err := e.Evaluate(context.Background(), req, offers)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Allocations) != 1 {
		t.Fatalf("expected 1 allocation got %d", len(res.Allocations))
	}
	if res.Allocations[0].LineItemID != lineID(0) {
		t.Fatalf("wrong line item allocated: %#v", res.Allocations[0])
	}
}

func TestEvaluate_EntryScoring(t *testing.T) {
	e := defaultEvaluator()
	base := time.Now()
	req := request(1)
	offers := []model.Offer{
		// price within 5% of min, same-day, long warranty: 5*0.5+5*0.35+5*0.15 = 5.0
		offer("best", base, entry(0, 100_000, 0, 12)),
		// price 7% above min (3), 2 days (3), 2 months (3): 3.0
		offer("mid", base.Add(time.Minute), entry(0, 107_000, 2, 2)),
		// price 20% above min (1), 10 days (1), warranty 12 (5): 1*0.5+1*0.35+5*0.15 = 1.6
		offer("worst", base.Add(2*time.Minute), entry(0, 120_000, 10, 12)),
	}
	res, err := e.Evaluate(context.Background(), req, offers)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Allocations) != 1 {
		t.Fatalf("expected 1 allocation got %d", len(res.Allocations))
	}
	a := res.Allocations[0]
	if a.OfferID != "best" || a.Score != 5.0 {
		t.Fatalf("expected offer best with score 5.0, got %s score %v", a.OfferID, a.Score)
	}
	if !res.Winning["best"] || res.Winning["mid"] || res.Winning["worst"] {
		t.Fatalf("winning set wrong: %#v", res.Winning)
	}
}

func TestEvaluate_CoverageCascadeSkipsHigherScore(t *testing.T) {
	// Two offers on the same line item: 30%-coverage offer scores higher
	// but the 60%-coverage offer meets the minimum and wins.
	cfg := Config{}
	cfg.SetDefaults()
	e := New(cfg, nil)
	base := time.Now()
	req := request(10)

	lowCoverage := offer("low-cov", base,
		entry(0, 100_000, 0, 12), // strong entry, score 5.0
		entry(1, 100_000, 0, 12),
		entry(2, 100_000, 0, 12),
	) // coverage 30%
	highCoverage := offer("high-cov", base.Add(time.Minute),
		entry(0, 120_000, 10, 2), // weak entry
		entry(1, 100_000, 0, 12),
		entry(2, 100_000, 0, 12),
		entry(3, 100_000, 0, 12),
		entry(4, 100_000, 0, 12),
		entry(5, 100_000, 0, 12),
	) // coverage 60%

	res, err := e.Evaluate(context.Background(), req, []model.Offer{lowCoverage, highCoverage})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, a := range res.Allocations {
		if a.LineItemID == lineID(0) && a.OfferID != "high-cov" {
			t.Fatalf("cascade must skip sub-minimum coverage offer, item 0 went to %s", a.OfferID)
		}
	}
}

func TestEvaluate_SingleOfferException(t *testing.T) {
	// Request with 4 line items, one offer covering 1 of them (25%
	// coverage): that item is still allocated because no other offer
	// targets it.
	e := defaultEvaluator()
	req := request(4)
	sole := offer("sole", time.Now(), entry(2, 100_000, 1, 6))
	res, err := e.Evaluate(context.Background(), req, []model.Offer{sole})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Allocations) != 1 || res.Allocations[0].OfferID != "sole" {
		t.Fatalf("single-offer exception not applied: %#v", res.Allocations)
	}
	if res.Allocations[0].Coverage != 0.25 {
		t.Fatalf("expected coverage 0.25 got %v", res.Allocations[0].Coverage)
	}
}

func TestEvaluate_TwoLowCoverageOffersUnallocated(t *testing.T) {
	// With two candidates below the minimum the exception does not apply
	// and the line item stays unallocated.
	e := defaultEvaluator()
	base := time.Now()
	req := request(4)
	o1 := offer("o1", base, entry(0, 100_000, 0, 6))
	o2 := offer("o2", base.Add(time.Minute), entry(0, 101_000, 0, 6))
	res, err := e.Evaluate(context.Background(), req, []model.Offer{o1, o2})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Allocations) != 0 {
		t.Fatalf("expected no allocations got %#v", res.Allocations)
	}
}

func TestEvaluate_TieBreaks(t *testing.T) {
	e := defaultEvaluator()
	base := time.Now()
	req := request(2)
	// Identical entry scores on item 0; o-wide covers both items (100%),
	// o-narrow covers one (50%): coverage breaks the tie.
	wide := offer("o-wide", base.Add(time.Minute), entry(0, 100_000, 0, 12), entry(1, 100_000, 0, 12))
	narrow := offer("o-narrow", base, entry(0, 100_000, 0, 12))
	res, err := e.Evaluate(context.Background(), req, []model.Offer{narrow, wide})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, a := range res.Allocations {
		if a.LineItemID == lineID(0) && a.OfferID != "o-wide" {
			t.Fatalf("coverage tie-break failed, item 0 went to %s", a.OfferID)
		}
	}

	// Equal score and equal coverage: earliest submission wins.
	first := offer("z-first", base, entry(0, 100_000, 0, 12), entry(1, 100_000, 0, 12))
	second := offer("a-second", base.Add(time.Hour), entry(0, 100_000, 0, 12), entry(1, 100_000, 0, 12))
	res, err = e.Evaluate(context.Background(), req, []model.Offer{second, first})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, a := range res.Allocations {
		if a.OfferID != "z-first" {
			t.Fatalf("submission-time tie-break failed: %#v", a)
		}
	}
}

func TestEvaluate_CoverageFirstRanking(t *testing.T) {
	cfg := Config{Ranking: RankCoverageFirst}
	cfg.SetDefaults()
	cfg.MinCoveragePct = 0
	e := New(cfg, nil)
	base := time.Now()
	req := request(2)
	strongNarrow := offer("narrow", base, entry(0, 100_000, 0, 12))
	weakWide := offer("wide", base.Add(time.Minute), entry(0, 150_000, 10, 2), entry(1, 100_000, 0, 12))
	res, err := e.Evaluate(context.Background(), req, []model.Offer{strongNarrow, weakWide})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, a := range res.Allocations {
		if a.LineItemID == lineID(0) && a.OfferID != "wide" {
			t.Fatalf("coverage-first ranking ignored, item 0 went to %s", a.OfferID)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := defaultEvaluator()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	req := request(3)
	offers := []model.Offer{
		offer("o1", base, entry(0, 100_000, 0, 6), entry(1, 110_000, 2, 2)),
		offer("o2", base.Add(time.Minute), entry(0, 103_000, 1, 12), entry(2, 90_000, 0, 6)),
		offer("o3", base.Add(2*time.Minute), entry(1, 104_000, 0, 12), entry(2, 95_000, 5, 1)),
	}
	first, err := e.Evaluate(context.Background(), req, offers)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Evaluate(context.Background(), req, offers)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		stripAwardTime(first.Allocations)
		stripAwardTime(again.Allocations)
		if !reflect.DeepEqual(first.Allocations, again.Allocations) {
			t.Fatalf("allocations differ between runs:\n%#v\n%#v", first.Allocations, again.Allocations)
		}
	}
}

func stripAwardTime(allocs []model.Allocation) {
	for i := range allocs {
		allocs[i].AwardedAt = time.Time{}
	}
}

func TestEvaluate_CanceledContext(t *testing.T) {
	e := defaultEvaluator()
	req := request(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(ctx, req, []model.Offer{offer("o1", time.Now(), entry(0, 100_000, 0, 6))})
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}
