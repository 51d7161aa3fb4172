package waves

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lmoreno87/advmatch/core/advisors"
	"github.com/lmoreno87/advmatch/core/evaluate"
	"github.com/lmoreno87/advmatch/core/events"
	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/lock"
	"github.com/lmoreno87/advmatch/core/model"
	"github.com/lmoreno87/advmatch/core/offers"
	"github.com/lmoreno87/advmatch/core/scoring"
	"github.com/lmoreno87/advmatch/core/tiering"
	"github.com/lmoreno87/advmatch/internal/eventbus"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []WaveNotice
	fail    bool
}

func (n *recordingNotifier) NotifyWave(_ context.Context, notice WaveNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	if n.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (n *recordingNotifier) tiers() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var res []int
	for _, notice := range n.notices {
		res = append(res, notice.Tier)
	}
	return res
}

type fixture struct {
	store     *offers.Store
	directory *advisors.MemoryDirectory
	scheduler *Scheduler
	notifier  *recordingNotifier
	bus       *eventbus.Bus
}

func newFixture(t *testing.T, evalBudget time.Duration) *fixture {
	t.Helper()
	groups := geo.NewStaticGroups(
		map[string][]string{"lima-metro": {"lima", "callao"}},
		map[string][]string{"hub-centro": {"lima", "callao"}},
	)
	resolver := geo.NewResolver(groups, 0, nil)
	scorer := scoring.NewScorer(resolver, scoring.DefaultWeights(), nil)
	tierCfg := tiering.Config{}
	tierCfg.SetDefaults()
	tieringSvc := tiering.NewService(resolver, scorer, tierCfg, nil, nil)

	evalCfg := evaluate.Config{}
	evalCfg.SetDefaults()

	store := offers.NewStore(nil)
	directory := advisors.NewMemoryDirectory()
	notifier := &recordingNotifier{}
	bus := eventbus.New()
	cfg := Config{}
	cfg.SetDefaults()

	scheduler, err := NewScheduler(cfg, tieringSvc, store, directory,
		evaluate.New(evalCfg, nil), evalBudget, lock.NewMemoryLocker(), notifier, bus, nil, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	store.AddObserver(scheduler)
	t.Cleanup(scheduler.Close)
	t.Cleanup(bus.Close)
	return &fixture{store: store, directory: directory, scheduler: scheduler, notifier: notifier, bus: bus}
}

// tierOneAdvisor scores 5.0 against a lima request.
func tierOneAdvisor(id string) model.Advisor {
	return model.Advisor{
		ID: id, State: model.AdvisorActive, Location: model.NewLocation("lima", ""),
		Trust: 5, ActivityPct: 100, PerformancePct: 100,
	}
}

// tierTwoAdvisor scores ~4.1 against a lima request.
func tierTwoAdvisor(id string) model.Advisor {
	return model.Advisor{
		ID: id, State: model.AdvisorActive, Location: model.NewLocation("callao", ""),
		Trust: 4, ActivityPct: 80, PerformancePct: 80,
	}
}

func shortTimeouts(d time.Duration) map[int]time.Duration {
	return map[int]time.Duration{1: d, 2: d, 3: d, 4: d}
}

func createRequest(t *testing.T, f *fixture, minOffers int, tierTimeout time.Duration) model.Request {
	t.Helper()
	req, err := f.store.CreateRequest(model.Request{
		Location:     model.NewLocation("lima", ""),
		LineItems:    []model.LineItem{{Code: "BAT-12V", Quantity: 1}},
		MinOffers:    minOffers,
		TierTimeouts: shortTimeouts(tierTimeout),
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func submit(t *testing.T, f *fixture, req model.Request, advisorID string) {
	t.Helper()
	_, err := f.store.SubmitOffer(model.Offer{
		RequestID: req.ID,
		AdvisorID: advisorID,
		Entries: []model.OfferLineEntry{{
			LineItemID: req.LineItems[0].ID, UnitPrice: 100_000, Quantity: 1, WarrantyMonths: 6, DeliveryDays: 1,
		}},
	})
	if err != nil {
		t.Fatalf("submit offer: %v", err)
	}
}

func waitState(t *testing.T, f *fixture, requestID string, want model.RequestState) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		req, err := f.store.Request(requestID)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if req.State == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("request never reached %s, stuck in %s", want, req.State)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_EarlyExitOnMinOffers(t *testing.T) {
	ResetMetrics(nil)
	f := newFixture(t, time.Second)
	f.directory.Upsert(tierOneAdvisor("a1"))
	f.directory.Upsert(tierOneAdvisor("a2"))

	// Long tier window: only the early exit can finish this quickly.
	req := createRequest(t, f, 2, time.Minute)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	submit(t, f, req, "a1")
	submit(t, f, req, "a2")
	waitState(t, f, req.ID, model.RequestEvaluated)

	if got := f.notifier.tiers(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected a single tier-1 wave got %v", got)
	}
	if len(f.store.Allocations(req.ID)) != 1 {
		t.Fatal("expected one allocation")
	}
}

func TestScheduler_ZeroOffersClosesAfterTier4(t *testing.T) {
	ResetMetrics(nil)
	f := newFixture(t, time.Second)
	// One advisor per notified tier keeps every wave non-empty.
	f.directory.Upsert(tierOneAdvisor("a1"))
	f.directory.Upsert(tierTwoAdvisor("a2"))

	sub := f.bus.Subscribe()
	req := createRequest(t, f, 2, 15*time.Millisecond)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitState(t, f, req.ID, model.RequestClosedNoOffers)

	got, _ := f.store.Request(req.ID)
	if got.Tier != tiering.LastWaveTier {
		t.Fatalf("expected request to end at tier %d got %d", tiering.LastWaveTier, got.Tier)
	}
	if len(f.store.Allocations(req.ID)) != 0 {
		t.Fatal("closed request must have no allocations")
	}
	drainAndCheckClosed(t, sub, req.ID)
}

func drainAndCheckClosed(t *testing.T, ch <-chan eventbus.Event, requestID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if c, ok := e.(events.ClosedNoOffers); ok && c.RequestID == requestID {
				return
			}
		case <-deadline:
			t.Fatal("ClosedNoOffers event not published")
		}
	}
}

func TestScheduler_SingleOfferEvaluatedAtTier4Expiry(t *testing.T) {
	ResetMetrics(nil)
	f := newFixture(t, time.Second)
	f.directory.Upsert(tierOneAdvisor("a1"))

	req := createRequest(t, f, 2, 15*time.Millisecond)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	submit(t, f, req, "a1")
	waitState(t, f, req.ID, model.RequestEvaluated)

	allocs := f.store.Allocations(req.ID)
	if len(allocs) != 1 || allocs[0].AdvisorID != "a1" {
		t.Fatalf("expected the single offer to win: %#v", allocs)
	}
}

func TestScheduler_EscalatesThroughTiers(t *testing.T) {
	ResetMetrics(nil)
	f := newFixture(t, time.Second)
	f.directory.Upsert(tierOneAdvisor("a1"))
	f.directory.Upsert(tierTwoAdvisor("a2"))

	req := createRequest(t, f, 2, 15*time.Millisecond)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitState(t, f, req.ID, model.RequestClosedNoOffers)

	// Tiers 1 and 2 are populated; 3 and 4 are empty and skipped.
	if got := f.notifier.tiers(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected waves for tiers 1 and 2 got %v", got)
	}
}

func TestScheduler_NotifierFailureDoesNotStallEscalation(t *testing.T) {
	ResetMetrics(nil)
	f := newFixture(t, time.Second)
	f.notifier.fail = true
	f.directory.Upsert(tierOneAdvisor("a1"))

	req := createRequest(t, f, 2, 15*time.Millisecond)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitState(t, f, req.ID, model.RequestClosedNoOffers)
}

func TestScheduler_EvaluationBudgetExceeded(t *testing.T) {
	ResetMetrics(nil)
	// A one-nanosecond budget expires before the evaluator's first
	// context check, so both the attempt and its single retry abort.
	f := newFixture(t, time.Nanosecond)
	f.directory.Upsert(tierOneAdvisor("a1"))
	f.directory.Upsert(tierOneAdvisor("a2"))

	req := createRequest(t, f, 2, time.Minute)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	submit(t, f, req, "a1")
	submit(t, f, req, "a2")
	waitState(t, f, req.ID, model.RequestEvaluationFailed)

	if len(f.store.Allocations(req.ID)) != 0 {
		t.Fatal("aborted evaluation must not leave allocations behind")
	}
}

func TestScheduler_StartTwiceConflicts(t *testing.T) {
	ResetMetrics(nil)
	f := newFixture(t, time.Second)
	f.directory.Upsert(tierOneAdvisor("a1"))
	req := createRequest(t, f, 2, time.Minute)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := f.scheduler.Start(context.Background(), req.ID)
	if err == nil || !model.IsConflict(err) {
		t.Fatalf("expected ConflictError got %v", err)
	}
}

func TestScheduler_NoEligibleAdvisorsClosesQuickly(t *testing.T) {
	ResetMetrics(nil)
	f := newFixture(t, time.Second)

	req := createRequest(t, f, 2, time.Minute)
	if err := f.scheduler.Start(context.Background(), req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// All four waves are empty, so the loop falls through immediately.
	waitState(t, f, req.ID, model.RequestClosedNoOffers)
	if got := f.notifier.tiers(); len(got) != 0 {
		t.Fatalf("no waves expected got %v", got)
	}
}
