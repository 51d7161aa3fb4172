package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lmoreno87/advmatch/core/advisors"
	"github.com/lmoreno87/advmatch/core/evaluate"
	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/lock"
	"github.com/lmoreno87/advmatch/core/model"
	"github.com/lmoreno87/advmatch/core/offers"
	"github.com/lmoreno87/advmatch/core/scoring"
	"github.com/lmoreno87/advmatch/core/tiering"
	"github.com/lmoreno87/advmatch/core/waves"
	"github.com/lmoreno87/advmatch/infra/logger"
	"github.com/lmoreno87/advmatch/infra/notify"
	"github.com/lmoreno87/advmatch/internal/eventbus"
)

var demoTimeout time.Duration

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a synthetic request end to end with in-memory components",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().DurationVar(&demoTimeout, "tier-timeout", 2*time.Second, "per-tier wait window")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	logg := logger.New("demo")

	groups := geo.NewStaticGroups(
		map[string][]string{"lima-metro": {"lima", "callao"}},
		map[string][]string{"hub-norte": {"trujillo", "chiclayo"}},
	)
	resolver := geo.NewResolver(groups, 0, logg)
	scorer := scoring.NewScorer(resolver, scoring.DefaultWeights(), logg)
	tierCfg := tiering.Config{}
	tierCfg.SetDefaults()
	tieringSvc := tiering.NewService(resolver, scorer, tierCfg, nil, logg)
	evalCfg := evaluate.Config{}
	evalCfg.SetDefaults()

	store := offers.NewStore(logg)
	directory := advisors.NewMemoryDirectory()
	notifier := notify.NewMockNotifier()
	bus := eventbus.New()
	defer bus.Close()

	wavesCfg := waves.Config{}
	wavesCfg.SetDefaults()
	scheduler, err := waves.NewScheduler(wavesCfg, tieringSvc, store, directory,
		evaluate.New(evalCfg, logg), 5*time.Second, lock.NewMemoryLocker(), notifier, bus, nil, nil, logg)
	if err != nil {
		return err
	}
	defer scheduler.Close()
	store.AddObserver(scheduler)

	directory.Upsert(model.Advisor{
		ID: "adv-lima", State: model.AdvisorActive, Location: model.NewLocation("lima", ""),
		Trust: 5, ActivityPct: 95, PerformancePct: 92,
	})
	directory.Upsert(model.Advisor{
		ID: "adv-callao", State: model.AdvisorActive, Location: model.NewLocation("callao", ""),
		Trust: 4, ActivityPct: 80, PerformancePct: 75,
	})
	directory.Upsert(model.Advisor{
		ID: "adv-trujillo", State: model.AdvisorActive, Location: model.NewLocation("trujillo", ""),
		Trust: 3, ActivityPct: 60, PerformancePct: 50,
	})

	req, err := store.CreateRequest(model.Request{
		Location: model.NewLocation("lima", ""),
		LineItems: []model.LineItem{
			{Code: "ALT-90A", Name: "alternator", Quantity: 1},
			{Code: "BAT-12V", Name: "battery", Quantity: 2},
		},
		TierTimeouts: map[int]time.Duration{1: demoTimeout, 2: demoTimeout, 3: demoTimeout, 4: demoTimeout},
	})
	if err != nil {
		return err
	}
	logg.Infof("created request %s with %d line items", req.ID, len(req.LineItems))

	if err := scheduler.Start(context.Background(), req.ID); err != nil {
		return err
	}

	// Two offers land mid-wave: a full-coverage one and a cheaper partial.
	go func() {
		time.Sleep(demoTimeout / 4)
		submitDemoOffer(store, logg, req, "adv-lima", []model.OfferLineEntry{
			{LineItemID: req.LineItems[0].ID, UnitPrice: 450_000, Quantity: 1, WarrantyMonths: 12, DeliveryDays: 2},
			{LineItemID: req.LineItems[1].ID, UnitPrice: 380_000, Quantity: 2, WarrantyMonths: 18, DeliveryDays: 2},
		})
		submitDemoOffer(store, logg, req, "adv-callao", []model.OfferLineEntry{
			{LineItemID: req.LineItems[1].ID, UnitPrice: 350_000, Quantity: 2, WarrantyMonths: 12, DeliveryDays: 1},
		})
	}()

	scheduler.Wait(req.ID)

	final, err := store.Request(req.ID)
	if err != nil {
		return err
	}
	fmt.Printf("request %s finished in state %s\n", final.ID, final.State)
	for _, n := range notifier.Sent() {
		fmt.Printf("wave: tier %d over %s to %v\n", n.Tier, n.Channel, n.AdvisorIDs())
	}
	for _, a := range store.Allocations(req.ID) {
		fmt.Printf("allocation: line item %s -> advisor %s at %.0f x%d\n",
			a.LineItemID, a.AdvisorID, a.UnitPrice, a.Quantity)
	}
	return nil
}

func submitDemoOffer(store *offers.Store, logg logger.Logger, req model.Request, advisorID string, entries []model.OfferLineEntry) {
	if _, err := store.SubmitOffer(model.Offer{
		RequestID: req.ID,
		AdvisorID: advisorID,
		Entries:   entries,
	}); err != nil {
		logg.Errorf("offer from %s: %v", advisorID, err)
		return
	}
	logg.Infof("offer submitted by %s (%d entries)", advisorID, len(entries))
}
