package evaluate

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/lmoreno87/advmatch/core/logger"
	"github.com/lmoreno87/advmatch/core/model"
)

// Result is the outcome of one evaluation run.
type Result struct {
	Allocations []model.Allocation
	// Winning marks offer ids that won at least one line item.
	Winning map[string]bool
}

// Evaluator resolves the final allocation per line item from a fixed offer
// snapshot. Evaluate is a pure function of the snapshot and the config
// snapshot; it holds no hidden state, so re-running it yields identical
// allocations.
type Evaluator struct {
	cfg Config
	log logger.Logger
}

// New creates an evaluator. The config is assumed validated at load time.
func New(cfg Config, log logger.Logger) *Evaluator {
	return &Evaluator{cfg: cfg, log: log}
}

// candidate is one offer line entry competing for a line item, annotated
// with its parent offer's coverage and submission time.
type candidate struct {
	offer     model.Offer
	entry     model.OfferLineEntry
	score     float64
	coverage  float64
	submitted time.Time
}

// Evaluate walks every line item independently, scores the competing
// entries, and applies the coverage cascade with the single-offer exception.
// The context carries the wall-clock budget; on expiry the run aborts with
// ctx.Err and no partial result.
func (e *Evaluator) Evaluate(ctx context.Context, req model.Request, offers []model.Offer) (Result, error) {
	res := Result{Winning: make(map[string]bool)}
	total := len(req.LineItems)

	// Coverage is a property of the offer, computed once and shared across
	// all of its entries.
	coverage := make(map[string]float64, len(offers))
	for _, o := range offers {
		coverage[o.ID] = o.Coverage(total)
	}

	now := time.Now()
	for _, li := range req.LineItems {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cands := e.candidatesFor(li, offers, coverage)
		if len(cands) == 0 {
			continue
		}
		winner, ok := e.pick(cands)
		if !ok {
			if e.log != nil {
				e.log.Debugf("request %s: line item %s unallocated, %d candidates all below coverage minimum",
					req.ID, li.ID, len(cands))
			}
			continue
		}
		res.Allocations = append(res.Allocations, model.Allocation{
			RequestID:      req.ID,
			LineItemID:     li.ID,
			OfferID:        winner.offer.ID,
			AdvisorID:      winner.offer.AdvisorID,
			UnitPrice:      winner.entry.UnitPrice,
			Quantity:       winner.entry.Quantity,
			WarrantyMonths: winner.entry.WarrantyMonths,
			DeliveryDays:   winner.entry.DeliveryDays,
			Score:          winner.score,
			Coverage:       winner.coverage,
			AwardedAt:      now,
		})
		res.Winning[winner.offer.ID] = true
	}
	return res, nil
}

// candidatesFor collects and scores every entry referencing the line item.
func (e *Evaluator) candidatesFor(li model.LineItem, offers []model.Offer, coverage map[string]float64) []candidate {
	var cands []candidate
	var prices []float64
	for _, o := range offers {
		if entry, ok := o.Entry(li.ID); ok {
			cands = append(cands, candidate{
				offer:     o,
				entry:     entry,
				coverage:  coverage[o.ID],
				submitted: o.SubmittedAt,
			})
			prices = append(prices, entry.UnitPrice)
		}
	}
	if len(cands) == 0 {
		return nil
	}
	minPrice := floats.Min(prices)
	w := e.cfg.Weights
	for i := range cands {
		c := &cands[i]
		c.score = priceScore(c.entry.UnitPrice, minPrice)*w.Price +
			timeScore(c.entry.DeliveryDays)*w.Time +
			warrantyScore(c.entry.WarrantyMonths)*w.Warranty
	}
	e.sortCandidates(cands)
	return cands
}

// sortCandidates orders candidates best-first under the configured ranking.
// The final offer-id comparison keeps the order total, so evaluation stays
// deterministic even for identical offers.
func (e *Evaluator) sortCandidates(cands []candidate) {
	coverageFirst := e.cfg.Ranking == RankCoverageFirst
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		first, second := a.score, b.score
		firstB, secondB := a.coverage, b.coverage
		if coverageFirst {
			first, second = a.coverage, b.coverage
			firstB, secondB = a.score, b.score
		}
		if first != second {
			return first > second
		}
		if firstB != secondB {
			return firstB > secondB
		}
		if !a.submitted.Equal(b.submitted) {
			return a.submitted.Before(b.submitted)
		}
		return a.offer.ID < b.offer.ID
	})
}

// pick walks the ranked candidates and returns the first one whose parent
// offer meets the coverage minimum. When none does and exactly one candidate
// exists at all, that sole candidate wins regardless of coverage.
func (e *Evaluator) pick(cands []candidate) (candidate, bool) {
	min := e.cfg.MinCoveragePct / 100.0
	for _, c := range cands {
		if c.coverage >= min {
			return c, true
		}
	}
	if len(cands) == 1 {
		return cands[0], true
	}
	return candidate{}, false
}

// priceScore rates an entry's unit price against the cheapest competing
// entry for the same line item: 5 within 5%, 3 within 8%, 1 otherwise.
func priceScore(price, min float64) float64 {
	switch {
	case price <= min*1.05:
		return 5
	case price <= min*1.08:
		return 3
	default:
		return 1
	}
}

// timeScore rates the line-specific delivery time: 5 same-day, 3 within
// three days, 1 otherwise.
func timeScore(days int) float64 {
	switch {
	case days <= 0:
		return 5
	case days <= 3:
		return 3
	default:
		return 1
	}
}

// warrantyScore rates the warranty duration: 5 above three months, 3 for at
// least one month, 1 otherwise.
func warrantyScore(months int) float64 {
	switch {
	case months > 3:
		return 5
	case months >= 1:
		return 3
	default:
		return 1
	}
}
