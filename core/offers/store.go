package offers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lmoreno87/advmatch/core/logger"
	"github.com/lmoreno87/advmatch/core/model"
)

// Observer is notified whenever the SUBMITTED offer count of a request
// changes. The wave scheduler uses this for its early-exit check; the count
// delivered here is advisory, the per-request lock remains the source of
// truth.
type Observer interface {
	OfferCountChanged(requestID string, submitted int)
}

// Store owns requests and offers and enforces their legal state transitions.
// All mutations go through the store mutex, which makes the "no new offers
// while evaluation is in progress" invariant a plain state check.
type Store struct {
	mu          sync.RWMutex
	requests    map[string]*model.Request
	offers      map[string]map[string]*model.Offer // requestID -> advisorID
	allocations map[string][]model.Allocation
	observers   []Observer
	log         logger.Logger
}

// NewStore creates an empty store.
func NewStore(log logger.Logger) *Store {
	return &Store{
		requests:    make(map[string]*model.Request),
		offers:      make(map[string]map[string]*model.Offer),
		allocations: make(map[string][]model.Allocation),
		log:         log,
	}
}

// AddObserver registers an offer-count observer. Observers are invoked
// outside the store mutex.
func (s *Store) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// CreateRequest validates and admits a new request in state OPEN at tier 1.
// A missing id is generated.
func (s *Store) CreateRequest(req model.Request) (model.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	for i := range req.LineItems {
		if req.LineItems[i].ID == "" {
			req.LineItems[i].ID = uuid.NewString()
		}
	}
	if err := req.Validate(); err != nil {
		return model.Request{}, err
	}
	req.State = model.RequestOpen
	req.Tier = 1
	req.CreatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return model.Request{}, &model.ConflictError{RequestID: req.ID, Reason: "request already exists"}
	}
	cp := req
	s.requests[req.ID] = &cp
	s.offers[req.ID] = make(map[string]*model.Offer)
	return req, nil
}

// Request returns a copy of the request.
func (s *Store) Request(id string) (model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return model.Request{}, fmt.Errorf("request %s not found", id)
	}
	return *req, nil
}

// SubmitOffer validates and stores an offer. While the request is OPEN a
// resubmission from the same advisor replaces the prior offer. Offers
// against requests that are mid-evaluation or otherwise not OPEN are
// rejected with a ConflictError and cause no state change.
func (s *Store) SubmitOffer(o model.Offer) (model.Offer, error) {
	if err := o.Validate(); err != nil {
		return model.Offer{}, err
	}

	s.mu.Lock()
	req, ok := s.requests[o.RequestID]
	if !ok {
		s.mu.Unlock()
		return model.Offer{}, fmt.Errorf("request %s not found", o.RequestID)
	}
	if req.State != model.RequestOpen {
		s.mu.Unlock()
		return model.Offer{}, &model.ConflictError{
			RequestID: o.RequestID,
			Reason:    fmt.Sprintf("offers not accepted in state %s", req.State),
		}
	}
	for _, e := range o.Entries {
		if _, found := req.LineItem(e.LineItemID); !found {
			s.mu.Unlock()
			return model.Offer{}, &model.ValidationError{
				Field:  "entries.line_item_id",
				Reason: fmt.Sprintf("line item %s does not belong to request %s", e.LineItemID, o.RequestID),
			}
		}
	}

	o.ID = uuid.NewString()
	o.State = model.OfferSubmitted
	o.SubmittedAt = time.Now()
	if prior, replaced := s.offers[o.RequestID][o.AdvisorID]; replaced && s.log != nil {
		s.log.Infof("advisor %s replaced offer %s on request %s", o.AdvisorID, prior.ID, o.RequestID)
	}
	cp := o
	s.offers[o.RequestID][o.AdvisorID] = &cp
	count := s.submittedLocked(o.RequestID)
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, obs := range observers {
		obs.OfferCountChanged(o.RequestID, count)
	}
	return o, nil
}

func (s *Store) submittedLocked(requestID string) int {
	n := 0
	for _, o := range s.offers[requestID] {
		if o.State == model.OfferSubmitted {
			n++
		}
	}
	return n
}

// SubmittedCount returns the number of currently SUBMITTED offers.
func (s *Store) SubmittedCount(requestID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submittedLocked(requestID)
}

// Escalate advances the request to the given tier. Tiers are monotonically
// non-decreasing; attempts to move backwards are rejected.
func (s *Store) Escalate(requestID string, tier int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s not found", requestID)
	}
	if req.State != model.RequestOpen {
		return &model.ConflictError{RequestID: requestID, Reason: fmt.Sprintf("cannot escalate in state %s", req.State)}
	}
	if tier < req.Tier {
		return &model.ConflictError{RequestID: requestID, Reason: fmt.Sprintf("tier cannot decrease from %d to %d", req.Tier, tier)}
	}
	req.Tier = tier
	req.EscalatedAt = time.Now()
	return nil
}

// BeginEvaluation transitions the request into EVALUATING. It is legal from
// OPEN and from EVALUATION_FAILED (the single safe retry after a timeout).
// Once EVALUATING, SubmitOffer rejects every new or edited offer.
func (s *Store) BeginEvaluation(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s not found", requestID)
	}
	switch req.State {
	case model.RequestOpen, model.RequestEvaluationFailed:
		req.State = model.RequestEvaluating
		return nil
	default:
		return &model.ConflictError{RequestID: requestID, Reason: fmt.Sprintf("cannot evaluate in state %s", req.State)}
	}
}

// Snapshot returns a deep copy of the request and its SUBMITTED offers,
// ordered by submission time. The evaluation engine operates only on this
// snapshot, so re-running it yields identical allocations.
func (s *Store) Snapshot(requestID string) (model.Request, []model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return model.Request{}, nil, fmt.Errorf("request %s not found", requestID)
	}
	var snapshot []model.Offer
	for _, o := range s.offers[requestID] {
		if o.State != model.OfferSubmitted {
			continue
		}
		cp := *o
		cp.Entries = append([]model.OfferLineEntry(nil), o.Entries...)
		snapshot = append(snapshot, cp)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].SubmittedAt.Equal(snapshot[j].SubmittedAt) {
			return snapshot[i].ID < snapshot[j].ID
		}
		return snapshot[i].SubmittedAt.Before(snapshot[j].SubmittedAt)
	})
	reqCopy := *req
	reqCopy.LineItems = append([]model.LineItem(nil), req.LineItems...)
	return reqCopy, snapshot, nil
}

// CompleteEvaluation applies the evaluation outcome: allocations are stored,
// offers with at least one winning entry become WINNING, every other
// SUBMITTED offer becomes NOT_SELECTED, and the request moves to EVALUATED
// (at least one allocation) or CLOSED_NO_OFFERS (none).
func (s *Store) CompleteEvaluation(requestID string, allocations []model.Allocation, winning map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s not found", requestID)
	}
	if req.State != model.RequestEvaluating {
		return &model.ConflictError{RequestID: requestID, Reason: fmt.Sprintf("cannot complete evaluation in state %s", req.State)}
	}
	for _, o := range s.offers[requestID] {
		if o.State != model.OfferSubmitted {
			continue
		}
		if winning[o.ID] {
			o.State = model.OfferWinning
		} else {
			o.State = model.OfferNotSelected
		}
	}
	s.allocations[requestID] = append([]model.Allocation(nil), allocations...)
	if len(allocations) > 0 {
		req.State = model.RequestEvaluated
	} else {
		req.State = model.RequestClosedNoOffers
	}
	req.EvaluatedAt = time.Now()
	return nil
}

// FailEvaluation marks a timed-out evaluation attempt. The request becomes
// retryable exactly once from the same offer snapshot.
func (s *Store) FailEvaluation(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s not found", requestID)
	}
	if req.State != model.RequestEvaluating {
		return &model.ConflictError{RequestID: requestID, Reason: fmt.Sprintf("cannot fail evaluation in state %s", req.State)}
	}
	req.State = model.RequestEvaluationFailed
	return nil
}

// CloseNoOffers closes an OPEN request that reached tier-4 expiry with zero
// offers.
func (s *Store) CloseNoOffers(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s not found", requestID)
	}
	if req.State != model.RequestOpen {
		return &model.ConflictError{RequestID: requestID, Reason: fmt.Sprintf("cannot close in state %s", req.State)}
	}
	req.State = model.RequestClosedNoOffers
	return nil
}

// Allocations returns the stored allocations for a request.
func (s *Store) Allocations(requestID string) []model.Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Allocation(nil), s.allocations[requestID]...)
}

// Offers returns copies of all offers for a request, regardless of state.
func (s *Store) Offers(requestID string) []model.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Offer
	for _, o := range s.offers[requestID] {
		cp := *o
		cp.Entries = append([]model.OfferLineEntry(nil), o.Entries...)
		res = append(res, cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SubmittedAt.Before(res[j].SubmittedAt) })
	return res
}
