package waves

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lmoreno87/advmatch/core/advisors"
	"github.com/lmoreno87/advmatch/core/audit"
	"github.com/lmoreno87/advmatch/core/evaluate"
	"github.com/lmoreno87/advmatch/core/events"
	"github.com/lmoreno87/advmatch/core/lock"
	"github.com/lmoreno87/advmatch/core/logger"
	coremetrics "github.com/lmoreno87/advmatch/core/metrics"
	"github.com/lmoreno87/advmatch/core/model"
	"github.com/lmoreno87/advmatch/core/offers"
	"github.com/lmoreno87/advmatch/core/tiering"
	"github.com/lmoreno87/advmatch/internal/eventbus"
)

// Scheduler drives the timed escalation of every open request. Each request
// runs as an independent timer-driven state machine; there is no global lock
// across requests, and a failure in one request never touches another.
type Scheduler struct {
	cfg        Config
	tiering    *tiering.Service
	store      *offers.Store
	directory  advisors.Directory
	evaluator  *evaluate.Evaluator
	evalBudget time.Duration
	locker     lock.Locker
	notifier   Notifier
	bus        eventbus.EventBus
	sink       coremetrics.Sink
	audit      audit.Store
	log        logger.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// run is the in-flight state machine for one request.
type run struct {
	requestID string
	tiers     map[int][]tiering.ScoreRecord
	minOffers int
	offerCh   chan int
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a scheduler. evalBudget is the hard wall-clock budget
// for a single evaluation run; zero selects a default of five seconds.
func NewScheduler(cfg Config, tieringSvc *tiering.Service, store *offers.Store, directory advisors.Directory,
	evaluator *evaluate.Evaluator, evalBudget time.Duration, locker lock.Locker, notifier Notifier,
	bus eventbus.EventBus, sink coremetrics.Sink, auditStore audit.Store, log logger.Logger) (*Scheduler, error) {

	if tieringSvc == nil || store == nil || directory == nil || evaluator == nil || locker == nil {
		return nil, fmt.Errorf("waves: nil parameter provided to NewScheduler")
	}
	if evalBudget <= 0 {
		evalBudget = 5 * time.Second
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	if auditStore == nil {
		auditStore = audit.NopStore{}
	}
	return &Scheduler{
		cfg:        cfg,
		tiering:    tieringSvc,
		store:      store,
		directory:  directory,
		evaluator:  evaluator,
		evalBudget: evalBudget,
		locker:     locker,
		notifier:   notifier,
		bus:        bus,
		sink:       sink,
		audit:      auditStore,
		log:        log,
		runs:       make(map[string]*run),
	}, nil
}

// Start computes eligibility and tiering exactly once for the request and
// launches its wave loop. Starting an already-running request is a conflict.
func (s *Scheduler) Start(ctx context.Context, requestID string) error {
	req, err := s.store.Request(requestID)
	if err != nil {
		return err
	}
	if req.State != model.RequestOpen {
		return &model.ConflictError{RequestID: requestID, Reason: fmt.Sprintf("cannot schedule in state %s", req.State)}
	}

	tiers, err := s.tiering.Classify(ctx, req, s.directory.ListActive())
	if err != nil {
		return fmt.Errorf("classify request %s: %w", requestID, err)
	}

	minOffers := req.MinOffers
	if minOffers <= 0 {
		minOffers = s.cfg.MinOffers
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		requestID: requestID,
		tiers:     tiers,
		minOffers: minOffers,
		offerCh:   make(chan int, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.runs[requestID]; exists {
		s.mu.Unlock()
		cancel()
		return &model.ConflictError{RequestID: requestID, Reason: "request is already scheduled"}
	}
	s.runs[requestID] = r
	s.mu.Unlock()

	go s.loop(runCtx, r, req)
	return nil
}

// OfferCountChanged implements offers.Observer. The count is only a hint to
// wake the request's loop; the loop re-reads the store before acting.
func (s *Scheduler) OfferCountChanged(requestID string, submitted int) {
	s.mu.Lock()
	r := s.runs[requestID]
	s.mu.Unlock()
	if r == nil {
		return
	}
	select {
	case r.offerCh <- submitted:
	default:
	}
}

// Wait blocks until the request's wave loop has finished. It returns
// immediately for unknown requests.
func (s *Scheduler) Wait(requestID string) {
	s.mu.Lock()
	r := s.runs[requestID]
	s.mu.Unlock()
	if r != nil {
		<-r.done
	}
}

// Close cancels every in-flight wave loop and waits for them to stop.
func (s *Scheduler) Close() {
	s.mu.Lock()
	active := make([]*run, 0, len(s.runs))
	for _, r := range s.runs {
		active = append(active, r)
	}
	s.mu.Unlock()
	for _, r := range active {
		r.cancel()
		<-r.done
	}
}

func (s *Scheduler) remove(requestID string) {
	s.mu.Lock()
	delete(s.runs, requestID)
	s.mu.Unlock()
}

// loop is the per-request state machine: notify the current tier, wait for
// the tier window, then exit early, escalate, evaluate or close.
func (s *Scheduler) loop(ctx context.Context, r *run, req model.Request) {
	defer close(r.done)
	defer s.remove(r.requestID)
	defer r.cancel()

	tier := tiering.FirstTier
	for {
		waited := s.waitTier(ctx, r, req, tier)
		switch waited {
		case waitCanceled:
			return
		case waitEarlyExit:
			earlyExits.Inc()
			s.runEvaluation(ctx, r.requestID)
			return
		}

		// Tier window expired. Offers may have landed between the last
		// wake-up and now; the store count decides.
		count := s.store.SubmittedCount(r.requestID)
		if count >= r.minOffers {
			earlyExits.Inc()
			s.runEvaluation(ctx, r.requestID)
			return
		}
		if tier >= tiering.LastWaveTier {
			// Terminal for active notification: the reserve tier is never
			// woken. One offer is enough to evaluate.
			if count >= 1 {
				s.runEvaluation(ctx, r.requestID)
			} else {
				s.closeNoOffers(r.requestID)
			}
			return
		}

		tier++
		if err := s.store.Escalate(r.requestID, tier); err != nil {
			s.logErrf("request %s: escalate: %v", r.requestID, err)
			return
		}
		escalations.Inc()
		s.publish(events.Escalated{RequestID: r.requestID, NewTier: tier})
		s.logInfof("request %s: escalated to tier %d (%d offers so far)", r.requestID, tier, count)
	}
}

type waitOutcome int

const (
	waitExpired waitOutcome = iota
	waitEarlyExit
	waitCanceled
)

// waitTier notifies the tier and waits out its window. An empty tier is
// skipped without waiting.
func (s *Scheduler) waitTier(ctx context.Context, r *run, req model.Request, tier int) waitOutcome {
	records := r.tiers[tier]
	if len(records) == 0 {
		s.logInfof("request %s: tier %d is empty, escalating immediately", r.requestID, tier)
		return waitExpired
	}
	s.notifyTier(ctx, r, tier, records)

	timer := time.NewTimer(s.tierTimeout(req, tier, records))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return waitCanceled
		case <-r.offerCh:
			if s.store.SubmittedCount(r.requestID) >= r.minOffers {
				return waitEarlyExit
			}
		case <-timer.C:
			return waitExpired
		}
	}
}

// tierTimeout resolves the wait window: per-request override first, then the
// tier's configured timeout carried on its score records.
func (s *Scheduler) tierTimeout(req model.Request, tier int, records []tiering.ScoreRecord) time.Duration {
	if d, ok := req.TierTimeouts[tier]; ok && d > 0 {
		return d
	}
	if len(records) > 0 && records[0].Timeout > 0 {
		return records[0].Timeout
	}
	if ts, ok := s.tiering.Settings(tier); ok {
		return ts.Timeout()
	}
	return 15 * time.Minute
}

// notifyTier dispatches the wave fire-and-forget and publishes the event.
func (s *Scheduler) notifyTier(ctx context.Context, r *run, tier int, records []tiering.ScoreRecord) {
	notice := WaveNotice{
		RequestID: r.requestID,
		Tier:      tier,
		Channel:   records[0].Channel,
		Advisors:  make([]model.Advisor, 0, len(records)),
	}
	for _, rec := range records {
		notice.Advisors = append(notice.Advisors, rec.Advisor)
	}

	go func() {
		if err := s.notifier.NotifyWave(ctx, notice); err != nil {
			notifyFailures.Inc()
			s.logErrf("request %s: tier %d notification failed: %v", r.requestID, tier, err)
		}
	}()

	wavesNotified.WithLabelValues(strconv.Itoa(tier), string(notice.Channel)).Inc()
	s.publish(events.TierNotified{
		RequestID:  r.requestID,
		Tier:       tier,
		AdvisorIDs: notice.AdvisorIDs(),
		Channel:    notice.Channel,
	})
	if err := s.sink.RecordWave(coremetrics.WaveRecord{
		RequestID: r.requestID,
		Tier:      tier,
		Advisors:  len(records),
		Channel:   string(notice.Channel),
		Timestamp: time.Now(),
	}); err != nil {
		s.logErrf("wave metrics error: %v", err)
	}
	s.logInfof("request %s: notified %d tier-%d advisors via %s", r.requestID, len(records), tier, notice.Channel)
}

// runEvaluation performs the single evaluation run for the request under its
// exclusive lock. A timed-out attempt is retried exactly once from the same
// offer snapshot; the replace-style result application keeps the retry free
// of duplicated allocations.
func (s *Scheduler) runEvaluation(ctx context.Context, requestID string) {
	if !s.locker.TryAcquire(requestID) {
		// Another path (early exit racing a timer) won the lock; that run
		// owns the evaluation.
		s.logDebugf("request %s: evaluation lock already held", requestID)
		return
	}
	defer s.locker.Release(requestID)

	if err := s.store.BeginEvaluation(requestID); err != nil {
		s.logDebugf("request %s: evaluation skipped: %v", requestID, err)
		return
	}
	req, snapshot, err := s.store.Snapshot(requestID)
	if err != nil {
		s.logErrf("request %s: snapshot: %v", requestID, err)
		return
	}

	start := time.Now()
	res, err := s.evaluateWithBudget(ctx, req, snapshot)
	if err != nil {
		evaluationTimeouts.Inc()
		s.logErrf("request %s: %v, retrying once", requestID, err)
		if ferr := s.store.FailEvaluation(requestID); ferr != nil {
			s.logErrf("request %s: mark failed: %v", requestID, ferr)
			return
		}
		if berr := s.store.BeginEvaluation(requestID); berr != nil {
			s.logErrf("request %s: retry begin: %v", requestID, berr)
			return
		}
		res, err = s.evaluateWithBudget(ctx, req, snapshot)
		if err != nil {
			evaluationTimeouts.Inc()
			s.logErrf("request %s: retry failed: %v", requestID, err)
			if ferr := s.store.FailEvaluation(requestID); ferr != nil {
				s.logErrf("request %s: mark failed: %v", requestID, ferr)
			}
			return
		}
	}
	duration := time.Since(start)
	evaluationLatency.Observe(duration.Seconds())

	if err := s.store.CompleteEvaluation(requestID, res.Allocations, res.Winning); err != nil {
		s.logErrf("request %s: complete evaluation: %v", requestID, err)
		return
	}
	outcome := model.RequestEvaluated
	if len(res.Allocations) == 0 {
		outcome = model.RequestClosedNoOffers
	}

	if err := s.audit.Append(ctx, audit.Record{
		Timestamp:   time.Now(),
		RequestID:   requestID,
		Kind:        audit.KindEvaluation,
		Allocations: res.Allocations,
		Outcome:     outcome.String(),
	}); err != nil {
		s.logErrf("request %s: audit append: %v", requestID, err)
	}

	if len(res.Allocations) > 0 {
		s.publish(events.EvaluationCompleted{RequestID: requestID, Allocations: res.Allocations})
	} else {
		closedNoOffers.Inc()
		s.publish(events.ClosedNoOffers{RequestID: requestID})
	}
	if err := s.sink.RecordEvaluation(coremetrics.EvaluationRecord{
		RequestID:   requestID,
		Offers:      len(snapshot),
		Allocations: len(res.Allocations),
		LineItems:   len(req.LineItems),
		Outcome:     outcome.String(),
		Duration:    duration,
		Timestamp:   time.Now(),
	}); err != nil {
		s.logErrf("evaluation metrics error: %v", err)
	}
	s.logInfof("request %s: evaluation done, %d/%d line items allocated across %d offers",
		requestID, len(res.Allocations), len(req.LineItems), len(snapshot))
}

// evaluateWithBudget runs the evaluator under the wall-clock budget and maps
// an overrun to a TimeoutError.
func (s *Scheduler) evaluateWithBudget(ctx context.Context, req model.Request, snapshot []model.Offer) (evaluate.Result, error) {
	budgetCtx, cancel := context.WithTimeout(ctx, s.evalBudget)
	defer cancel()

	type outcome struct {
		res evaluate.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := s.evaluator.Evaluate(budgetCtx, req, snapshot)
		ch <- outcome{res: res, err: err}
	}()
	select {
	case o := <-ch:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) {
				return evaluate.Result{}, &model.TimeoutError{RequestID: req.ID, Budget: s.evalBudget}
			}
			return evaluate.Result{}, o.err
		}
		return o.res, nil
	case <-budgetCtx.Done():
		if errors.Is(budgetCtx.Err(), context.DeadlineExceeded) {
			return evaluate.Result{}, &model.TimeoutError{RequestID: req.ID, Budget: s.evalBudget}
		}
		return evaluate.Result{}, budgetCtx.Err()
	}
}

func (s *Scheduler) closeNoOffers(requestID string) {
	if err := s.store.CloseNoOffers(requestID); err != nil {
		s.logErrf("request %s: close: %v", requestID, err)
		return
	}
	closedNoOffers.Inc()
	s.publish(events.ClosedNoOffers{RequestID: requestID})
	s.logInfof("request %s: closed without offers after tier %d", requestID, tiering.LastWaveTier)
}

func (s *Scheduler) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func (s *Scheduler) logDebugf(format string, args ...any) {
	if s.log != nil {
		s.log.Debugf(format, args...)
	}
}

func (s *Scheduler) logInfof(format string, args ...any) {
	if s.log != nil {
		s.log.Infof(format, args...)
	}
}

func (s *Scheduler) logErrf(format string, args ...any) {
	if s.log != nil {
		s.log.Errorf(format, args...)
	}
}
