package tiering

import (
	"context"
	"time"

	"github.com/lmoreno87/advmatch/core/audit"
	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/logger"
	"github.com/lmoreno87/advmatch/core/model"
	"github.com/lmoreno87/advmatch/core/scoring"
)

// ScoreRecord is the ephemeral eligibility record for one request×advisor
// pair. It is created once during tiering and never updated afterward;
// rescoring a request requires new records.
type ScoreRecord struct {
	RequestID string
	Advisor   model.Advisor
	Score     scoring.Breakdown
	Tier      int
	Channel   model.NotificationChannel
	Timeout   time.Duration
	CreatedAt time.Time
}

// Service determines the eligible advisor set for a request, scores every
// member and partitions them into ordered tiers.
type Service struct {
	resolver *geo.Resolver
	scorer   *scoring.Scorer
	cfg      Config
	audit    audit.Store
	log      logger.Logger
}

// NewService creates a tiering service. The config is assumed validated at
// load time.
func NewService(resolver *geo.Resolver, scorer *scoring.Scorer, cfg Config, auditStore audit.Store, log logger.Logger) *Service {
	if auditStore == nil {
		auditStore = audit.NopStore{}
	}
	return &Service{resolver: resolver, scorer: scorer, cfg: cfg, audit: auditStore, log: log}
}

// DetermineEligible returns the deduplicated union of the three eligibility
// subsets, each restricted to operationally active advisors:
//
//	(a) advisors in the request's own city,
//	(b) advisors located in any metro-area group nationwide,
//	(c) advisors sharing the request's logistics-hub group.
//
// Rule (b) is intentionally unconditional: it applies whether or not the
// request itself originates inside a metro area.
func (s *Service) DetermineEligible(req model.Request, advisors []model.Advisor) []model.Advisor {
	var eligible []model.Advisor
	for _, adv := range advisors {
		if !adv.Active() {
			continue
		}
		switch {
		case adv.Location.Equal(req.Location):
		case s.resolver.InAnyMetro(adv.Location):
		case s.resolver.SameHub(req.Location, adv.Location):
		default:
			continue
		}
		eligible = append(eligible, adv)
	}
	return eligible
}

// Classify scores every eligible advisor, persists the score records for
// audit, and partitions the records into tiers. Reserve-tier records are
// returned too so downstream consumers can inspect them, but the wave
// scheduler never notifies them.
func (s *Service) Classify(ctx context.Context, req model.Request, advisors []model.Advisor) (map[int][]ScoreRecord, error) {
	eligible := s.DetermineEligible(req, advisors)
	now := time.Now()

	tiers := make(map[int][]ScoreRecord)
	lines := make([]audit.ScoreLine, 0, len(eligible))
	for _, adv := range eligible {
		b := s.scorer.Score(req, adv)
		tier := s.cfg.Tier(b.Total)
		rec := ScoreRecord{
			RequestID: req.ID,
			Advisor:   adv,
			Score:     b,
			Tier:      tier,
			CreatedAt: now,
		}
		if ts, ok := s.cfg.Tiers[tier]; ok {
			rec.Channel = ts.Channel
			rec.Timeout = ts.Timeout()
		}
		tiers[tier] = append(tiers[tier], rec)
		lines = append(lines, audit.ScoreLine{
			AdvisorID:   adv.ID,
			Proximity:   b.Proximity,
			Activity:    b.Activity,
			Performance: b.Performance,
			Trust:       b.Trust,
			Total:       b.Total,
			Tier:        tier,
			Channel:     string(rec.Channel),
		})
	}

	err := s.audit.Append(ctx, audit.Record{
		Timestamp: now,
		RequestID: req.ID,
		Kind:      audit.KindTiering,
		Scores:    lines,
	})
	if err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("request %s: %d eligible advisors across %d tiers", req.ID, len(eligible), len(tiers))
	}
	return tiers, nil
}

// Settings exposes the per-tier channel and timeout configuration.
func (s *Service) Settings(tier int) (TierSettings, bool) {
	ts, ok := s.cfg.Tiers[tier]
	return ts, ok
}
