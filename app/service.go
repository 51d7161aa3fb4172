// Package app wires the configuration into a running matching service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	auditapi "github.com/lmoreno87/advmatch/api/audit"
	"github.com/lmoreno87/advmatch/api/requests"
	"github.com/lmoreno87/advmatch/config"
	"github.com/lmoreno87/advmatch/core/advisors"
	"github.com/lmoreno87/advmatch/core/audit"
	"github.com/lmoreno87/advmatch/core/evaluate"
	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/lock"
	"github.com/lmoreno87/advmatch/core/offers"
	"github.com/lmoreno87/advmatch/core/scoring"
	"github.com/lmoreno87/advmatch/core/tiering"
	"github.com/lmoreno87/advmatch/core/waves"
	"github.com/lmoreno87/advmatch/infra/geocache"
	"github.com/lmoreno87/advmatch/infra/locks"
	"github.com/lmoreno87/advmatch/infra/logger"
	"github.com/lmoreno87/advmatch/infra/metrics"
	"github.com/lmoreno87/advmatch/infra/notify"
	"github.com/lmoreno87/advmatch/internal/eventbus"
)

// Service owns every long-lived component of the matching engine.
type Service struct {
	Store     *offers.Store
	Directory *advisors.MemoryDirectory
	Scheduler *waves.Scheduler

	cfg      *config.Config
	log      logger.Logger
	bus      *eventbus.Bus
	auditSt  audit.Store
	notifier waves.Notifier
	bridge   *notify.Bridge
	redisCli *redis.Client
	router   chi.Router
}

// New assembles a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	static := geo.NewStaticGroups(cfg.Geo.MetroAreas, cfg.Geo.Hubs)
	var groups geo.Groups = static
	var locker lock.Locker = lock.NewMemoryLocker()
	var redisCli *redis.Client
	if cfg.Redis.Enabled {
		redisCli = locks.NewClient(cfg.Redis)
		locker = locks.NewRedisLocker(redisCli, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second, log)
		rg := geocache.NewRedisGroups(redisCli, static, log)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rg.Seed(ctx, cfg.Geo.MetroAreas, cfg.Geo.Hubs); err != nil {
			log.Warnf("seed geography cache: %v, serving from static tables", err)
		} else {
			groups = rg
		}
		cancel()
	}

	resolver := geo.NewResolver(groups, time.Duration(cfg.Geo.CacheTTLSeconds)*time.Second, log)
	scorer := scoring.NewScorer(resolver, cfg.Scoring.Weights, log)

	auditStore, err := newAuditStore(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	tieringSvc := tiering.NewService(resolver, scorer, cfg.Tiering, auditStore, log)

	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New()
	var notifier waves.Notifier = waves.NopNotifier{}
	var bridge *notify.Bridge
	if cfg.Notify.Enabled {
		mq, err := notify.NewMQTTNotifier(cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifier = mq
		bridge = notify.NewBridge(bus, mq, cfg.Notify.TopicPrefix, log)
	}

	store := offers.NewStore(log)
	directory := advisors.NewMemoryDirectory()
	evaluator := evaluate.New(cfg.Evaluate, log)
	evalBudget := time.Duration(cfg.Evaluate.BudgetSeconds) * time.Second
	scheduler, err := waves.NewScheduler(cfg.Waves, tieringSvc, store, directory,
		evaluator, evalBudget, locker, notifier, bus, sink, auditStore, log)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	store.AddObserver(scheduler)

	handler := requests.NewHandler(store, directory, scheduler, log)
	handler.SetAuditLogs(auditapi.NewLogHandler(auditStore, cfg.Audit.APIToken))
	if cfg.Metrics.PrometheusEnabled {
		handler.SetMetrics(promhttp.Handler())
	}
	router := handler.Router()

	return &Service{
		Store:     store,
		Directory: directory,
		Scheduler: scheduler,
		cfg:       cfg,
		log:       log,
		bus:       bus,
		auditSt:   auditStore,
		notifier:  notifier,
		bridge:    bridge,
		redisCli:  redisCli,
		router:    router,
	}, nil
}

func newAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return audit.NewSQLiteStore(cfg.Path)
	case "jsonl":
		return audit.NewJSONLStore(cfg.Path)
	default:
		return audit.NopStore{}, nil
	}
}

// Router exposes the assembled HTTP routes.
func (s *Service) Router() chi.Router { return s.router }

// Run serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.cfg.HTTP.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases every resource held by the service.
func (s *Service) Close() error {
	s.Scheduler.Close()
	if s.bridge != nil {
		s.bridge.Close()
	}
	if mq, ok := s.notifier.(*notify.MQTTNotifier); ok {
		mq.Disconnect()
	}
	s.bus.Close()
	if s.redisCli != nil {
		_ = s.redisCli.Close()
	}
	return s.auditSt.Close()
}
