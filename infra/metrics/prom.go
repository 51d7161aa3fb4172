package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/lmoreno87/advmatch/core/metrics"
)

// PromSink records wave and evaluation outcomes as Prometheus metrics.
type PromSink struct {
	waves       *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	allocations *prometheus.HistogramVec
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The metrics endpoint is served separately on cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	waves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advmatch_sink_waves_total",
		Help: "Notification waves recorded by the sink",
	}, []string{"tier", "channel"})
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advmatch_sink_evaluations_total",
		Help: "Evaluation runs recorded by the sink",
	}, []string{"outcome"})
	allocations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "advmatch_sink_allocations_per_request",
		Help:    "Allocations produced per evaluated request",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	}, []string{"outcome"})

	if err := reg.Register(waves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			waves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(evaluations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			evaluations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(allocations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			allocations = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{waves: waves, evaluations: evaluations, allocations: allocations}, nil
}

// RecordWave increments the wave counter for the tier and channel.
func (s *PromSink) RecordWave(rec coremetrics.WaveRecord) error {
	s.waves.WithLabelValues(strconv.Itoa(rec.Tier), rec.Channel).Inc()
	return nil
}

// RecordEvaluation increments the outcome counter and observes the
// allocation count.
func (s *PromSink) RecordEvaluation(rec coremetrics.EvaluationRecord) error {
	s.evaluations.WithLabelValues(rec.Outcome).Inc()
	s.allocations.WithLabelValues(rec.Outcome).Observe(float64(rec.Allocations))
	return nil
}
