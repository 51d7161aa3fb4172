package waves

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wavesNotified      *prometheus.CounterVec
	escalations        prometheus.Counter
	earlyExits         prometheus.Counter
	closedNoOffers     prometheus.Counter
	evaluationTimeouts prometheus.Counter
	notifyFailures     prometheus.Counter
	evaluationLatency  prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Histogram) {
	waves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waves_notified_total",
			Help: "Number of notification waves sent",
		},
		[]string{"tier", "channel"},
	)
	esc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "request_escalations_total",
			Help: "Number of tier escalations",
		},
	)
	early := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "request_early_exits_total",
			Help: "Number of requests entering evaluation before their tier timeout",
		},
	)
	closed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "requests_closed_no_offers_total",
			Help: "Number of requests closed without a single offer",
		},
	)
	timeouts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evaluation_timeouts_total",
			Help: "Number of evaluation runs aborted on their wall-clock budget",
		},
	)
	failures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wave_notify_failures_total",
			Help: "Number of failed wave notification deliveries",
		},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_duration_seconds",
			Help:    "Duration of offer evaluation runs",
			Buckets: prometheus.DefBuckets,
		},
	)
	return waves, esc, early, closed, timeouts, failures, lat
}

func init() {
	wavesNotified, escalations, earlyExits, closedNoOffers, evaluationTimeouts, notifyFailures, evaluationLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers wave metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(wavesNotified, escalations, earlyExits, closedNoOffers, evaluationTimeouts, notifyFailures, evaluationLatency)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	wavesNotified, escalations, earlyExits, closedNoOffers, evaluationTimeouts, notifyFailures, evaluationLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
