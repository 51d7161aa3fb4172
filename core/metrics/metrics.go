// Package metrics defines the sink abstraction the engine records wave and
// evaluation outcomes through. Implementations live in infra/metrics.
package metrics

import "time"

// WaveRecord captures one notification wave.
type WaveRecord struct {
	RequestID string
	Tier      int
	Advisors  int
	Channel   string
	Timestamp time.Time
}

// EvaluationRecord captures the outcome of one evaluation run.
type EvaluationRecord struct {
	RequestID   string
	Offers      int
	Allocations int
	LineItems   int
	Outcome     string
	Duration    time.Duration
	Timestamp   time.Time
}

// Sink records engine outcomes. Implementations must be safe for concurrent
// use; recording failures are logged by callers, never propagated into the
// request state machines.
type Sink interface {
	RecordWave(rec WaveRecord) error
	RecordEvaluation(rec EvaluationRecord) error
}

// Config selects and parameterizes the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`

	InfluxEnabled bool   `json:"influx_enabled"`
	InfluxURL     string `json:"influx_url"`
	InfluxToken   string `json:"influx_token"`
	InfluxOrg     string `json:"influx_org"`
	InfluxBucket  string `json:"influx_bucket"`
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordWave(WaveRecord) error             { return nil }
func (NopSink) RecordEvaluation(EvaluationRecord) error { return nil }
