package metrics

import coremetrics "github.com/lmoreno87/advmatch/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordWave forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordWave(rec coremetrics.WaveRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordWave(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordEvaluation forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordEvaluation(rec coremetrics.EvaluationRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordEvaluation(rec); err != nil {
			return err
		}
	}
	return nil
}
