package audit

import (
	"context"
	"time"

	"github.com/lmoreno87/advmatch/core/model"
)

// Kind discriminates the audit record types.
type Kind string

const (
	// KindTiering records the eligibility/score snapshot taken before the
	// first notification wave.
	KindTiering Kind = "tiering"
	// KindEvaluation records the outcome of one evaluation run.
	KindEvaluation Kind = "evaluation"
)

// ScoreLine is one advisor's persisted score record.
type ScoreLine struct {
	AdvisorID   string  `json:"advisor_id"`
	Proximity   float64 `json:"proximity"`
	Activity    float64 `json:"activity"`
	Performance float64 `json:"performance"`
	Trust       float64 `json:"trust"`
	Total       float64 `json:"total"`
	Tier        int     `json:"tier"`
	Channel     string  `json:"channel"`
}

// Record captures one auditable engine decision for a request.
type Record struct {
	Timestamp   time.Time          `json:"timestamp"`
	RequestID   string             `json:"request_id"`
	Kind        Kind               `json:"kind"`
	Scores      []ScoreLine        `json:"scores,omitempty"`
	Allocations []model.Allocation `json:"allocations,omitempty"`
	// Outcome is the request state after an evaluation record.
	Outcome string `json:"outcome,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start     time.Time
	End       time.Time
	RequestID string
	Kind      Kind
}

// Store persists audit records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// matches reports whether rec passes the query filters.
func (q Query) matches(rec Record) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.RequestID != "" && rec.RequestID != q.RequestID {
		return false
	}
	if q.Kind != "" && rec.Kind != q.Kind {
		return false
	}
	return true
}

// NopStore discards all records. Used when auditing is disabled.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
