package model

// AdvisorState defines the operational state of an advisor.
type AdvisorState int

const (
	AdvisorActive AdvisorState = iota
	AdvisorInactive
	AdvisorSuspended
)

// String returns a human-readable representation of the advisor state.
func (s AdvisorState) String() string {
	switch s {
	case AdvisorActive:
		return "ACTIVE"
	case AdvisorInactive:
		return "INACTIVE"
	case AdvisorSuspended:
		return "SUSPENDED"
	default:
		return "unknown"
	}
}

// ParseAdvisorState maps the wire representation back to a state. An empty
// string means ACTIVE.
func ParseAdvisorState(s string) (AdvisorState, error) {
	switch s {
	case "", "ACTIVE":
		return AdvisorActive, nil
	case "INACTIVE":
		return AdvisorInactive, nil
	case "SUSPENDED":
		return AdvisorSuspended, nil
	default:
		return AdvisorActive, &ValidationError{Field: "state", Reason: "unknown advisor state " + s}
	}
}

// Advisor is an independent provider able to bid on requests. Advisors are
// long-lived and mutated by external processes between requests; the engine
// only reads a snapshot at scoring time.
type Advisor struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Location Location     `json:"location"`
	State    AdvisorState `json:"state"`

	// Trust is a rating in [1.0, 5.0]. Zero means no rating yet.
	Trust float64 `json:"trust,omitempty"`
	// ActivityPct is the recent-activity percentage in [0, 100].
	ActivityPct float64 `json:"activity_pct,omitempty"`
	// PerformancePct is the historical-performance percentage in [0, 100].
	PerformancePct float64 `json:"performance_pct,omitempty"`
}

// Active reports whether the advisor may be matched against requests.
func (a Advisor) Active() bool { return a.State == AdvisorActive }
