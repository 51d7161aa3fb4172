package model

import (
	"fmt"
	"strings"
	"time"
)

// RequestState defines the lifecycle state of a Request.
type RequestState int

const (
	RequestOpen RequestState = iota
	RequestEvaluating
	RequestEvaluated
	RequestAccepted
	RequestRejected
	RequestExpired
	RequestClosedNoOffers
	RequestEvaluationFailed
)

// String returns a human-readable representation of the request state.
func (s RequestState) String() string {
	switch s {
	case RequestOpen:
		return "OPEN"
	case RequestEvaluating:
		return "EVALUATING"
	case RequestEvaluated:
		return "EVALUATED"
	case RequestAccepted:
		return "ACCEPTED"
	case RequestRejected:
		return "REJECTED"
	case RequestExpired:
		return "EXPIRED"
	case RequestClosedNoOffers:
		return "CLOSED_NO_OFFERS"
	case RequestEvaluationFailed:
		return "EVALUATION_FAILED"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further engine-driven transitions are allowed.
func (s RequestState) Terminal() bool {
	switch s {
	case RequestAccepted, RequestRejected, RequestExpired, RequestClosedNoOffers:
		return true
	}
	return false
}

// Location identifies a city within a region. City and Region are stored
// normalized (lower case, trimmed) so map lookups and equality checks are
// cheap.
type Location struct {
	City   string `json:"city"`
	Region string `json:"region"`
}

// NewLocation builds a normalized Location.
func NewLocation(city, region string) Location {
	return Location{
		City:   NormalizeLocation(city),
		Region: NormalizeLocation(region),
	}
}

// NormalizeLocation lowercases and trims a location name.
func NormalizeLocation(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Key returns the lookup key used by the geography tables.
func (l Location) Key() string { return l.City }

// Equal reports whether both locations name the same city.
func (l Location) Equal(o Location) bool { return l.City == o.City }

// LineItem is a single requested unit within a Request. Line items are never
// mutated after creation.
type LineItem struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	// Spec holds free-form constraints such as applicable attributes or
	// year ranges. The engine never interprets it.
	Spec string `json:"spec,omitempty"`
}

// Request is a unit of demand owned exclusively by the engine until its
// evaluation completes.
type Request struct {
	ID        string       `json:"id"`
	Location  Location     `json:"location"`
	LineItems []LineItem   `json:"line_items"`
	Tier      int          `json:"tier"`
	State     RequestState `json:"state"`

	// MinOffers is the number of SUBMITTED offers that closes the waiting
	// window early. Zero means "use the configured default".
	MinOffers int `json:"min_offers,omitempty"`
	// TierTimeouts optionally overrides the configured per-tier wait
	// timeouts, keyed by tier number.
	TierTimeouts map[int]time.Duration `json:"tier_timeouts,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	EscalatedAt time.Time `json:"escalated_at,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at,omitempty"`
}

// SetTierTimeoutMinutes installs per-tier wait overrides given in minutes.
// Non-positive values and a nil map are ignored.
func (r *Request) SetTierTimeoutMinutes(minutes map[int]int) {
	for tier, m := range minutes {
		if m <= 0 {
			continue
		}
		if r.TierTimeouts == nil {
			r.TierTimeouts = make(map[int]time.Duration, len(minutes))
		}
		r.TierTimeouts[tier] = time.Duration(m) * time.Minute
	}
}

// Validate checks the structural soundness of a request.
func (r Request) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if r.Location.City == "" {
		return &ValidationError{Field: "location.city", Reason: "must not be empty"}
	}
	if len(r.LineItems) == 0 {
		return &ValidationError{Field: "line_items", Reason: "at least one line item is required"}
	}
	seen := make(map[string]struct{}, len(r.LineItems))
	for _, li := range r.LineItems {
		if li.ID == "" {
			return &ValidationError{Field: "line_items.id", Reason: "must not be empty"}
		}
		if _, dup := seen[li.ID]; dup {
			return &ValidationError{Field: "line_items.id", Reason: fmt.Sprintf("duplicate line item %s", li.ID)}
		}
		seen[li.ID] = struct{}{}
		if li.Quantity <= 0 {
			return &ValidationError{Field: "line_items.quantity", Reason: "must be positive"}
		}
	}
	return nil
}

// LineItem returns the line item with the given id, if any.
func (r Request) LineItem(id string) (LineItem, bool) {
	for _, li := range r.LineItems {
		if li.ID == id {
			return li, true
		}
	}
	return LineItem{}, false
}
