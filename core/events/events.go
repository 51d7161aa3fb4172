// Package events defines the outbound events published once per occurrence
// on the internal bus. Non-core collaborators (notification delivery,
// analytics, client messaging) consume them; the engine never depends on
// their delivery.
package events

import "github.com/lmoreno87/advmatch/core/model"

// TierNotified is published when a notification wave goes out to a tier.
type TierNotified struct {
	RequestID  string
	Tier       int
	AdvisorIDs []string
	Channel    model.NotificationChannel
}

// Escalated is published when a request moves to the next tier.
type Escalated struct {
	RequestID string
	NewTier   int
}

// EvaluationCompleted is published once when an evaluation run finishes.
type EvaluationCompleted struct {
	RequestID   string
	Allocations []model.Allocation
}

// ClosedNoOffers is published when a request closes without a single offer.
type ClosedNoOffers struct {
	RequestID string
}

// OfferRejected is published when an offer is refused at submission, with
// the reason class (validation or conflict).
type OfferRejected struct {
	RequestID string
	AdvisorID string
	Reason    string
}
