package model

import (
	"fmt"
	"time"
)

// OfferState defines the lifecycle state of an Offer.
type OfferState int

const (
	OfferSubmitted OfferState = iota
	OfferWinning
	OfferNotSelected
	OfferExpired
	OfferRejected
	OfferAccepted
)

// String returns a human-readable representation of the offer state.
func (s OfferState) String() string {
	switch s {
	case OfferSubmitted:
		return "SUBMITTED"
	case OfferWinning:
		return "WINNING"
	case OfferNotSelected:
		return "NOT_SELECTED"
	case OfferExpired:
		return "EXPIRED"
	case OfferRejected:
		return "REJECTED"
	case OfferAccepted:
		return "ACCEPTED"
	default:
		return "unknown"
	}
}

// Bounds for offer line entry values. Entries outside these ranges are
// rejected at submission and never enter the engine.
const (
	MinUnitPrice      = 1_000
	MaxUnitPrice      = 50_000_000
	MinWarrantyMonths = 1
	MaxWarrantyMonths = 60
	MinDeliveryDays   = 0
	MaxDeliveryDays   = 90
)

// OfferLineEntry is a priced bid against one specific line item of the
// offer's request.
type OfferLineEntry struct {
	LineItemID     string  `json:"line_item_id"`
	UnitPrice      float64 `json:"unit_price"`
	Quantity       int     `json:"quantity"`
	WarrantyMonths int     `json:"warranty_months"`
	DeliveryDays   int     `json:"delivery_days"`
}

// Validate checks the entry values against the configured bounds.
func (e OfferLineEntry) Validate() error {
	if e.LineItemID == "" {
		return &ValidationError{Field: "line_item_id", Reason: "must not be empty"}
	}
	if e.UnitPrice < MinUnitPrice || e.UnitPrice > MaxUnitPrice {
		return &ValidationError{
			Field:  "unit_price",
			Reason: fmt.Sprintf("must be within [%d, %d]", MinUnitPrice, MaxUnitPrice),
		}
	}
	if e.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if e.WarrantyMonths < MinWarrantyMonths || e.WarrantyMonths > MaxWarrantyMonths {
		return &ValidationError{
			Field:  "warranty_months",
			Reason: fmt.Sprintf("must be within [%d, %d]", MinWarrantyMonths, MaxWarrantyMonths),
		}
	}
	if e.DeliveryDays < MinDeliveryDays || e.DeliveryDays > MaxDeliveryDays {
		return &ValidationError{
			Field:  "delivery_days",
			Reason: fmt.Sprintf("must be within [%d, %d]", MinDeliveryDays, MaxDeliveryDays),
		}
	}
	return nil
}

// Offer is an advisor's bid against a request. One advisor holds at most one
// offer per request; resubmitting replaces the prior offer while the request
// is OPEN. Partial offers (entries for a subset of the line items) are
// first-class.
type Offer struct {
	ID        string           `json:"id"`
	RequestID string           `json:"request_id"`
	AdvisorID string           `json:"advisor_id"`
	Entries   []OfferLineEntry `json:"entries"`
	// DeliveryDays is the promised overall delivery time for the offer.
	DeliveryDays int        `json:"delivery_days"`
	Notes        string     `json:"notes,omitempty"`
	State        OfferState `json:"state"`
	SubmittedAt  time.Time  `json:"submitted_at"`
}

// Validate checks the offer and all of its line entries.
func (o Offer) Validate() error {
	if o.RequestID == "" {
		return &ValidationError{Field: "request_id", Reason: "must not be empty"}
	}
	if o.AdvisorID == "" {
		return &ValidationError{Field: "advisor_id", Reason: "must not be empty"}
	}
	if len(o.Entries) == 0 {
		return &ValidationError{Field: "entries", Reason: "at least one line entry is required"}
	}
	seen := make(map[string]struct{}, len(o.Entries))
	for _, e := range o.Entries {
		if err := e.Validate(); err != nil {
			return err
		}
		if _, dup := seen[e.LineItemID]; dup {
			return &ValidationError{
				Field:  "entries",
				Reason: fmt.Sprintf("duplicate entry for line item %s", e.LineItemID),
			}
		}
		seen[e.LineItemID] = struct{}{}
	}
	return nil
}

// Entry returns the line entry targeting the given line item, if any.
func (o Offer) Entry(lineItemID string) (OfferLineEntry, bool) {
	for _, e := range o.Entries {
		if e.LineItemID == lineItemID {
			return e, true
		}
	}
	return OfferLineEntry{}, false
}

// Coverage returns the fraction of the request's line items this offer has
// entries for. It is a property of the offer as a whole.
func (o Offer) Coverage(totalLineItems int) float64 {
	if totalLineItems <= 0 {
		return 0
	}
	return float64(len(o.Entries)) / float64(totalLineItems)
}
