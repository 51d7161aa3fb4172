package model

import "time"

// Allocation is the resolved winner for one line item of a request. At most
// one allocation exists per line item; zero or more line items of a request
// may remain unallocated.
type Allocation struct {
	RequestID  string `json:"request_id"`
	LineItemID string `json:"line_item_id"`
	OfferID    string `json:"offer_id"`
	AdvisorID  string `json:"advisor_id"`

	UnitPrice      float64 `json:"unit_price"`
	Quantity       int     `json:"quantity"`
	WarrantyMonths int     `json:"warranty_months"`
	DeliveryDays   int     `json:"delivery_days"`

	// Score is the line total that won the item.
	Score float64 `json:"score"`
	// Coverage is the winning offer's coverage of the request.
	Coverage  float64   `json:"coverage"`
	AwardedAt time.Time `json:"awarded_at"`
}

// NotificationChannel identifies how a tier of advisors is notified.
type NotificationChannel string

const (
	ChannelWhatsApp NotificationChannel = "whatsapp"
	ChannelPush     NotificationChannel = "push"
)
