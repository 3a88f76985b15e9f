package domain

import "time"

// Real-time event names pushed through the broadcast gateway.
const (
	EventNewBid            = "newBid"
	EventBidUpdate         = "bidUpdate"
	EventBidNotification   = "bidNotification"
	EventNegotiationClosed = "negotiationClosed"
)

// NewBidEvent is broadcast to a negotiation room when a buyer places a bid.
type NewBidEvent struct {
	ID        string    `json:"_id"`
	User      string    `json:"user"`
	Role      string    `json:"role"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// BidUpdateEvent carries the full bid after a counter or acceptance.
type BidUpdateEvent struct {
	Bid *Bid `json:"bid"`
}

// BidNotificationEvent is pushed to a user's personal channel.
type BidNotificationEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Bid     *Bid   `json:"bid,omitempty"`
}

// NegotiationClosedEvent announces a terminal negotiation transition.
type NegotiationClosedEvent struct {
	NegotiationID string   `json:"negotiationId"`
	Status        string   `json:"status"`
	AgreedPrice   *float64 `json:"agreedPrice,omitempty"`
}
