package domain

import "time"

// Notification types emitted by the bid and negotiation lifecycles.
const (
	NotificationNewBid       = "new_bid"
	NotificationCounterOffer = "counter_offer"
	NotificationBidAccepted  = "bid_accepted"
)

// Notification is the durable, per-user inbox entry written for every
// lifecycle event. Real-time delivery is best-effort; this record is the
// source of truth clients reconcile against after reconnecting.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	Type           string    `json:"type" dynamodbav:"type"`
	Message        string    `json:"message" dynamodbav:"message"`
	BidID          *string   `json:"bid_id,omitempty" dynamodbav:"bid_id"`
	Readed         int       `json:"readed" dynamodbav:"readed"` // legacy field name preserved
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}
