package domain

import "time"

// Bid statuses. Counter-offers mutate the bid in place; the latest state of
// the record is authoritative. Accepted is terminal.
const (
	BidPending   = "pending"
	BidCountered = "countered"
	BidAccepted  = "accepted"
	BidRejected  = "rejected"
)

type Bid struct {
	BidID         string    `json:"id" dynamodbav:"bid_id"`
	NegotiationID string    `json:"negotiation_id" dynamodbav:"negotiation_id"`
	ProductID     string    `json:"product_id" dynamodbav:"product_id"`
	BuyerID       string    `json:"buyer_id" dynamodbav:"buyer_id"`
	FarmerID      string    `json:"farmer_id" dynamodbav:"farmer_id"`
	InitialPrice  float64   `json:"initial_price" dynamodbav:"initial_price"`
	OfferedPrice  float64   `json:"offered_price" dynamodbav:"offered_price"`
	Status        string    `json:"status" dynamodbav:"bid_status"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Participant reports whether userID is the bid's buyer or farmer.
func (b *Bid) Participant(userID string) bool {
	return userID != "" && (userID == b.BuyerID || userID == b.FarmerID)
}

type PlaceBidRequest struct {
	NegotiationID string  `json:"negotiation_id" validate:"required"`
	OfferedPrice  float64 `json:"offered_price" validate:"required,gt=0"`
}

type CounterBidRequest struct {
	OfferedPrice float64 `json:"offered_price" validate:"required,gt=0"`
}

// BidQuery is the filter grammar shared by the user-scoped and admin
// bid listing endpoints.
type BidQuery struct {
	UserID        string   // resolved from claims, or from the path for admins
	Role          string   // buyer|farmer — which side of the bid UserID is on
	Statuses      []string // empty means any
	ProductID     string
	NegotiationID string
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
	Sort          string // field name, leading '-' for descending
}
