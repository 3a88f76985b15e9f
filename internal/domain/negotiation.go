package domain

import "time"

// Negotiation statuses. A negotiation is a bounded conversation between one
// buyer and one farmer over one product's price; it only ever moves forward
// from active to closed.
const (
	NegotiationActive = "active"
	NegotiationClosed = "closed"
)

type Negotiation struct {
	NegotiationID string    `json:"id" dynamodbav:"negotiation_id"`
	ProductID     string    `json:"product_id" dynamodbav:"product_id"`
	BuyerID       string    `json:"buyer_id" dynamodbav:"buyer_id"`
	FarmerID      string    `json:"farmer_id" dynamodbav:"farmer_id"`
	InitialPrice  float64   `json:"initial_price" dynamodbav:"initial_price"`
	Status        string    `json:"status" dynamodbav:"status"`
	AgreedPrice   *float64  `json:"agreed_price,omitempty" dynamodbav:"agreed_price"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Participant reports whether userID is one of the two negotiation parties.
func (n *Negotiation) Participant(userID string) bool {
	return userID != "" && (userID == n.BuyerID || userID == n.FarmerID)
}

type CreateNegotiationRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

type AcceptNegotiationRequest struct {
	Amount *float64 `json:"amount" validate:"omitempty,gt=0"`
}
