package http

import (
	"context"

	"github.com/agrimarket/negotiation-api/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// ProductRepository is the minimal interface the router requires from a product store.
type ProductRepository interface {
	Put(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, productID string) (*domain.Product, error)
}

// NegotiationRepository is the minimal interface the router requires from a negotiation store.
type NegotiationRepository interface {
	Put(ctx context.Context, n *domain.Negotiation) error
	Get(ctx context.Context, negotiationID string) (*domain.Negotiation, error)
	FindActive(ctx context.Context, productID, buyerID, farmerID string) (*domain.Negotiation, error)
	// CloseIf moves active to closed conditionally; ForceClose is the
	// unconditional cascade variant used on bid acceptance.
	CloseIf(ctx context.Context, negotiationID string, agreedPrice *float64) (*domain.Negotiation, error)
	ForceClose(ctx context.Context, negotiationID string, agreedPrice *float64) error
	ListByBuyer(ctx context.Context, userID string) ([]domain.Negotiation, error)
	ListByFarmer(ctx context.Context, userID string) ([]domain.Negotiation, error)
}

// BidRepository is the minimal interface the router requires from a bid store.
type BidRepository interface {
	Put(ctx context.Context, b *domain.Bid) error
	Get(ctx context.Context, bidID string) (*domain.Bid, error)
	// UpdateStatusIf is the conditional status transition; it fails with
	// domain.ErrInvalidState when the stored status is not `expected`.
	UpdateStatusIf(ctx context.Context, bidID, expected, next string, extra map[string]interface{}) (*domain.Bid, error)
	ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.Bid, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Bid, error)
	ListByBuyer(ctx context.Context, userID string) ([]domain.Bid, error)
	ListByFarmer(ctx context.Context, userID string) ([]domain.Bid, error)
}

// NotificationRepository is the minimal interface the router requires from a notification store.
type NotificationRepository interface {
	Put(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}
