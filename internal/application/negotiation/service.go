package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrimarket/negotiation-api/internal/application/guard"
	"github.com/agrimarket/negotiation-api/internal/domain"
	"github.com/agrimarket/negotiation-api/internal/pkg/id"
)

type Service interface {
	// Create opens a negotiation for the caller (a buyer) on a product.
	// Idempotent: an existing active negotiation for the same
	// (product, buyer, farmer) triple is returned instead of a duplicate.
	Create(ctx context.Context, caller domain.Identity, req domain.CreateNegotiationRequest) (*domain.Negotiation, bool, error)
	Get(ctx context.Context, caller domain.Identity, negotiationID string) (*domain.Negotiation, error)
	ListForUser(ctx context.Context, caller domain.Identity) ([]domain.Negotiation, error)
	// Accept is the farmer's direct acceptance, optionally stamping the
	// agreed price. Reject closes without one; either participant may call it.
	Accept(ctx context.Context, caller domain.Identity, negotiationID string, amount *float64) (*domain.Negotiation, error)
	Reject(ctx context.Context, caller domain.Identity, negotiationID string) (*domain.Negotiation, error)
	// CloseOnBidAcceptance is the internal cascade fired when a bid reaches
	// accepted. Idempotent: closure is forced regardless of current status.
	CloseOnBidAcceptance(ctx context.Context, negotiationID string, agreedPrice float64) error
}

type negotiationStore interface {
	Put(ctx context.Context, n *domain.Negotiation) error
	Get(ctx context.Context, negotiationID string) (*domain.Negotiation, error)
	FindActive(ctx context.Context, productID, buyerID, farmerID string) (*domain.Negotiation, error)
	CloseIf(ctx context.Context, negotiationID string, agreedPrice *float64) (*domain.Negotiation, error)
	ForceClose(ctx context.Context, negotiationID string, agreedPrice *float64) error
	ListByBuyer(ctx context.Context, userID string) ([]domain.Negotiation, error)
	ListByFarmer(ctx context.Context, userID string) ([]domain.Negotiation, error)
}

type productStore interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type roomEmitter interface {
	EmitRoom(roomKey, event string, data interface{})
}

type notifier interface {
	Notify(ctx context.Context, recipient *domain.User, typ, message string, bid *domain.Bid) error
}

type service struct {
	repo          negotiationStore
	products      productStore
	users         userStore
	gateway       roomEmitter
	notifications notifier
}

type ServiceDeps struct {
	NegotiationRepo negotiationStore
	ProductRepo     productStore
	UserRepo        userStore
	Gateway         roomEmitter
	Notifications   notifier
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:          deps.NegotiationRepo,
		products:      deps.ProductRepo,
		users:         deps.UserRepo,
		gateway:       deps.Gateway,
		notifications: deps.Notifications,
	}
}

func (s *service) Create(ctx context.Context, caller domain.Identity, req domain.CreateNegotiationRequest) (*domain.Negotiation, bool, error) {
	if caller.Guest() || caller.Role != domain.RoleBuyer {
		return nil, false, fmt.Errorf("only buyers open negotiations: %w", domain.ErrForbidden)
	}

	p, err := s.products.Get(ctx, req.ProductID)
	if err != nil {
		return nil, false, err
	}
	if !p.IsBiddable || p.FarmerID == "" {
		return nil, false, fmt.Errorf("product not available for negotiation: %w", domain.ErrInvalidState)
	}
	if p.FarmerID == caller.UserID {
		return nil, false, fmt.Errorf("cannot negotiate on own product: %w", domain.ErrInvalidState)
	}

	existing, err := s.repo.FindActive(ctx, p.ProductID, caller.UserID, p.FarmerID)
	if err == nil {
		return existing, false, nil
	}
	// Only a confirmed absence opens a new negotiation; a store failure here
	// could otherwise mint a duplicate active triple.
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("look up active negotiation: %w", err)
	}

	now := time.Now().UTC()
	n := &domain.Negotiation{
		NegotiationID: id.New(),
		ProductID:     p.ProductID,
		BuyerID:       caller.UserID,
		FarmerID:      p.FarmerID,
		InitialPrice:  p.Price,
		Status:        domain.NegotiationActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (s *service) Get(ctx context.Context, caller domain.Identity, negotiationID string) (*domain.Negotiation, error) {
	return guard.Require(ctx, caller, func(ctx context.Context) (*domain.Negotiation, error) {
		return s.repo.Get(ctx, negotiationID)
	})
}

func (s *service) ListForUser(ctx context.Context, caller domain.Identity) ([]domain.Negotiation, error) {
	switch {
	case caller.Guest():
		return nil, fmt.Errorf("guests have no negotiations: %w", domain.ErrForbidden)
	case caller.Role == domain.RoleFarmer:
		return s.repo.ListByFarmer(ctx, caller.UserID)
	default:
		return s.repo.ListByBuyer(ctx, caller.UserID)
	}
}

func (s *service) Accept(ctx context.Context, caller domain.Identity, negotiationID string, amount *float64) (*domain.Negotiation, error) {
	n, err := guard.Require(ctx, caller, func(ctx context.Context) (*domain.Negotiation, error) {
		return s.repo.Get(ctx, negotiationID)
	})
	if err != nil {
		return nil, err
	}
	if !caller.Admin() && caller.UserID != n.FarmerID {
		return nil, fmt.Errorf("only the farmer accepts a negotiation: %w", domain.ErrForbidden)
	}

	closed, err := s.repo.CloseIf(ctx, n.NegotiationID, amount)
	if err != nil {
		return nil, err
	}

	buyerRec, err := s.users.Get(ctx, closed.BuyerID)
	if err != nil {
		return nil, err
	}
	price := closed.InitialPrice
	if closed.AgreedPrice != nil {
		price = *closed.AgreedPrice
	}
	msg := fmt.Sprintf("Farmer accepted the negotiation at %.2f", price)
	if err := s.notifications.Notify(ctx, buyerRec, domain.NotificationBidAccepted, msg, nil); err != nil {
		return nil, err
	}

	s.emitClosed(closed)
	return closed, nil
}

func (s *service) Reject(ctx context.Context, caller domain.Identity, negotiationID string) (*domain.Negotiation, error) {
	n, err := guard.Require(ctx, caller, func(ctx context.Context) (*domain.Negotiation, error) {
		return s.repo.Get(ctx, negotiationID)
	})
	if err != nil {
		return nil, err
	}

	closed, err := s.repo.CloseIf(ctx, n.NegotiationID, nil)
	if err != nil {
		return nil, err
	}
	s.emitClosed(closed)
	return closed, nil
}

func (s *service) CloseOnBidAcceptance(ctx context.Context, negotiationID string, agreedPrice float64) error {
	if err := s.repo.ForceClose(ctx, negotiationID, &agreedPrice); err != nil {
		return err
	}
	s.gateway.EmitRoom(negotiationID, domain.EventNegotiationClosed, domain.NegotiationClosedEvent{
		NegotiationID: negotiationID,
		Status:        domain.NegotiationClosed,
		AgreedPrice:   &agreedPrice,
	})
	return nil
}

func (s *service) emitClosed(n *domain.Negotiation) {
	s.gateway.EmitRoom(n.NegotiationID, domain.EventNegotiationClosed, domain.NegotiationClosedEvent{
		NegotiationID: n.NegotiationID,
		Status:        n.Status,
		AgreedPrice:   n.AgreedPrice,
	})
}
