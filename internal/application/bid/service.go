package bid

import (
	"context"
	"fmt"
	"time"

	"github.com/agrimarket/negotiation-api/internal/application/guard"
	"github.com/agrimarket/negotiation-api/internal/domain"
	"github.com/agrimarket/negotiation-api/internal/pkg/id"
	"github.com/agrimarket/negotiation-api/internal/pkg/query"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldOfferedPrice = "offered_price"
)

type Service interface {
	// Place creates a pending bid on an active negotiation. Only the
	// negotiation's buyer may place one.
	Place(ctx context.Context, caller domain.Identity, req domain.PlaceBidRequest) (*domain.Bid, error)
	// Counter is the farmer's in-place counter-offer on a pending bid.
	Counter(ctx context.Context, caller domain.Identity, bidID string, req domain.CounterBidRequest) (*domain.Bid, error)
	// Accept is the farmer accepting a pending bid; AcceptByBuyer is the
	// buyer accepting a counter-offer. Both cascade negotiation closure.
	Accept(ctx context.Context, caller domain.Identity, bidID string) (*domain.Bid, error)
	AcceptByBuyer(ctx context.Context, caller domain.Identity, bidID string) (*domain.Bid, error)

	ListByProduct(ctx context.Context, productID string) ([]domain.Bid, error)
	ListByNegotiation(ctx context.Context, caller domain.Identity, negotiationID string) ([]domain.Bid, error)
	// ListForUser serves the caller's dashboard; ListForUserByAdmin is the
	// admin cross-user variant with an explicit target in q.UserID.
	ListForUser(ctx context.Context, caller domain.Identity, q domain.BidQuery) ([]domain.Bid, int, error)
	ListForUserByAdmin(ctx context.Context, caller domain.Identity, q domain.BidQuery) ([]domain.Bid, int, error)
}

type bidStore interface {
	Put(ctx context.Context, b *domain.Bid) error
	Get(ctx context.Context, bidID string) (*domain.Bid, error)
	UpdateStatusIf(ctx context.Context, bidID, expected, next string, extra map[string]interface{}) (*domain.Bid, error)
	ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.Bid, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Bid, error)
	ListByBuyer(ctx context.Context, userID string) ([]domain.Bid, error)
	ListByFarmer(ctx context.Context, userID string) ([]domain.Bid, error)
}

type negotiationStore interface {
	Get(ctx context.Context, negotiationID string) (*domain.Negotiation, error)
}

type productStore interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type negotiationCloser interface {
	CloseOnBidAcceptance(ctx context.Context, negotiationID string, agreedPrice float64) error
}

type roomEmitter interface {
	EmitRoom(roomKey, event string, data interface{})
}

type notifier interface {
	Notify(ctx context.Context, recipient *domain.User, typ, message string, bid *domain.Bid) error
}

type service struct {
	bids          bidStore
	negotiations  negotiationStore
	products      productStore
	users         userStore
	closer        negotiationCloser
	gateway       roomEmitter
	notifications notifier
}

type ServiceDeps struct {
	BidRepo         bidStore
	NegotiationRepo negotiationStore
	ProductRepo     productStore
	UserRepo        userStore
	Negotiations    negotiationCloser
	Gateway         roomEmitter
	Notifications   notifier
}

func NewService(deps ServiceDeps) Service {
	return &service{
		bids:          deps.BidRepo,
		negotiations:  deps.NegotiationRepo,
		products:      deps.ProductRepo,
		users:         deps.UserRepo,
		closer:        deps.Negotiations,
		gateway:       deps.Gateway,
		notifications: deps.Notifications,
	}
}

func (s *service) Place(ctx context.Context, caller domain.Identity, req domain.PlaceBidRequest) (*domain.Bid, error) {
	if caller.Guest() || caller.Role != domain.RoleBuyer {
		return nil, fmt.Errorf("only buyers place bids: %w", domain.ErrForbidden)
	}
	if req.OfferedPrice <= 0 {
		return nil, fmt.Errorf("offered price must be positive: %w", domain.ErrBadRequest)
	}

	n, err := s.negotiations.Get(ctx, req.NegotiationID)
	if err != nil {
		return nil, err
	}
	if n.Status != domain.NegotiationActive {
		return nil, fmt.Errorf("negotiation is closed: %w", domain.ErrInvalidState)
	}
	if caller.UserID != n.BuyerID {
		return nil, fmt.Errorf("not the buyer on this negotiation: %w", domain.ErrForbidden)
	}

	p, err := s.products.Get(ctx, n.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsBiddable {
		return nil, fmt.Errorf("product not available for bidding: %w", domain.ErrInvalidState)
	}

	now := time.Now().UTC()
	b := &domain.Bid{
		BidID:         id.New(),
		NegotiationID: n.NegotiationID,
		ProductID:     n.ProductID,
		BuyerID:       n.BuyerID,
		FarmerID:      n.FarmerID,
		InitialPrice:  n.InitialPrice,
		OfferedPrice:  req.OfferedPrice,
		Status:        domain.BidPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.bids.Put(ctx, b); err != nil {
		return nil, err
	}

	farmer, err := s.users.Get(ctx, n.FarmerID)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("%s offered %.2f for %s", caller.DisplayName(), b.OfferedPrice, p.Name)
	if err := s.notifications.Notify(ctx, farmer, domain.NotificationNewBid, msg, b); err != nil {
		return nil, err
	}

	s.gateway.EmitRoom(n.NegotiationID, domain.EventNewBid, domain.NewBidEvent{
		ID:        b.BidID,
		User:      caller.DisplayName(),
		Role:      caller.Role,
		Amount:    b.OfferedPrice,
		Timestamp: b.CreatedAt,
	})
	return b, nil
}

func (s *service) Counter(ctx context.Context, caller domain.Identity, bidID string, req domain.CounterBidRequest) (*domain.Bid, error) {
	if req.OfferedPrice <= 0 {
		return nil, fmt.Errorf("offered price must be positive: %w", domain.ErrBadRequest)
	}
	b, err := s.loadForFarmer(ctx, caller, bidID)
	if err != nil {
		return nil, err
	}

	updated, err := s.bids.UpdateStatusIf(ctx, b.BidID, domain.BidPending, domain.BidCountered, map[string]interface{}{
		fieldOfferedPrice: req.OfferedPrice,
	})
	if err != nil {
		return nil, err
	}

	buyer, err := s.users.Get(ctx, updated.BuyerID)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Farmer countered with %.2f", updated.OfferedPrice)
	if err := s.notifications.Notify(ctx, buyer, domain.NotificationCounterOffer, msg, updated); err != nil {
		return nil, err
	}

	s.gateway.EmitRoom(updated.NegotiationID, domain.EventBidUpdate, domain.BidUpdateEvent{Bid: updated})
	return updated, nil
}

func (s *service) Accept(ctx context.Context, caller domain.Identity, bidID string) (*domain.Bid, error) {
	b, err := s.loadForFarmer(ctx, caller, bidID)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, b, domain.BidPending, b.BuyerID)
}

func (s *service) AcceptByBuyer(ctx context.Context, caller domain.Identity, bidID string) (*domain.Bid, error) {
	b, err := guard.Require(ctx, caller, func(ctx context.Context) (*domain.Bid, error) {
		return s.bids.Get(ctx, bidID)
	})
	if err != nil {
		return nil, err
	}
	if !caller.Admin() && caller.UserID != b.BuyerID {
		return nil, fmt.Errorf("only the buyer accepts a counter-offer: %w", domain.ErrForbidden)
	}
	return s.accept(ctx, b, domain.BidCountered, b.FarmerID)
}

// accept runs the conditional transition to accepted and its cascade. The
// conditional write, not the pre-read, decides the winner of a race; the
// pre-read exists only to produce the friendlier "already accepted" message.
func (s *service) accept(ctx context.Context, b *domain.Bid, expected, notifyUserID string) (*domain.Bid, error) {
	if b.Status == domain.BidAccepted {
		return nil, fmt.Errorf("bid already accepted: %w", domain.ErrInvalidState)
	}

	updated, err := s.bids.UpdateStatusIf(ctx, b.BidID, expected, domain.BidAccepted, nil)
	if err != nil {
		return nil, err
	}

	if err := s.closer.CloseOnBidAcceptance(ctx, updated.NegotiationID, updated.OfferedPrice); err != nil {
		return nil, err
	}

	recipient, err := s.users.Get(ctx, notifyUserID)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Bid of %.2f accepted", updated.OfferedPrice)
	if err := s.notifications.Notify(ctx, recipient, domain.NotificationBidAccepted, msg, updated); err != nil {
		return nil, err
	}

	s.gateway.EmitRoom(updated.NegotiationID, domain.EventBidUpdate, domain.BidUpdateEvent{Bid: updated})
	return updated, nil
}

func (s *service) loadForFarmer(ctx context.Context, caller domain.Identity, bidID string) (*domain.Bid, error) {
	b, err := guard.Require(ctx, caller, func(ctx context.Context) (*domain.Bid, error) {
		return s.bids.Get(ctx, bidID)
	})
	if err != nil {
		return nil, err
	}
	if !caller.Admin() && caller.UserID != b.FarmerID {
		return nil, fmt.Errorf("only the farmer may do this: %w", domain.ErrForbidden)
	}
	return b, nil
}

func (s *service) ListByProduct(ctx context.Context, productID string) ([]domain.Bid, error) {
	return s.bids.ListByProduct(ctx, productID)
}

func (s *service) ListByNegotiation(ctx context.Context, caller domain.Identity, negotiationID string) ([]domain.Bid, error) {
	if _, err := guard.Require(ctx, caller, func(ctx context.Context) (*domain.Negotiation, error) {
		return s.negotiations.Get(ctx, negotiationID)
	}); err != nil {
		return nil, err
	}
	return s.bids.ListByNegotiation(ctx, negotiationID)
}

func (s *service) ListForUser(ctx context.Context, caller domain.Identity, q domain.BidQuery) ([]domain.Bid, int, error) {
	if caller.Guest() {
		return nil, 0, fmt.Errorf("guests have no bids: %w", domain.ErrForbidden)
	}
	q.UserID = caller.UserID
	if q.Role == "" {
		q.Role = caller.Role
	}
	if q.Role != caller.Role && !caller.Admin() {
		return nil, 0, fmt.Errorf("role filter does not match caller role: %w", domain.ErrForbidden)
	}
	return s.runQuery(ctx, q)
}

func (s *service) ListForUserByAdmin(ctx context.Context, caller domain.Identity, q domain.BidQuery) ([]domain.Bid, int, error) {
	if !caller.Admin() {
		return nil, 0, fmt.Errorf("admin only: %w", domain.ErrForbidden)
	}
	if q.UserID == "" {
		return nil, 0, fmt.Errorf("target user id required: %w", domain.ErrBadRequest)
	}
	return s.runQuery(ctx, q)
}

// runQuery fetches the user's bids (one GSI per side, merged when the side
// is unspecified), then applies the filter, sort and pagination window.
func (s *service) runQuery(ctx context.Context, q domain.BidQuery) ([]domain.Bid, int, error) {
	var bids []domain.Bid
	switch q.Role {
	case domain.RoleBuyer:
		got, err := s.bids.ListByBuyer(ctx, q.UserID)
		if err != nil {
			return nil, 0, err
		}
		bids = got
	case domain.RoleFarmer:
		got, err := s.bids.ListByFarmer(ctx, q.UserID)
		if err != nil {
			return nil, 0, err
		}
		bids = got
	case "", domain.RoleAdmin:
		// No side given: the user may appear on either field.
		asBuyer, err := s.bids.ListByBuyer(ctx, q.UserID)
		if err != nil {
			return nil, 0, err
		}
		asFarmer, err := s.bids.ListByFarmer(ctx, q.UserID)
		if err != nil {
			return nil, 0, err
		}
		bids = mergeBids(asBuyer, asFarmer)
	default:
		return nil, 0, fmt.Errorf("unknown role filter %q: %w", q.Role, domain.ErrBadRequest)
	}

	keep := buildFilter(q)
	filtered := make([]domain.Bid, 0, len(bids))
	for _, b := range bids {
		if keep(&b) {
			filtered = append(filtered, b)
		}
	}

	sortBids(filtered, query.ParseSort(q.Sort, "created_at"))
	total := len(filtered)
	page := query.NormalizePage(q.Page, q.Limit)
	return query.Slice(filtered, page), total, nil
}
