package bid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/negotiation-api/internal/domain"
)

// --- mocks ---

type mockBidStore struct{ mock.Mock }

func (m *mockBidStore) Put(ctx context.Context, b *domain.Bid) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBidStore) Get(ctx context.Context, bidID string) (*domain.Bid, error) {
	args := m.Called(ctx, bidID)
	if b, _ := args.Get(0).(*domain.Bid); b != nil {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockBidStore) UpdateStatusIf(ctx context.Context, bidID, expected, next string, extra map[string]interface{}) (*domain.Bid, error) {
	args := m.Called(ctx, bidID, expected, next, extra)
	if b, _ := args.Get(0).(*domain.Bid); b != nil {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockBidStore) ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.Bid, error) {
	args := m.Called(ctx, negotiationID)
	return args.Get(0).([]domain.Bid), args.Error(1)
}
func (m *mockBidStore) ListByProduct(ctx context.Context, productID string) ([]domain.Bid, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]domain.Bid), args.Error(1)
}
func (m *mockBidStore) ListByBuyer(ctx context.Context, userID string) ([]domain.Bid, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Bid), args.Error(1)
}
func (m *mockBidStore) ListByFarmer(ctx context.Context, userID string) ([]domain.Bid, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Bid), args.Error(1)
}

type mockNegotiationStore struct{ mock.Mock }

func (m *mockNegotiationStore) Get(ctx context.Context, negotiationID string) (*domain.Negotiation, error) {
	args := m.Called(ctx, negotiationID)
	if n, _ := args.Get(0).(*domain.Negotiation); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockProductStore struct{ mock.Mock }

func (m *mockProductStore) Get(ctx context.Context, productID string) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if p, _ := args.Get(0).(*domain.Product); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCloser struct{ mock.Mock }

func (m *mockCloser) CloseOnBidAcceptance(ctx context.Context, negotiationID string, agreedPrice float64) error {
	return m.Called(ctx, negotiationID, agreedPrice).Error(0)
}

type mockEmitter struct{ mock.Mock }

func (m *mockEmitter) EmitRoom(roomKey, event string, data interface{}) {
	m.Called(roomKey, event, data)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, recipient *domain.User, typ, message string, bid *domain.Bid) error {
	return m.Called(ctx, recipient, typ, message, bid).Error(0)
}

// --- helpers ---

type fixture struct {
	bids     *mockBidStore
	negs     *mockNegotiationStore
	products *mockProductStore
	users    *mockUserStore
	closer   *mockCloser
	emitter  *mockEmitter
	notifier *mockNotifier
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		bids:     &mockBidStore{},
		negs:     &mockNegotiationStore{},
		products: &mockProductStore{},
		users:    &mockUserStore{},
		closer:   &mockCloser{},
		emitter:  &mockEmitter{},
		notifier: &mockNotifier{},
	}
	f.svc = NewService(ServiceDeps{
		BidRepo:         f.bids,
		NegotiationRepo: f.negs,
		ProductRepo:     f.products,
		UserRepo:        f.users,
		Negotiations:    f.closer,
		Gateway:         f.emitter,
		Notifications:   f.notifier,
	})
	return f
}

func buyer() domain.Identity {
	return domain.AuthenticatedIdentity(&domain.User{UserID: "buyer-1", Username: "alice", Role: domain.RoleBuyer})
}

func farmer() domain.Identity {
	return domain.AuthenticatedIdentity(&domain.User{UserID: "farmer-1", Username: "bob", Role: domain.RoleFarmer})
}

func admin() domain.Identity {
	return domain.AuthenticatedIdentity(&domain.User{UserID: "admin-1", Role: domain.RoleAdmin})
}

func activeNegotiation() *domain.Negotiation {
	return &domain.Negotiation{
		NegotiationID: "neg-1",
		ProductID:     "prod-1",
		BuyerID:       "buyer-1",
		FarmerID:      "farmer-1",
		InitialPrice:  100,
		Status:        domain.NegotiationActive,
	}
}

func pendingBid() *domain.Bid {
	return &domain.Bid{
		BidID:         "bid-1",
		NegotiationID: "neg-1",
		ProductID:     "prod-1",
		BuyerID:       "buyer-1",
		FarmerID:      "farmer-1",
		InitialPrice:  100,
		OfferedPrice:  80,
		Status:        domain.BidPending,
	}
}

// --- Place tests ---

func TestPlace_HappyPath(t *testing.T) {
	f := newFixture()
	f.negs.On("Get", mock.Anything, "neg-1").Return(activeNegotiation(), nil)
	f.products.On("Get", mock.Anything, "prod-1").Return(&domain.Product{ProductID: "prod-1", Name: "Apples", IsBiddable: true}, nil)
	f.bids.On("Put", mock.Anything, mock.AnythingOfType("*domain.Bid")).Return(nil)
	f.users.On("Get", mock.Anything, "farmer-1").Return(&domain.User{UserID: "farmer-1"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything, domain.NotificationNewBid, mock.Anything, mock.Anything).Return(nil)
	f.emitter.On("EmitRoom", "neg-1", domain.EventNewBid, mock.Anything).Return()

	b, err := f.svc.Place(context.Background(), buyer(), domain.PlaceBidRequest{NegotiationID: "neg-1", OfferedPrice: 80})

	require.NoError(t, err)
	assert.Equal(t, domain.BidPending, b.Status)
	assert.Equal(t, 80.0, b.OfferedPrice)
	assert.Equal(t, "buyer-1", b.BuyerID)
	assert.Equal(t, "farmer-1", b.FarmerID)
	assert.NotEmpty(t, b.BidID)
	f.bids.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.emitter.AssertExpectations(t)
}

func TestPlace_ClosedNegotiation(t *testing.T) {
	f := newFixture()
	n := activeNegotiation()
	n.Status = domain.NegotiationClosed
	f.negs.On("Get", mock.Anything, "neg-1").Return(n, nil)

	_, err := f.svc.Place(context.Background(), buyer(), domain.PlaceBidRequest{NegotiationID: "neg-1", OfferedPrice: 80})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestPlace_FarmerCannotBid(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Place(context.Background(), farmer(), domain.PlaceBidRequest{NegotiationID: "neg-1", OfferedPrice: 80})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestPlace_WrongBuyer(t *testing.T) {
	f := newFixture()
	f.negs.On("Get", mock.Anything, "neg-1").Return(activeNegotiation(), nil)

	other := domain.AuthenticatedIdentity(&domain.User{UserID: "buyer-2", Role: domain.RoleBuyer})
	_, err := f.svc.Place(context.Background(), other, domain.PlaceBidRequest{NegotiationID: "neg-1", OfferedPrice: 80})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestPlace_NonPositivePrice(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Place(context.Background(), buyer(), domain.PlaceBidRequest{NegotiationID: "neg-1", OfferedPrice: 0})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestPlace_NotificationFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.negs.On("Get", mock.Anything, "neg-1").Return(activeNegotiation(), nil)
	f.products.On("Get", mock.Anything, "prod-1").Return(&domain.Product{ProductID: "prod-1", IsBiddable: true}, nil)
	f.bids.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.users.On("Get", mock.Anything, "farmer-1").Return(&domain.User{UserID: "farmer-1"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	_, err := f.svc.Place(context.Background(), buyer(), domain.PlaceBidRequest{NegotiationID: "neg-1", OfferedPrice: 80})

	require.Error(t, err)
	f.emitter.AssertNotCalled(t, "EmitRoom", mock.Anything, mock.Anything, mock.Anything)
}

// --- Counter tests ---

func TestCounter_HappyPath(t *testing.T) {
	f := newFixture()
	f.bids.On("Get", mock.Anything, "bid-1").Return(pendingBid(), nil)
	countered := pendingBid()
	countered.Status = domain.BidCountered
	countered.OfferedPrice = 90
	f.bids.On("UpdateStatusIf", mock.Anything, "bid-1", domain.BidPending, domain.BidCountered,
		map[string]interface{}{fieldOfferedPrice: 90.0}).Return(countered, nil)
	f.users.On("Get", mock.Anything, "buyer-1").Return(&domain.User{UserID: "buyer-1"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything, domain.NotificationCounterOffer, mock.Anything, countered).Return(nil)
	f.emitter.On("EmitRoom", "neg-1", domain.EventBidUpdate, domain.BidUpdateEvent{Bid: countered}).Return()

	b, err := f.svc.Counter(context.Background(), farmer(), "bid-1", domain.CounterBidRequest{OfferedPrice: 90})

	require.NoError(t, err)
	assert.Equal(t, domain.BidCountered, b.Status)
	assert.Equal(t, 90.0, b.OfferedPrice)
	f.bids.AssertExpectations(t)
	f.emitter.AssertExpectations(t)
}

func TestCounter_BuyerCannotCounter(t *testing.T) {
	f := newFixture()
	f.bids.On("Get", mock.Anything, "bid-1").Return(pendingBid(), nil)

	_, err := f.svc.Counter(context.Background(), buyer(), "bid-1", domain.CounterBidRequest{OfferedPrice: 90})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestCounter_StrangerForbidden(t *testing.T) {
	f := newFixture()
	f.bids.On("Get", mock.Anything, "bid-1").Return(pendingBid(), nil)

	stranger := domain.AuthenticatedIdentity(&domain.User{UserID: "farmer-9", Role: domain.RoleFarmer})
	_, err := f.svc.Counter(context.Background(), stranger, "bid-1", domain.CounterBidRequest{OfferedPrice: 90})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestCounter_AlreadyCountered(t *testing.T) {
	f := newFixture()
	b := pendingBid()
	b.Status = domain.BidCountered
	f.bids.On("Get", mock.Anything, "bid-1").Return(b, nil)
	f.bids.On("UpdateStatusIf", mock.Anything, "bid-1", domain.BidPending, domain.BidCountered, mock.Anything).
		Return(nil, domain.ErrInvalidState)

	_, err := f.svc.Counter(context.Background(), farmer(), "bid-1", domain.CounterBidRequest{OfferedPrice: 90})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

// --- Accept tests ---

func TestAccept_HappyPath_CascadesClosure(t *testing.T) {
	f := newFixture()
	f.bids.On("Get", mock.Anything, "bid-1").Return(pendingBid(), nil)
	accepted := pendingBid()
	accepted.Status = domain.BidAccepted
	f.bids.On("UpdateStatusIf", mock.Anything, "bid-1", domain.BidPending, domain.BidAccepted, mock.Anything).
		Return(accepted, nil)
	f.closer.On("CloseOnBidAcceptance", mock.Anything, "neg-1", 80.0).Return(nil)
	f.users.On("Get", mock.Anything, "buyer-1").Return(&domain.User{UserID: "buyer-1"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything, domain.NotificationBidAccepted, mock.Anything, accepted).Return(nil)
	f.emitter.On("EmitRoom", "neg-1", domain.EventBidUpdate, mock.Anything).Return()

	b, err := f.svc.Accept(context.Background(), farmer(), "bid-1")

	require.NoError(t, err)
	assert.Equal(t, domain.BidAccepted, b.Status)
	f.closer.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestAccept_AlreadyAccepted(t *testing.T) {
	f := newFixture()
	b := pendingBid()
	b.Status = domain.BidAccepted
	f.bids.On("Get", mock.Anything, "bid-1").Return(b, nil)

	_, err := f.svc.Accept(context.Background(), farmer(), "bid-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	f.bids.AssertNotCalled(t, "UpdateStatusIf", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A racing acceptance passes the pre-read but loses the conditional write.
func TestAccept_LosesConditionalWrite(t *testing.T) {
	f := newFixture()
	f.bids.On("Get", mock.Anything, "bid-1").Return(pendingBid(), nil)
	f.bids.On("UpdateStatusIf", mock.Anything, "bid-1", domain.BidPending, domain.BidAccepted, mock.Anything).
		Return(nil, domain.ErrInvalidState)

	_, err := f.svc.Accept(context.Background(), farmer(), "bid-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	f.closer.AssertNotCalled(t, "CloseOnBidAcceptance", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccept_AdminBypassesParticipantCheck(t *testing.T) {
	f := newFixture()
	f.bids.On("Get", mock.Anything, "bid-1").Return(pendingBid(), nil)
	accepted := pendingBid()
	accepted.Status = domain.BidAccepted
	f.bids.On("UpdateStatusIf", mock.Anything, "bid-1", domain.BidPending, domain.BidAccepted, mock.Anything).
		Return(accepted, nil)
	f.closer.On("CloseOnBidAcceptance", mock.Anything, "neg-1", 80.0).Return(nil)
	f.users.On("Get", mock.Anything, "buyer-1").Return(&domain.User{UserID: "buyer-1"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.emitter.On("EmitRoom", mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := f.svc.Accept(context.Background(), admin(), "bid-1")

	require.NoError(t, err)
}

// --- AcceptByBuyer tests ---

func TestAcceptByBuyer_HappyPath(t *testing.T) {
	f := newFixture()
	countered := pendingBid()
	countered.Status = domain.BidCountered
	countered.OfferedPrice = 90
	f.bids.On("Get", mock.Anything, "bid-1").Return(countered, nil)
	accepted := pendingBid()
	accepted.Status = domain.BidAccepted
	accepted.OfferedPrice = 90
	f.bids.On("UpdateStatusIf", mock.Anything, "bid-1", domain.BidCountered, domain.BidAccepted, mock.Anything).
		Return(accepted, nil)
	f.closer.On("CloseOnBidAcceptance", mock.Anything, "neg-1", 90.0).Return(nil)
	f.users.On("Get", mock.Anything, "farmer-1").Return(&domain.User{UserID: "farmer-1"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything, domain.NotificationBidAccepted, mock.Anything, accepted).Return(nil)
	f.emitter.On("EmitRoom", "neg-1", domain.EventBidUpdate, mock.Anything).Return()

	b, err := f.svc.AcceptByBuyer(context.Background(), buyer(), "bid-1")

	require.NoError(t, err)
	assert.Equal(t, domain.BidAccepted, b.Status)
	f.closer.AssertExpectations(t)
}

func TestAcceptByBuyer_FarmerForbidden(t *testing.T) {
	f := newFixture()
	countered := pendingBid()
	countered.Status = domain.BidCountered
	f.bids.On("Get", mock.Anything, "bid-1").Return(countered, nil)

	_, err := f.svc.AcceptByBuyer(context.Background(), farmer(), "bid-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

// --- listing tests ---

func TestListByNegotiation_GuestForbidden(t *testing.T) {
	f := newFixture()
	f.negs.On("Get", mock.Anything, "neg-1").Return(activeNegotiation(), nil)

	_, err := f.svc.ListByNegotiation(context.Background(), domain.GuestIdentity("g1"), "neg-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestListForUser_GuestForbidden(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.ListForUser(context.Background(), domain.GuestIdentity("g1"), domain.BidQuery{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestListForUser_RoleMismatchForbidden(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.ListForUser(context.Background(), buyer(), domain.BidQuery{Role: domain.RoleFarmer})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestListForUser_FiltersAndPaginates(t *testing.T) {
	f := newFixture()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stored := []domain.Bid{
		{BidID: "b1", BuyerID: "buyer-1", Status: domain.BidPending, CreatedAt: base},
		{BidID: "b2", BuyerID: "buyer-1", Status: domain.BidAccepted, CreatedAt: base.Add(time.Hour)},
		{BidID: "b3", BuyerID: "buyer-1", Status: domain.BidRejected, CreatedAt: base.Add(2 * time.Hour)},
	}
	f.bids.On("ListByBuyer", mock.Anything, "buyer-1").Return(stored, nil)

	items, total, err := f.svc.ListForUser(context.Background(), buyer(), domain.BidQuery{
		Statuses: []string{domain.BidPending, domain.BidAccepted},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	// Default sort is created_at descending.
	assert.Equal(t, "b2", items[0].BidID)
	assert.Equal(t, "b1", items[1].BidID)
}

func TestListForUser_SecondPage(t *testing.T) {
	f := newFixture()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stored := make([]domain.Bid, 0, 5)
	for i := 0; i < 5; i++ {
		stored = append(stored, domain.Bid{
			BidID:     string(rune('a' + i)),
			BuyerID:   "buyer-1",
			Status:    domain.BidPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.bids.On("ListByBuyer", mock.Anything, "buyer-1").Return(stored, nil)

	items, total, err := f.svc.ListForUser(context.Background(), buyer(), domain.BidQuery{Page: 2, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].BidID)
	assert.Equal(t, "b", items[1].BidID)
}

func TestListForUserByAdmin_NonAdminForbidden(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.ListForUserByAdmin(context.Background(), buyer(), domain.BidQuery{UserID: "buyer-2"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestListForUserByAdmin_MissingTarget(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.ListForUserByAdmin(context.Background(), admin(), domain.BidQuery{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestListForUserByAdmin_MergesBothSides(t *testing.T) {
	f := newFixture()
	asBuyer := []domain.Bid{{BidID: "b1", BuyerID: "u1", Status: domain.BidPending}}
	asFarmer := []domain.Bid{
		{BidID: "b1", BuyerID: "u1", Status: domain.BidPending}, // duplicate
		{BidID: "b2", FarmerID: "u1", Status: domain.BidPending},
	}
	f.bids.On("ListByBuyer", mock.Anything, "u1").Return(asBuyer, nil)
	f.bids.On("ListByFarmer", mock.Anything, "u1").Return(asFarmer, nil)

	items, total, err := f.svc.ListForUserByAdmin(context.Background(), admin(), domain.BidQuery{UserID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
}
