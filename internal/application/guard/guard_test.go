package guard

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/negotiation-api/internal/domain"
)

func negotiation() *domain.Negotiation {
	return &domain.Negotiation{
		NegotiationID: "neg-1",
		BuyerID:       "buyer-1",
		FarmerID:      "farmer-1",
		Status:        domain.NegotiationActive,
	}
}

func loadOK(n *domain.Negotiation) func(context.Context) (*domain.Negotiation, error) {
	return func(context.Context) (*domain.Negotiation, error) { return n, nil }
}

func identityFor(userID, role string) domain.Identity {
	return domain.AuthenticatedIdentity(&domain.User{UserID: userID, Role: role})
}

func TestRequire_BuyerAllowed(t *testing.T) {
	n, err := Require(context.Background(), identityFor("buyer-1", domain.RoleBuyer), loadOK(negotiation()))
	require.NoError(t, err)
	assert.Equal(t, "neg-1", n.NegotiationID)
}

func TestRequire_FarmerAllowed(t *testing.T) {
	_, err := Require(context.Background(), identityFor("farmer-1", domain.RoleFarmer), loadOK(negotiation()))
	assert.NoError(t, err)
}

func TestRequire_AdminBypass(t *testing.T) {
	_, err := Require(context.Background(), identityFor("someone-else", domain.RoleAdmin), loadOK(negotiation()))
	assert.NoError(t, err)
}

func TestRequire_StrangerForbidden(t *testing.T) {
	n, err := Require(context.Background(), identityFor("stranger", domain.RoleBuyer), loadOK(negotiation()))
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Nil(t, n, "resource must not leak on authorization failure")
}

func TestRequire_GuestForbidden_EvenWithMatchingID(t *testing.T) {
	_, err := Require(context.Background(), domain.GuestIdentity("buyer-1"), loadOK(negotiation()))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRequire_LoaderNotFoundPropagates(t *testing.T) {
	load := func(context.Context) (*domain.Negotiation, error) {
		return nil, fmt.Errorf("negotiation neg-404: %w", domain.ErrNotFound)
	}
	_, err := Require(context.Background(), identityFor("buyer-1", domain.RoleBuyer), load)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequire_WorksForBids(t *testing.T) {
	b := &domain.Bid{BidID: "bid-1", BuyerID: "buyer-1", FarmerID: "farmer-1", Status: domain.BidPending}
	load := func(context.Context) (*domain.Bid, error) { return b, nil }
	got, err := Require(context.Background(), identityFor("farmer-1", domain.RoleFarmer), load)
	require.NoError(t, err)
	assert.Equal(t, "bid-1", got.BidID)
}
