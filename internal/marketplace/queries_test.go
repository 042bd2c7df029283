package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewind-labs/tradepost/pkg/models"
)

func TestListActiveListings(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")

	selling := createTestListing(t, svc, owner.ID, 5)
	buying, err := svc.CreateListing(context.Background(), owner.ID, CreateListingRequest{
		ItemID:      7,
		Quantity:    2,
		AskingPrice: 50,
		Kind:        models.ListingKindBuying,
	})
	require.NoError(t, err)
	removed := createTestListing(t, svc, owner.ID, 1)
	require.NoError(t, svc.RemoveListing(context.Background(), removed.ID, owner.ID))

	createTestOffer(t, svc, selling.ID, bidder.ID, 100, nil)
	createTestOffer(t, svc, selling.ID, createTestUser(t, db, "other").ID, 110, nil)

	all, err := svc.ListActiveListings(context.Background(), ListingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2, "removed listings stay out of browse results")

	byID := make(map[string]ListingSummary)
	for _, s := range all {
		byID[s.Listing.ID.String()] = s
		require.NotNil(t, s.Owner)
		assert.Equal(t, owner.Username, s.Owner.Username)
	}
	assert.Equal(t, int64(2), byID[selling.ID.String()].PendingOffers)
	assert.Equal(t, int64(0), byID[buying.ID.String()].PendingOffers)

	onlyBuying, err := svc.ListActiveListings(context.Background(), ListingFilter{Kind: models.ListingKindBuying})
	require.NoError(t, err)
	require.Len(t, onlyBuying, 1)
	assert.Equal(t, buying.ID, onlyBuying[0].Listing.ID)

	onlyItem, err := svc.ListActiveListings(context.Background(), ListingFilter{ItemID: 42})
	require.NoError(t, err)
	require.Len(t, onlyItem, 1)
	assert.Equal(t, selling.ID, onlyItem[0].Listing.ID)
}

func TestListOwnListingsIncludesEndOfLife(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")

	active := createTestListing(t, svc, owner.ID, 5)
	removed := createTestListing(t, svc, owner.ID, 1)
	require.NoError(t, svc.RemoveListing(context.Background(), removed.ID, owner.ID))

	own, err := svc.ListOwnListings(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, own, 2)

	ids := map[string]bool{}
	for _, s := range own {
		ids[s.Listing.ID.String()] = true
	}
	assert.True(t, ids[active.ID.String()])
	assert.True(t, ids[removed.ID.String()])
}

func TestGetListing(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	listing := createTestListing(t, svc, owner.ID, 5)

	summary, err := svc.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, summary.Listing.ID)
	require.NotNil(t, summary.Owner)
	assert.Equal(t, owner.ID, summary.Owner.ID)
}

func TestListOffersForListingOwnerOnly(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)

	_, err := svc.CreateOffer(context.Background(), listing.ID, bidder.ID, CreateOfferRequest{
		CoinAmount: 100,
		Items:      []OfferItemRequest{{ItemID: 9, Quantity: 3}},
	})
	require.NoError(t, err)

	offers, err := svc.ListOffersForListing(context.Background(), listing.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Len(t, offers[0].Items, 1, "item lines ride along")

	_, err = svc.ListOffersForListing(context.Background(), listing.ID, bidder.ID)
	assert.True(t, errors.Is(err, ErrNotFoundOrUnauthorized))
}

func TestListUserOffers(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	other := createTestListing(t, svc, owner.ID, 3)

	createTestOffer(t, svc, listing.ID, bidder.ID, 100, nil)
	createTestOffer(t, svc, other.ID, bidder.ID, 50, nil)

	offers, err := svc.ListUserOffers(context.Background(), bidder.ID)
	require.NoError(t, err)
	assert.Len(t, offers, 2)

	none, err := svc.ListUserOffers(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListPendingTradesResolvesRoles(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	stranger := createTestUser(t, db, "stranger")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	_, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)

	asSeller, err := svc.ListPendingTrades(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, asSeller, 1)
	assert.Equal(t, "seller", asSeller[0].Role)

	asBuyer, err := svc.ListPendingTrades(context.Background(), bidder.ID)
	require.NoError(t, err)
	require.Len(t, asBuyer, 1)
	assert.Equal(t, "buyer", asBuyer[0].Role)
	assert.Equal(t, offer.ID, asBuyer[0].Offer.ID)

	uninvolved, err := svc.ListPendingTrades(context.Background(), stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, uninvolved)
}

func TestGetSellerProfile(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")

	createTestListing(t, svc, owner.ID, 5)
	sold := createTestListing(t, svc, owner.ID, 2)
	offer := createTestOffer(t, svc, sold.ID, bidder.ID, 100, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, bidder.ID)
	require.NoError(t, err)

	profile, err := svc.GetSellerProfile(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.ActiveListings)
	assert.Equal(t, int64(1), profile.CompletedSales)
	assert.Equal(t, int64(0), profile.CancelledDeals)
	require.Len(t, profile.RecentSales, 1)
	assert.Equal(t, sold.ID, profile.RecentSales[0].ID)
}
