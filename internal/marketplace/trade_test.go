package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewind-labs/tradepost/pkg/models"
)

func TestConfirmTradeBothSides(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, int64Ptr(5))

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPending, reloadListing(t, db, listing.ID).Status)

	// Seller confirms first: still pending, waiting on the buyer.
	updated, err := svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusPending, updated.Status)
	assert.True(t, updated.SellerConfirmed)
	assert.False(t, updated.BuyerConfirmed)
	assert.NotNil(t, updated.SellerConfirmedAt)

	// Buyer completes the handshake.
	updated, err = svc.ConfirmTrade(context.Background(), trade.ID, bidder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusCompleted, updated.Status)
	assert.True(t, updated.BuyerConfirmed)
	assert.NotNil(t, updated.CompletedAt)

	// Completion and the sold transition land atomically.
	assert.Equal(t, models.ListingStatusSold, reloadListing(t, db, listing.ID).Status)
}

func TestConfirmTradeSameSideTwice(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	assert.True(t, errors.Is(err, ErrAlreadyConfirmed))
}

func TestConfirmTradeStranger(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	stranger := createTestUser(t, db, "stranger")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmTrade(context.Background(), trade.ID, stranger.ID)
	assert.True(t, errors.Is(err, ErrNotFoundOrUnauthorized))
}

func TestConfirmTradeMissing(t *testing.T) {
	svc, db := setupService(t)
	user := createTestUser(t, db, "user")

	_, err := svc.ConfirmTrade(context.Background(), uuid.New(), user.ID)
	assert.True(t, errors.Is(err, ErrNotFoundOrUnauthorized))
}

func TestConfirmCompletedTrade(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, bidder.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestPartialTradeCompletionKeepsListingActive(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 10)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 40, int64Ptr(4))

	trade, err := svc.AcceptPartialOffer(context.Background(), offer.ID, owner.ID, 4)
	require.NoError(t, err)

	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)
	updated, err := svc.ConfirmTrade(context.Background(), trade.ID, bidder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusCompleted, updated.Status)

	// The remainder is still for sale.
	reloaded := reloadListing(t, db, listing.ID)
	assert.Equal(t, models.ListingStatusActive, reloaded.Status)
	assert.Equal(t, int64(6), reloaded.Quantity)
}

func TestCancelTrade(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)

	require.NoError(t, svc.CancelTrade(context.Background(), trade.ID, bidder.ID))

	assert.Equal(t, models.TradeStatusCancelled, reloadTrade(t, db, trade.ID).Status)
	reloaded := reloadListing(t, db, listing.ID)
	assert.Equal(t, models.ListingStatusActive, reloaded.Status)
	assert.Equal(t, int64(5), reloaded.Quantity)
	// The offer reopens for a fresh decision.
	assert.Equal(t, models.OfferStatusPending, reloadOffer(t, db, offer.ID).Status)
}

func TestCancelTradeRestoresPartialQuantity(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 10)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 40, int64Ptr(4))

	trade, err := svc.AcceptPartialOffer(context.Background(), offer.ID, owner.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), reloadListing(t, db, listing.ID).Quantity)

	require.NoError(t, svc.CancelTrade(context.Background(), trade.ID, owner.ID))

	reloaded := reloadListing(t, db, listing.ID)
	assert.Equal(t, models.ListingStatusActive, reloaded.Status)
	assert.Equal(t, int64(10), reloaded.Quantity)
}

func TestCancelPartialAfterExhaustingAcceptance(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	listing := createTestListing(t, svc, owner.ID, 10)

	offerA := createTestOffer(t, svc, listing.ID, a.ID, 40, int64Ptr(4))
	offerB := createTestOffer(t, svc, listing.ID, b.ID, 60, nil)

	tradeA, err := svc.AcceptPartialOffer(context.Background(), offerA.ID, owner.ID, 4)
	require.NoError(t, err)
	tradeB, err := svc.AcceptPartialOffer(context.Background(), offerB.ID, owner.ID, 6)
	require.NoError(t, err)
	require.True(t, tradeB.Exhausted)
	require.Equal(t, models.ListingStatusPending, reloadListing(t, db, listing.ID).Status)

	// Cancelling the earlier non-exhausting trade gives its units back
	// without releasing the reservation the exhausting trade holds.
	require.NoError(t, svc.CancelTrade(context.Background(), tradeA.ID, a.ID))
	reloaded := reloadListing(t, db, listing.ID)
	assert.Equal(t, models.ListingStatusPending, reloaded.Status)
	assert.Equal(t, int64(10), reloaded.Quantity)
	assert.Equal(t, models.OfferStatusPending, reloadOffer(t, db, offerA.ID).Status)

	// The surviving trade still completes and sells the listing.
	_, err = svc.ConfirmTrade(context.Background(), tradeB.ID, owner.ID)
	require.NoError(t, err)
	updated, err := svc.ConfirmTrade(context.Background(), tradeB.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusCompleted, updated.Status)
	assert.Equal(t, models.ListingStatusSold, reloadListing(t, db, listing.ID).Status)
}

func TestCancelExhaustingTradeKeepsEarlierReservation(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	listing := createTestListing(t, svc, owner.ID, 10)

	offerA := createTestOffer(t, svc, listing.ID, a.ID, 40, int64Ptr(4))
	offerB := createTestOffer(t, svc, listing.ID, b.ID, 60, nil)

	tradeA, err := svc.AcceptPartialOffer(context.Background(), offerA.ID, owner.ID, 4)
	require.NoError(t, err)
	tradeB, err := svc.AcceptPartialOffer(context.Background(), offerB.ID, owner.ID, 6)
	require.NoError(t, err)

	// Cancelling the exhausting trade releases only its own park; the
	// earlier trade's units stay reserved.
	require.NoError(t, svc.CancelTrade(context.Background(), tradeB.ID, b.ID))
	reloaded := reloadListing(t, db, listing.ID)
	assert.Equal(t, models.ListingStatusActive, reloaded.Status)
	assert.Equal(t, int64(6), reloaded.Quantity)

	// Completing the non-exhausting trade leaves the listing active.
	_, err = svc.ConfirmTrade(context.Background(), tradeA.ID, owner.ID)
	require.NoError(t, err)
	updated, err := svc.ConfirmTrade(context.Background(), tradeA.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusCompleted, updated.Status)
	reloaded = reloadListing(t, db, listing.ID)
	assert.Equal(t, models.ListingStatusActive, reloaded.Status)
	assert.Equal(t, int64(6), reloaded.Quantity)
}

func TestPartialTradeCompletionWhileListingParked(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	listing := createTestListing(t, svc, owner.ID, 10)

	offerA := createTestOffer(t, svc, listing.ID, a.ID, 40, int64Ptr(4))
	offerB := createTestOffer(t, svc, listing.ID, b.ID, 60, nil)

	tradeA, err := svc.AcceptPartialOffer(context.Background(), offerA.ID, owner.ID, 4)
	require.NoError(t, err)
	tradeB, err := svc.AcceptPartialOffer(context.Background(), offerB.ID, owner.ID, 6)
	require.NoError(t, err)

	// A non-exhausting trade completing must not claim another trade's park.
	_, err = svc.ConfirmTrade(context.Background(), tradeA.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), tradeA.ID, a.ID)
	require.NoError(t, err)
	reloaded := reloadListing(t, db, listing.ID)
	assert.Equal(t, models.ListingStatusPending, reloaded.Status)
	assert.Equal(t, int64(6), reloaded.Quantity)

	// The exhausting trade's own completion performs the sold transition.
	_, err = svc.ConfirmTrade(context.Background(), tradeB.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), tradeB.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, reloadListing(t, db, listing.ID).Status)
}

func TestCancelTradeAfterConfirmation(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)

	err = svc.CancelTrade(context.Background(), trade.ID, bidder.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))

	// Nothing moved.
	assert.Equal(t, models.TradeStatusPending, reloadTrade(t, db, trade.ID).Status)
	assert.Equal(t, models.ListingStatusPending, reloadListing(t, db, listing.ID).Status)
	assert.Equal(t, models.OfferStatusAccepted, reloadOffer(t, db, offer.ID).Status)
}

func TestCancelTradeStranger(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	stranger := createTestUser(t, db, "stranger")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)

	err = svc.CancelTrade(context.Background(), trade.ID, stranger.ID)
	assert.True(t, errors.Is(err, ErrNotFoundOrUnauthorized))
}

func TestForceCancelTradeBypassesConfirmation(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)

	// A party cannot cancel after a confirmation, but moderation can.
	require.NoError(t, svc.ForceCancelTrade(context.Background(), trade.ID))

	assert.Equal(t, models.TradeStatusCancelled, reloadTrade(t, db, trade.ID).Status)
	assert.Equal(t, models.ListingStatusActive, reloadListing(t, db, listing.ID).Status)
	assert.Equal(t, models.OfferStatusPending, reloadOffer(t, db, offer.ID).Status)
}

func TestForceCancelCompletedTrade(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmTrade(context.Background(), trade.ID, bidder.ID)
	require.NoError(t, err)

	err = svc.ForceCancelTrade(context.Background(), trade.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, models.ListingStatusSold, reloadListing(t, db, listing.ID).Status)
}

func TestCancelledTradeCanBeReaccepted(t *testing.T) {
	svc, db := setupService(t)
	owner := createTestUser(t, db, "seller")
	bidder := createTestUser(t, db, "bidder")
	listing := createTestListing(t, svc, owner.ID, 5)
	offer := createTestOffer(t, svc, listing.ID, bidder.ID, 120, nil)

	trade, err := svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	require.NoError(t, svc.CancelTrade(context.Background(), trade.ID, owner.ID))

	// The reopened offer can go through the whole cycle again.
	_, err = svc.AcceptOffer(context.Background(), offer.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAccepted, reloadOffer(t, db, offer.ID).Status)
	assert.Equal(t, models.ListingStatusPending, reloadListing(t, db, listing.ID).Status)
}
