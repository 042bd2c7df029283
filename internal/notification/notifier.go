package notification

import (
	"context"

	"github.com/tradewind-labs/tradepost/pkg/models"
)

// Notifier delivers best-effort notifications about marketplace events.
// Implementations must never fail the calling transition: errors are logged
// and swallowed. Delivery happens after the state change has committed.
type Notifier interface {
	ListingCreated(ctx context.Context, listing *models.Listing)
	ListingUpdated(ctx context.Context, listing *models.Listing)
	ListingRemoved(ctx context.Context, listing *models.Listing)
	OfferReceived(ctx context.Context, listing *models.Listing, offer *models.Offer)
	OfferAccepted(ctx context.Context, listing *models.Listing, offer *models.Offer)
	OfferRejected(ctx context.Context, listing *models.Listing, offer *models.Offer)
	TradeCompleted(ctx context.Context, trade *models.TradeConfirmation, listing *models.Listing, offer *models.Offer)
	TradeCancelled(ctx context.Context, trade *models.TradeConfirmation, listing *models.Listing, offer *models.Offer)
}

// ItemNameResolver maps an opaque item reference to a display name. The
// catalog is an external collaborator; the zero resolver is fine.
type ItemNameResolver func(itemID int64) string

// Nop is a Notifier that does nothing. Used in tests and when no transport
// is configured.
type Nop struct{}

func (Nop) ListingCreated(context.Context, *models.Listing)  {}
func (Nop) ListingUpdated(context.Context, *models.Listing)  {}
func (Nop) ListingRemoved(context.Context, *models.Listing)  {}
func (Nop) OfferReceived(context.Context, *models.Listing, *models.Offer)  {}
func (Nop) OfferAccepted(context.Context, *models.Listing, *models.Offer)  {}
func (Nop) OfferRejected(context.Context, *models.Listing, *models.Offer)  {}
func (Nop) TradeCompleted(context.Context, *models.TradeConfirmation, *models.Listing, *models.Offer) {
}
func (Nop) TradeCancelled(context.Context, *models.TradeConfirmation, *models.Listing, *models.Offer) {
}

// Multi fans out to several notifiers in order.
type Multi []Notifier

func (m Multi) ListingCreated(ctx context.Context, l *models.Listing) {
	for _, n := range m {
		n.ListingCreated(ctx, l)
	}
}

func (m Multi) ListingUpdated(ctx context.Context, l *models.Listing) {
	for _, n := range m {
		n.ListingUpdated(ctx, l)
	}
}

func (m Multi) ListingRemoved(ctx context.Context, l *models.Listing) {
	for _, n := range m {
		n.ListingRemoved(ctx, l)
	}
}

func (m Multi) OfferReceived(ctx context.Context, l *models.Listing, o *models.Offer) {
	for _, n := range m {
		n.OfferReceived(ctx, l, o)
	}
}

func (m Multi) OfferAccepted(ctx context.Context, l *models.Listing, o *models.Offer) {
	for _, n := range m {
		n.OfferAccepted(ctx, l, o)
	}
}

func (m Multi) OfferRejected(ctx context.Context, l *models.Listing, o *models.Offer) {
	for _, n := range m {
		n.OfferRejected(ctx, l, o)
	}
}

func (m Multi) TradeCompleted(ctx context.Context, t *models.TradeConfirmation, l *models.Listing, o *models.Offer) {
	for _, n := range m {
		n.TradeCompleted(ctx, t, l, o)
	}
}

func (m Multi) TradeCancelled(ctx context.Context, t *models.TradeConfirmation, l *models.Listing, o *models.Offer) {
	for _, n := range m {
		n.TradeCancelled(ctx, t, l, o)
	}
}
