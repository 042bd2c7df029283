package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradepost/pkg/models"
)

// EventStream publishes marketplace events as JSON to a Redis channel so
// other processes (bots, dashboards) can react without polling the
// database. Publish failures are logged and swallowed.
type EventStream struct {
	logger  *zap.Logger
	client  *redis.Client
	channel string
}

// NewEventStream wraps an already connected Redis client. The caller owns
// the client's lifecycle and should have ping-probed it before wiring the
// stream in.
func NewEventStream(logger *zap.Logger, client *redis.Client, channel string) *EventStream {
	return &EventStream{logger: logger, client: client, channel: channel}
}

// Event is the wire shape published per transition.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

func (e *EventStream) publish(ctx context.Context, eventType string, payload interface{}) {
	body, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		e.logger.Warn("Failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := e.client.Publish(ctx, e.channel, body).Err(); err != nil {
		e.logger.Warn("Failed to publish event",
			zap.String("type", eventType),
			zap.String("channel", e.channel),
			zap.Error(err))
	}
}

type tradePayload struct {
	Trade   *models.TradeConfirmation `json:"trade"`
	Listing *models.Listing           `json:"listing"`
	Offer   *models.Offer             `json:"offer"`
}

type offerPayload struct {
	Listing *models.Listing `json:"listing"`
	Offer   *models.Offer   `json:"offer"`
}

func (e *EventStream) ListingCreated(ctx context.Context, l *models.Listing) {
	e.publish(ctx, "listing.created", l)
}

func (e *EventStream) ListingUpdated(ctx context.Context, l *models.Listing) {
	e.publish(ctx, "listing.updated", l)
}

func (e *EventStream) ListingRemoved(ctx context.Context, l *models.Listing) {
	e.publish(ctx, "listing.removed", l)
}

func (e *EventStream) OfferReceived(ctx context.Context, l *models.Listing, o *models.Offer) {
	e.publish(ctx, "offer.received", offerPayload{Listing: l, Offer: o})
}

func (e *EventStream) OfferAccepted(ctx context.Context, l *models.Listing, o *models.Offer) {
	e.publish(ctx, "offer.accepted", offerPayload{Listing: l, Offer: o})
}

func (e *EventStream) OfferRejected(ctx context.Context, l *models.Listing, o *models.Offer) {
	e.publish(ctx, "offer.rejected", offerPayload{Listing: l, Offer: o})
}

func (e *EventStream) TradeCompleted(ctx context.Context, t *models.TradeConfirmation, l *models.Listing, o *models.Offer) {
	e.publish(ctx, "trade.completed", tradePayload{Trade: t, Listing: l, Offer: o})
}

func (e *EventStream) TradeCancelled(ctx context.Context, t *models.TradeConfirmation, l *models.Listing, o *models.Offer) {
	e.publish(ctx, "trade.cancelled", tradePayload{Trade: t, Listing: l, Offer: o})
}
