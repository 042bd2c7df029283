package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradepost/pkg/models"
)

// Discord posts marketplace events to a Discord webhook as embeds. Delivery
// is best-effort: any failure is logged and swallowed so a webhook outage
// can never fail a trade transition.
type Discord struct {
	logger     *zap.Logger
	webhookURL string
	client     *http.Client
	itemName   ItemNameResolver
}

// NewDiscord creates a webhook notifier. resolver may be nil, in which case
// items are rendered by their raw identifier.
func NewDiscord(logger *zap.Logger, webhookURL string, resolver ItemNameResolver) *Discord {
	if resolver == nil {
		resolver = func(itemID int64) string { return fmt.Sprintf("item #%d", itemID) }
	}
	return &Discord{
		logger:     logger,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		itemName:   resolver,
	}
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

const (
	colorGreen  = 0x2ecc71
	colorBlue   = 0x3498db
	colorOrange = 0xe67e22
	colorRed    = 0xe74c3c
)

func (d *Discord) ListingCreated(ctx context.Context, l *models.Listing) {
	d.send(ctx, discordEmbed{
		Title: "New listing posted",
		Color: colorGreen,
		Fields: []discordEmbedField{
			{Name: "Item", Value: d.itemName(l.ItemID), Inline: true},
			{Name: "Quantity", Value: quantityLabel(l.Quantity), Inline: true},
			{Name: "Asking price", Value: fmt.Sprintf("%d coins", l.AskingPrice), Inline: true},
			{Name: "Kind", Value: l.Kind, Inline: true},
		},
	})
}

func (d *Discord) ListingUpdated(ctx context.Context, l *models.Listing) {
	d.send(ctx, discordEmbed{
		Title: "Listing updated",
		Color: colorBlue,
		Fields: []discordEmbedField{
			{Name: "Item", Value: d.itemName(l.ItemID), Inline: true},
			{Name: "Quantity", Value: quantityLabel(l.Quantity), Inline: true},
			{Name: "Asking price", Value: fmt.Sprintf("%d coins", l.AskingPrice), Inline: true},
		},
	})
}

func (d *Discord) ListingRemoved(ctx context.Context, l *models.Listing) {
	d.send(ctx, discordEmbed{
		Title:       "Listing removed",
		Description: d.itemName(l.ItemID),
		Color:       colorOrange,
	})
}

func (d *Discord) OfferReceived(ctx context.Context, l *models.Listing, o *models.Offer) {
	fields := []discordEmbedField{
		{Name: "Item", Value: d.itemName(l.ItemID), Inline: true},
		{Name: "Coins offered", Value: fmt.Sprintf("%d", o.CoinAmount), Inline: true},
	}
	if o.QuantityRequested != nil {
		fields = append(fields, discordEmbedField{
			Name: "Quantity requested", Value: fmt.Sprintf("%d", *o.QuantityRequested), Inline: true,
		})
	}
	for _, line := range o.Items {
		fields = append(fields, discordEmbedField{
			Name: "In trade", Value: fmt.Sprintf("%dx %s", line.Quantity, d.itemName(line.ItemID)), Inline: true,
		})
	}
	d.send(ctx, discordEmbed{Title: "New offer received", Color: colorBlue, Fields: fields})
}

func (d *Discord) OfferAccepted(ctx context.Context, l *models.Listing, o *models.Offer) {
	d.send(ctx, discordEmbed{
		Title:       "Offer accepted",
		Description: fmt.Sprintf("%s for %d coins", d.itemName(l.ItemID), o.CoinAmount),
		Color:       colorGreen,
	})
}

func (d *Discord) OfferRejected(ctx context.Context, l *models.Listing, o *models.Offer) {
	d.send(ctx, discordEmbed{
		Title:       "Offer declined",
		Description: d.itemName(l.ItemID),
		Color:       colorRed,
	})
}

func (d *Discord) TradeCompleted(ctx context.Context, t *models.TradeConfirmation, l *models.Listing, o *models.Offer) {
	fields := []discordEmbedField{
		{Name: "Item", Value: d.itemName(l.ItemID), Inline: true},
		{Name: "Coins", Value: fmt.Sprintf("%d", o.CoinAmount), Inline: true},
	}
	if t.Partial() {
		fields = append(fields, discordEmbedField{
			Name: "Quantity", Value: fmt.Sprintf("%d", *t.AcceptedQuantity), Inline: true,
		})
	}
	d.send(ctx, discordEmbed{Title: "Trade completed", Color: colorGreen, Fields: fields})
}

func (d *Discord) TradeCancelled(ctx context.Context, t *models.TradeConfirmation, l *models.Listing, o *models.Offer) {
	d.send(ctx, discordEmbed{
		Title:       "Trade cancelled",
		Description: fmt.Sprintf("%s is back on the market", d.itemName(l.ItemID)),
		Color:       colorOrange,
	})
}

func (d *Discord) send(ctx context.Context, embed discordEmbed) {
	embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		d.logger.Warn("Failed to encode webhook payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("Failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("Webhook delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.logger.Warn("Webhook delivery rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("title", embed.Title))
	}
}

func quantityLabel(q int64) string {
	if q == models.QuantityUnlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", q)
}
