package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewind-labs/tradepost/pkg/metrics"
	"github.com/tradewind-labs/tradepost/pkg/models"
)

// ConfirmTrade sets the caller's confirmation slot on a pending trade. The
// seller is the listing owner, the buyer the offer creator. When the second
// slot lands, the trade completes and an exhausted listing goes to sold in
// the same transaction. Returns the updated confirmation so callers can see
// which side is still outstanding.
func (s *Service) ConfirmTrade(ctx context.Context, tradeID, actorID uuid.UUID) (*models.TradeConfirmation, error) {
	start := time.Now()
	defer func() { metrics.TransitionLatency.Observe(time.Since(start).Seconds()) }()

	listingID, err := s.listingIDForTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(listingID)
	defer unlock()

	var (
		trade     models.TradeConfirmation
		listing   models.Listing
		offer     models.Offer
		completed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadTradeParties(tx, tradeID, &trade, &listing, &offer); err != nil {
			return err
		}
		if trade.Status != models.TradeStatusPending {
			return invalidState("trade %s is %s", trade.ID, trade.Status)
		}

		now := time.Now()
		var slot string
		switch actorID {
		case listing.OwnerID:
			if trade.SellerConfirmed {
				return alreadyConfirmed("seller")
			}
			trade.SellerConfirmed = true
			trade.SellerConfirmedAt = &now
			slot = "seller_confirmed"
		case offer.UserID:
			if trade.BuyerConfirmed {
				return alreadyConfirmed("buyer")
			}
			trade.BuyerConfirmed = true
			trade.BuyerConfirmedAt = &now
			slot = "buyer_confirmed"
		default:
			return notFoundOrUnauthorized("trade")
		}

		updates := map[string]interface{}{
			slot:         true,
			slot + "_at": now,
			"updated_at": now,
		}
		completed = trade.SellerConfirmed && trade.BuyerConfirmed
		if completed {
			trade.Status = models.TradeStatusCompleted
			trade.CompletedAt = &now
			updates["status"] = models.TradeStatusCompleted
			updates["completed_at"] = now
		}
		trade.UpdatedAt = now

		// Guard on the pre-image of the slot being set, so a racing confirm
		// from the same side loses with AlreadyConfirmed instead of stamping
		// the slot twice.
		result := tx.Model(&models.TradeConfirmation{}).
			Where("id = ? AND status = ? AND "+slot+" = ?", tradeID, models.TradeStatusPending, false).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to confirm trade: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return alreadyConfirmed(slot[:len(slot)-len("_confirmed")])
		}

		// A trade that exhausted its listing parked it in pending; completion
		// is the only path from there to sold. A non-exhausting partial trade
		// took its units at acceptance, and completing it changes nothing on
		// the listing even if another trade's reservation holds it pending.
		if completed && trade.Exhausted {
			result := tx.Model(&models.Listing{}).
				Where("id = ? AND status = ?", listing.ID, models.ListingStatusPending).
				Updates(map[string]interface{}{
					"status":     models.ListingStatusSold,
					"updated_at": now,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to mark listing sold: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return invalidState("listing %s cannot transition to sold", listing.ID)
			}
			listing.Status = models.ListingStatusSold
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		metrics.TradesFinalized.WithLabelValues(models.TradeStatusCompleted).Inc()
		s.logger.Info("Trade completed",
			zap.String("trade_id", trade.ID.String()),
			zap.String("listing_id", listing.ID.String()))
		s.notifier.TradeCompleted(ctx, &trade, &listing, &offer)
	} else {
		s.logger.Info("Trade confirmation recorded",
			zap.String("trade_id", trade.ID.String()),
			zap.Bool("seller_confirmed", trade.SellerConfirmed),
			zap.Bool("buyer_confirmed", trade.BuyerConfirmed))
	}
	return &trade, nil
}

// CancelTrade cancels a pending trade before anyone has confirmed. Either
// party may cancel. The listing reverts to active with any partially
// consumed quantity restored, and the offer reopens as pending for a fresh
// decision by the owner.
func (s *Service) CancelTrade(ctx context.Context, tradeID, actorID uuid.UUID) error {
	return s.cancelTrade(ctx, tradeID, &actorID, false)
}

// ForceCancelTrade is the moderation override: it unwinds a pending trade
// exactly as CancelTrade does, but skips the party and confirmation-slot
// checks. Terminal trades still cannot be unwound.
func (s *Service) ForceCancelTrade(ctx context.Context, tradeID uuid.UUID) error {
	return s.cancelTrade(ctx, tradeID, nil, true)
}

func (s *Service) cancelTrade(ctx context.Context, tradeID uuid.UUID, actorID *uuid.UUID, force bool) error {
	start := time.Now()
	defer func() { metrics.TransitionLatency.Observe(time.Since(start).Seconds()) }()

	listingID, err := s.listingIDForTrade(ctx, tradeID)
	if err != nil {
		return err
	}

	unlock := s.locks.acquire(listingID)
	defer unlock()

	var (
		trade   models.TradeConfirmation
		listing models.Listing
		offer   models.Offer
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadTradeParties(tx, tradeID, &trade, &listing, &offer); err != nil {
			return err
		}
		if trade.Status != models.TradeStatusPending {
			return invalidState("trade %s is %s", trade.ID, trade.Status)
		}
		if !force {
			if *actorID != listing.OwnerID && *actorID != offer.UserID {
				return notFoundOrUnauthorized("trade")
			}
			// The cancellation window closes the instant one side confirms.
			if trade.SellerConfirmed || trade.BuyerConfirmed {
				return invalidState("trade %s already has a confirmation", trade.ID)
			}
		}

		now := time.Now()
		query := tx.Model(&models.TradeConfirmation{}).
			Where("id = ? AND status = ?", tradeID, models.TradeStatusPending)
		if !force {
			query = query.Where("seller_confirmed = ? AND buyer_confirmed = ?", false, false)
		}
		result := query.Updates(map[string]interface{}{
			"status":     models.TradeStatusCancelled,
			"updated_at": now,
		})
		if result.Error != nil {
			return fmt.Errorf("failed to cancel trade: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return invalidState("trade %s already has a confirmation", trade.ID)
		}
		trade.Status = models.TradeStatusCancelled
		trade.UpdatedAt = now

		// An exhausting acceptance parked the listing without touching
		// quantity, so cancelling it just releases the park. A non-exhausting
		// partial decremented quantity at acceptance and must give the units
		// back; if a later exhausting acceptance holds the listing pending,
		// that reservation stays in place and only the quantity is restored.
		if trade.Exhausted {
			if err := revertToActive(tx, &listing, 0); err != nil {
				return err
			}
		} else {
			var restored int64
			if trade.Partial() && !listing.Unlimited() {
				restored = *trade.AcceptedQuantity
			}
			if listing.Status == models.ListingStatusActive {
				if err := revertToActive(tx, &listing, restored); err != nil {
					return err
				}
			} else if err := restoreQuantity(tx, &listing, restored); err != nil {
				return err
			}
		}

		result = tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offer.ID, models.OfferStatusAccepted).
			Updates(map[string]interface{}{
				"status":     models.OfferStatusPending,
				"updated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to reopen offer: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return invalidState("offer %s is not accepted", offer.ID)
		}
		offer.Status = models.OfferStatusPending
		return nil
	})
	if err != nil {
		return err
	}

	metrics.TradesFinalized.WithLabelValues(models.TradeStatusCancelled).Inc()
	s.logger.Info("Trade cancelled",
		zap.String("trade_id", trade.ID.String()),
		zap.String("listing_id", listing.ID.String()),
		zap.Bool("forced", force))
	s.notifier.TradeCancelled(ctx, &trade, &listing, &offer)
	return nil
}

// loadTradeParties loads a trade with its listing and offer inside tx.
func loadTradeParties(tx *gorm.DB, tradeID uuid.UUID, trade *models.TradeConfirmation, listing *models.Listing, offer *models.Offer) error {
	if err := tx.Where("id = ?", tradeID).First(trade).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return notFoundOrUnauthorized("trade")
		}
		return fmt.Errorf("failed to find trade: %w", err)
	}
	if err := tx.Where("id = ?", trade.ListingID).First(listing).Error; err != nil {
		return fmt.Errorf("failed to find listing for trade: %w", err)
	}
	if err := tx.Where("id = ?", trade.OfferID).First(offer).Error; err != nil {
		return fmt.Errorf("failed to find offer for trade: %w", err)
	}
	return nil
}

// listingIDForTrade resolves the listing a trade belongs to, so the listing
// lock can be taken before the transaction starts.
func (s *Service) listingIDForTrade(ctx context.Context, tradeID uuid.UUID) (uuid.UUID, error) {
	var trade models.TradeConfirmation
	if err := s.db.WithContext(ctx).Select("id", "listing_id").
		Where("id = ?", tradeID).First(&trade).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return uuid.Nil, notFoundOrUnauthorized("trade")
		}
		return uuid.Nil, fmt.Errorf("failed to find trade: %w", err)
	}
	return trade.ListingID, nil
}
