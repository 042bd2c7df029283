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

// OfferItemRequest is one in-kind line of a new offer.
type OfferItemRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

// CreateOfferRequest is the validated input for CreateOffer.
type CreateOfferRequest struct {
	CoinAmount        int64              `json:"coin_amount" validate:"min=0"`
	QuantityRequested *int64             `json:"quantity_requested,omitempty" validate:"omitempty,gt=0"`
	Items             []OfferItemRequest `json:"item_offers" validate:"omitempty,max=20,dive"`
	Message           string             `json:"message" validate:"omitempty,max=500"`
}

// CreateOffer submits a pending offer from bidderID against an active
// listing. The listing owner is notified best-effort after commit.
func (s *Service) CreateOffer(ctx context.Context, listingID, bidderID uuid.UUID, req CreateOfferRequest) (*models.Offer, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(listingID)
	defer unlock()

	var listing models.Listing
	var offer *models.Offer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", listingID).First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundOrUnauthorized("listing")
			}
			return fmt.Errorf("failed to find listing: %w", err)
		}
		if listing.Status != models.ListingStatusActive {
			return listingNotActive(listingID)
		}
		if listing.OwnerID == bidderID {
			return selfTradeForbidden()
		}
		if req.QuantityRequested != nil && !listing.Unlimited() && *req.QuantityRequested > listing.Quantity {
			return validationError("requested quantity %d exceeds listing quantity %d",
				*req.QuantityRequested, listing.Quantity)
		}
		if len(req.Items) > 0 && !listing.AcceptsItems {
			return validationError("listing does not accept items in trade")
		}

		now := time.Now()
		offer = &models.Offer{
			ID:                uuid.New(),
			ListingID:         listingID,
			UserID:            bidderID,
			CoinAmount:        req.CoinAmount,
			QuantityRequested: req.QuantityRequested,
			Message:           s.sanitize.Sanitize(req.Message),
			Status:            models.OfferStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		for _, line := range req.Items {
			offer.Items = append(offer.Items, models.OfferItem{
				OfferID:  offer.ID,
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
			})
		}

		if err := tx.Create(offer).Error; err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("listing_id", listingID.String()))
	s.notifier.OfferReceived(ctx, &listing, offer)
	return offer, nil
}

// AcceptOffer accepts a pending offer for the whole listing. Atomically:
// the offer becomes accepted, the listing is reserved (pending), a trade
// confirmation is created, and every other pending offer on the listing is
// rejected. Returns the new confirmation.
func (s *Service) AcceptOffer(ctx context.Context, offerID, ownerID uuid.UUID) (*models.TradeConfirmation, error) {
	return s.acceptOffer(ctx, offerID, ownerID, nil)
}

// AcceptPartialOffer accepts acceptedQuantity units of a pending offer,
// leaving the remainder of the listing open. Competing pending offers
// survive unless this acceptance exhausts the listing.
func (s *Service) AcceptPartialOffer(ctx context.Context, offerID, ownerID uuid.UUID, acceptedQuantity int64) (*models.TradeConfirmation, error) {
	if acceptedQuantity <= 0 {
		return nil, validationError("accepted quantity must be positive")
	}
	return s.acceptOffer(ctx, offerID, ownerID, &acceptedQuantity)
}

func (s *Service) acceptOffer(ctx context.Context, offerID, ownerID uuid.UUID, acceptedQuantity *int64) (*models.TradeConfirmation, error) {
	start := time.Now()
	defer func() { metrics.TransitionLatency.Observe(time.Since(start).Seconds()) }()

	listingID, err := s.listingIDForOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(listingID)
	defer unlock()

	var (
		listing      models.Listing
		offer        models.Offer
		confirmation *models.TradeConfirmation
		rejected     []models.Offer
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", offerID, models.OfferStatusPending).
			First(&offer).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundOrUnauthorized("offer")
			}
			return fmt.Errorf("failed to find offer: %w", err)
		}
		if err := tx.Where("id = ? AND owner_id = ?", offer.ListingID, ownerID).
			First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundOrUnauthorized("offer")
			}
			return fmt.Errorf("failed to find listing: %w", err)
		}
		// A listing already reserved by an earlier acceptance cannot be
		// accepted against again.
		if listing.Status != models.ListingStatusActive {
			return listingNotActive(listing.ID)
		}

		consumed := exhaustAll
		if acceptedQuantity != nil {
			q := *acceptedQuantity
			if offer.QuantityRequested != nil && q > *offer.QuantityRequested {
				return validationError("accepted quantity %d exceeds requested quantity %d",
					q, *offer.QuantityRequested)
			}
			if !listing.Unlimited() && q > listing.Quantity {
				return validationError("accepted quantity %d exceeds remaining listing quantity %d",
					q, listing.Quantity)
			}
			consumed = q
		}

		result := tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offerID, models.OfferStatusPending).
			Updates(map[string]interface{}{
				"status":     models.OfferStatusAccepted,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to accept offer: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFoundOrUnauthorized("offer")
		}
		offer.Status = models.OfferStatusAccepted

		exhausted, err := reserveForTrade(tx, &listing, consumed)
		if err != nil {
			return err
		}

		now := time.Now()
		confirmation = &models.TradeConfirmation{
			ID:               uuid.New(),
			OfferID:          offer.ID,
			ListingID:        listing.ID,
			AcceptedQuantity: acceptedQuantity,
			Exhausted:        exhausted,
			Status:           models.TradeStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(confirmation).Error; err != nil {
			return fmt.Errorf("failed to create trade confirmation: %w", err)
		}

		// Exclusive acceptance: an exhausting acceptance rejects every other
		// pending offer in the same atomic step. A non-exhausting partial
		// acceptance leaves competitors untouched.
		if exhausted {
			if err := tx.Where("listing_id = ? AND id <> ? AND status = ?",
				listing.ID, offer.ID, models.OfferStatusPending).
				Find(&rejected).Error; err != nil {
				return fmt.Errorf("failed to list competing offers: %w", err)
			}
			if len(rejected) > 0 {
				result := tx.Model(&models.Offer{}).
					Where("listing_id = ? AND id <> ? AND status = ?",
						listing.ID, offer.ID, models.OfferStatusPending).
					Updates(map[string]interface{}{
						"status":     models.OfferStatusRejected,
						"updated_at": now,
					})
				if result.Error != nil {
					return fmt.Errorf("failed to reject competing offers: %w", result.Error)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OffersResolved.WithLabelValues(models.OfferStatusAccepted).Inc()
	s.logger.Info("Offer accepted",
		zap.String("offer_id", offer.ID.String()),
		zap.String("listing_id", listing.ID.String()),
		zap.String("confirmation_id", confirmation.ID.String()),
		zap.Bool("partial", acceptedQuantity != nil),
		zap.Int("competitors_rejected", len(rejected)))

	s.notifier.OfferAccepted(ctx, &listing, &offer)
	for i := range rejected {
		metrics.OffersResolved.WithLabelValues(models.OfferStatusRejected).Inc()
		rejected[i].Status = models.OfferStatusRejected
		s.notifier.OfferRejected(ctx, &listing, &rejected[i])
	}
	return confirmation, nil
}

// RejectOffer rejects a pending offer. Only the listing owner may reject;
// the listing itself is untouched.
func (s *Service) RejectOffer(ctx context.Context, offerID, ownerID uuid.UUID) error {
	listingID, err := s.listingIDForOffer(ctx, offerID)
	if err != nil {
		return err
	}

	unlock := s.locks.acquire(listingID)
	defer unlock()

	var (
		listing models.Listing
		offer   models.Offer
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", offerID, models.OfferStatusPending).
			First(&offer).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundOrUnauthorized("offer")
			}
			return fmt.Errorf("failed to find offer: %w", err)
		}
		if err := tx.Where("id = ? AND owner_id = ?", offer.ListingID, ownerID).
			First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundOrUnauthorized("offer")
			}
			return fmt.Errorf("failed to find listing: %w", err)
		}

		result := tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offerID, models.OfferStatusPending).
			Updates(map[string]interface{}{
				"status":     models.OfferStatusRejected,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to reject offer: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFoundOrUnauthorized("offer")
		}
		offer.Status = models.OfferStatusRejected
		return nil
	})
	if err != nil {
		return err
	}

	metrics.OffersResolved.WithLabelValues(models.OfferStatusRejected).Inc()
	s.logger.Info("Offer rejected", zap.String("offer_id", offerID.String()))
	s.notifier.OfferRejected(ctx, &listing, &offer)
	return nil
}

// listingIDForOffer resolves the listing an offer targets, so the listing
// lock can be taken before the transaction starts.
func (s *Service) listingIDForOffer(ctx context.Context, offerID uuid.UUID) (uuid.UUID, error) {
	var offer models.Offer
	if err := s.db.WithContext(ctx).Select("id", "listing_id").
		Where("id = ?", offerID).First(&offer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return uuid.Nil, notFoundOrUnauthorized("offer")
		}
		return uuid.Nil, fmt.Errorf("failed to find offer: %w", err)
	}
	return offer.ListingID, nil
}
