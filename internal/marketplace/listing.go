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

// CreateListingRequest is the validated input for CreateListing.
type CreateListingRequest struct {
	ItemID               int64  `json:"item_id" validate:"required,gt=0"`
	Quantity             int64  `json:"quantity" validate:"required"`
	AskingPrice          int64  `json:"asking_price" validate:"required,gt=0"`
	AcceptsItems         bool   `json:"accepts_items"`
	AcceptsPartialOffers bool   `json:"accepts_partial_offers"`
	Kind                 string `json:"kind" validate:"required,oneof=selling buying"`
	Notes                string `json:"notes" validate:"omitempty,max=500"`
}

// UpdateListingRequest is the validated input for UpdateListing. All fields
// are applied; callers send the current value for anything they keep.
type UpdateListingRequest struct {
	Quantity             int64  `json:"quantity" validate:"required"`
	AskingPrice          int64  `json:"asking_price" validate:"required,gt=0"`
	AcceptsItems         bool   `json:"accepts_items"`
	AcceptsPartialOffers bool   `json:"accepts_partial_offers"`
	Notes                string `json:"notes" validate:"omitempty,max=500"`
}

func validQuantity(q int64) bool {
	return q > 0 || q == models.QuantityUnlimited
}

// CreateListing posts a new active listing owned by ownerID.
func (s *Service) CreateListing(ctx context.Context, ownerID uuid.UUID, req CreateListingRequest) (*models.Listing, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if !validQuantity(req.Quantity) {
		return nil, validationError("quantity must be positive or %d for unlimited", models.QuantityUnlimited)
	}

	now := time.Now()
	listing := &models.Listing{
		ID:                   uuid.New(),
		OwnerID:              ownerID,
		ItemID:               req.ItemID,
		Quantity:             req.Quantity,
		AskingPrice:          req.AskingPrice,
		AcceptsItems:         req.AcceptsItems,
		AcceptsPartialOffers: req.AcceptsPartialOffers,
		Kind:                 req.Kind,
		Notes:                s.sanitize.Sanitize(req.Notes),
		Status:               models.ListingStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	metrics.ListingsCreated.WithLabelValues(listing.Kind).Inc()
	s.logger.Info("Listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("kind", listing.Kind))
	s.notifier.ListingCreated(ctx, listing)
	return listing, nil
}

// UpdateListing mutates quantity/price/flags/notes on an active listing
// owned by ownerID.
func (s *Service) UpdateListing(ctx context.Context, listingID, ownerID uuid.UUID, req UpdateListingRequest) (*models.Listing, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if !validQuantity(req.Quantity) {
		return nil, validationError("quantity must be positive or %d for unlimited", models.QuantityUnlimited)
	}

	unlock := s.locks.acquire(listingID)
	defer unlock()

	var listing models.Listing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND owner_id = ? AND status = ?",
			listingID, ownerID, models.ListingStatusActive).First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundOrUnauthorized("listing")
			}
			return fmt.Errorf("failed to find listing: %w", err)
		}

		listing.Quantity = req.Quantity
		listing.AskingPrice = req.AskingPrice
		listing.AcceptsItems = req.AcceptsItems
		listing.AcceptsPartialOffers = req.AcceptsPartialOffers
		listing.Notes = s.sanitize.Sanitize(req.Notes)
		listing.UpdatedAt = time.Now()

		if err := tx.Save(&listing).Error; err != nil {
			return fmt.Errorf("failed to save listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.ListingUpdated(ctx, &listing)
	return &listing, nil
}

// RemoveListing marks an active listing removed. Only the owner may remove,
// and only while active.
func (s *Service) RemoveListing(ctx context.Context, listingID, ownerID uuid.UUID) error {
	unlock := s.locks.acquire(listingID)
	defer unlock()

	var listing models.Listing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND owner_id = ? AND status = ?",
			listingID, ownerID, models.ListingStatusActive).First(&listing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundOrUnauthorized("listing")
			}
			return fmt.Errorf("failed to find listing: %w", err)
		}

		result := tx.Model(&models.Listing{}).
			Where("id = ? AND status = ?", listingID, models.ListingStatusActive).
			Updates(map[string]interface{}{
				"status":     models.ListingStatusRemoved,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to remove listing: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFoundOrUnauthorized("listing")
		}
		listing.Status = models.ListingStatusRemoved
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Listing removed", zap.String("listing_id", listingID.String()))
	s.notifier.ListingRemoved(ctx, &listing)
	return nil
}

// CloseListing forces a listing to closed regardless of owner or status.
// Administrative override for the moderation surface; the caller records
// the audit entry.
func (s *Service) CloseListing(ctx context.Context, listingID uuid.UUID) error {
	unlock := s.locks.acquire(listingID)
	defer unlock()

	result := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND status <> ?", listingID, models.ListingStatusClosed).
		Updates(map[string]interface{}{
			"status":     models.ListingStatusClosed,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to close listing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundOrUnauthorized("listing")
	}

	s.logger.Info("Listing closed by moderation", zap.String("listing_id", listingID.String()))
	return nil
}

// reserveForTrade consumes quantity from an active listing as part of an
// acceptance, inside the caller's transaction and listing lock. consumed ==
// exhaustAll (or >= the remaining quantity) parks the listing in pending;
// anything less decrements and leaves it active. Returns whether the
// listing was exhausted.
func reserveForTrade(tx *gorm.DB, listing *models.Listing, consumed int64) (bool, error) {
	exhausts := consumed == exhaustAll
	if !listing.Unlimited() && consumed >= listing.Quantity {
		exhausts = true
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	switch {
	case exhausts:
		updates["status"] = models.ListingStatusPending
	case listing.Unlimited():
		// The sentinel never decrements.
	default:
		updates["quantity"] = listing.Quantity - consumed
	}

	result := tx.Model(&models.Listing{}).
		Where("id = ? AND status = ?", listing.ID, models.ListingStatusActive).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to reserve listing for trade: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, invalidState("listing %s is no longer active", listing.ID)
	}

	if exhausts {
		listing.Status = models.ListingStatusPending
	} else if !listing.Unlimited() {
		listing.Quantity -= consumed
	}
	return exhausts, nil
}

// revertToActive returns a listing to active after a trade cancellation,
// restoring any partially consumed quantity. Runs inside the caller's
// transaction and listing lock.
func revertToActive(tx *gorm.DB, listing *models.Listing, restored int64) error {
	updates := map[string]interface{}{
		"status":     models.ListingStatusActive,
		"updated_at": time.Now(),
	}
	if restored > 0 && !listing.Unlimited() {
		updates["quantity"] = listing.Quantity + restored
	}

	result := tx.Model(&models.Listing{}).
		Where("id = ? AND status IN ?", listing.ID,
			[]string{models.ListingStatusPending, models.ListingStatusActive}).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to revert listing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return invalidState("listing %s cannot revert to active", listing.ID)
	}

	listing.Status = models.ListingStatusActive
	if restored > 0 && !listing.Unlimited() {
		listing.Quantity += restored
	}
	return nil
}

// restoreQuantity gives units back to a listing whose pending reservation
// belongs to a different trade, leaving the status untouched. Runs inside
// the caller's transaction and listing lock.
func restoreQuantity(tx *gorm.DB, listing *models.Listing, restored int64) error {
	if restored == 0 || listing.Unlimited() {
		return nil
	}

	result := tx.Model(&models.Listing{}).
		Where("id = ?", listing.ID).
		Updates(map[string]interface{}{
			"quantity":   listing.Quantity + restored,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to restore listing quantity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return invalidState("listing %s not found for quantity restore", listing.ID)
	}

	listing.Quantity += restored
	return nil
}

// exhaustAll asks reserveForTrade to consume whatever remains on the
// listing, including unlimited quantity.
const exhaustAll int64 = -1
