package marketplace

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradewind-labs/tradepost/pkg/models"
)

// ListingFilter narrows browse queries. Zero values mean "no filter".
type ListingFilter struct {
	Kind   string `form:"kind" validate:"omitempty,oneof=selling buying"`
	ItemID int64  `form:"item_id" validate:"omitempty,gt=0"`
	Limit  int    `form:"limit" validate:"omitempty,gt=0,lte=100"`
	Offset int    `form:"offset" validate:"omitempty,gte=0"`
}

// ListingSummary is a browse row: the listing plus its owner and how many
// offers are waiting on it.
type ListingSummary struct {
	models.Listing
	Owner         *models.User `json:"owner,omitempty"`
	PendingOffers int64        `json:"pending_offers"`
}

// TradeView is a pending trade from one participant's perspective.
type TradeView struct {
	Trade   models.TradeConfirmation `json:"trade"`
	Listing models.Listing           `json:"listing"`
	Offer   models.Offer             `json:"offer"`
	Role    string                   `json:"role"`
}

// SellerProfile aggregates a user's marketplace track record.
type SellerProfile struct {
	User           models.User      `json:"user"`
	ActiveListings int64            `json:"active_listings"`
	CompletedSales int64            `json:"completed_sales"`
	CancelledDeals int64            `json:"cancelled_deals"`
	RecentSales    []models.Listing `json:"recent_sales"`
}

// ListActiveListings returns a page of active listings, newest first, with
// owner rows and pending offer counts attached.
func (s *Service) ListActiveListings(ctx context.Context, filter ListingFilter) ([]ListingSummary, error) {
	if err := s.validateStruct(filter); err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit == 0 {
		limit = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("status = ?", models.ListingStatusActive)
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.ItemID != 0 {
		query = query.Where("item_id = ?", filter.ItemID)
	}

	var listings []models.Listing
	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).
		Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return s.summarize(ctx, listings, true)
}

// ListOwnListings returns every listing a user has posted, newest first,
// including end-of-life rows.
func (s *Service) ListOwnListings(ctx context.Context, ownerID uuid.UUID) ([]ListingSummary, error) {
	var listings []models.Listing
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list own listings: %w", err)
	}
	return s.summarize(ctx, listings, false)
}

func (s *Service) summarize(ctx context.Context, listings []models.Listing, withOwner bool) ([]ListingSummary, error) {
	summaries := make([]ListingSummary, 0, len(listings))
	if len(listings) == 0 {
		return summaries, nil
	}

	ids := make([]uuid.UUID, 0, len(listings))
	ownerIDs := make([]uuid.UUID, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
		ownerIDs = append(ownerIDs, l.OwnerID)
	}

	type offerCount struct {
		ListingID uuid.UUID
		Count     int64
	}
	var counts []offerCount
	if err := s.db.WithContext(ctx).Model(&models.Offer{}).
		Select("listing_id, COUNT(*) AS count").
		Where("listing_id IN ? AND status = ?", ids, models.OfferStatusPending).
		Group("listing_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending offers: %w", err)
	}
	pending := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		pending[c.ListingID] = c.Count
	}

	owners := make(map[uuid.UUID]*models.User)
	if withOwner {
		var users []models.User
		if err := s.db.WithContext(ctx).
			Where("id IN ?", ownerIDs).
			Find(&users).Error; err != nil {
			return nil, fmt.Errorf("failed to load listing owners: %w", err)
		}
		for i := range users {
			owners[users[i].ID] = &users[i]
		}
	}

	for _, l := range listings {
		summaries = append(summaries, ListingSummary{
			Listing:       l,
			Owner:         owners[l.OwnerID],
			PendingOffers: pending[l.ID],
		})
	}
	return summaries, nil
}

// GetListing returns one listing with owner and offer count, any status.
func (s *Service) GetListing(ctx context.Context, listingID uuid.UUID) (*ListingSummary, error) {
	var listing models.Listing
	if err := s.db.WithContext(ctx).Where("id = ?", listingID).
		First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundOrUnauthorized("listing")
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	summaries, err := s.summarize(ctx, []models.Listing{listing}, true)
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

// ListOffersForListing returns the offers on a listing the caller owns,
// with item lines preloaded. Non-owners get NotFoundOrUnauthorized.
func (s *Service) ListOffersForListing(ctx context.Context, listingID, ownerID uuid.UUID) ([]models.Offer, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND owner_id = ?", listingID, ownerID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check listing ownership: %w", err)
	}
	if count == 0 {
		return nil, notFoundOrUnauthorized("listing")
	}

	var offers []models.Offer
	if err := s.db.WithContext(ctx).Preload("Items").
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return offers, nil
}

// ListUserOffers returns every offer a user has made, newest first.
func (s *Service) ListUserOffers(ctx context.Context, userID uuid.UUID) ([]models.Offer, error) {
	var offers []models.Offer
	if err := s.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("failed to list user offers: %w", err)
	}
	return offers, nil
}

// ListPendingTrades returns the trades awaiting the user on either side of
// the table, with the user's role resolved per trade.
func (s *Service) ListPendingTrades(ctx context.Context, userID uuid.UUID) ([]TradeView, error) {
	var trades []models.TradeConfirmation
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.TradeStatusPending).
		Order("created_at DESC").
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending trades: %w", err)
	}

	views := make([]TradeView, 0)
	for _, trade := range trades {
		var listing models.Listing
		if err := s.db.WithContext(ctx).Where("id = ?", trade.ListingID).
			First(&listing).Error; err != nil {
			return nil, fmt.Errorf("failed to load trade listing: %w", err)
		}
		var offer models.Offer
		if err := s.db.WithContext(ctx).Preload("Items").
			Where("id = ?", trade.OfferID).First(&offer).Error; err != nil {
			return nil, fmt.Errorf("failed to load trade offer: %w", err)
		}

		var role string
		switch userID {
		case listing.OwnerID:
			role = "seller"
		case offer.UserID:
			role = "buyer"
		default:
			continue
		}
		views = append(views, TradeView{Trade: trade, Listing: listing, Offer: offer, Role: role})
	}
	return views, nil
}

// GetSellerProfile aggregates a user's listing history for the public
// profile page.
func (s *Service) GetSellerProfile(ctx context.Context, userID uuid.UUID) (*SellerProfile, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundOrUnauthorized("user")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	profile := &SellerProfile{User: user}
	if err := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("owner_id = ? AND status = ?", userID, models.ListingStatusActive).
		Count(&profile.ActiveListings).Error; err != nil {
		return nil, fmt.Errorf("failed to count active listings: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("owner_id = ? AND status = ?", userID, models.ListingStatusSold).
		Count(&profile.CompletedSales).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed sales: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.TradeConfirmation{}).
		Joins("JOIN listings ON listings.id = trade_confirmations.listing_id").
		Where("listings.owner_id = ? AND trade_confirmations.status = ?",
			userID, models.TradeStatusCancelled).
		Count(&profile.CancelledDeals).Error; err != nil {
		return nil, fmt.Errorf("failed to count cancelled deals: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", userID, models.ListingStatusSold).
		Order("updated_at DESC").Limit(5).
		Find(&profile.RecentSales).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent sales: %w", err)
	}
	return profile, nil
}
