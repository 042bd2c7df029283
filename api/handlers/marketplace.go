package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradepost/internal/auth"
	"github.com/tradewind-labs/tradepost/internal/marketplace"
	"github.com/tradewind-labs/tradepost/pkg/problem"
)

// MarketplaceHandler exposes the listing/offer/trade lifecycle over HTTP.
type MarketplaceHandler struct {
	logger *zap.Logger
	market *marketplace.Service
}

// NewMarketplaceHandler creates the marketplace handler.
func NewMarketplaceHandler(logger *zap.Logger, market *marketplace.Service) *MarketplaceHandler {
	return &MarketplaceHandler{logger: logger, market: market}
}

// respondError maps service errors onto RFC 7807 problem responses. Reason
// codes ride along so clients can branch without parsing detail text.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	instance := c.Request.URL.Path

	var mktErr *marketplace.Error
	if errors.As(err, &mktErr) {
		var p *problem.Details
		switch mktErr.Code {
		case marketplace.CodeValidation:
			p = problem.NewValidation(mktErr.Detail, instance)
		case marketplace.CodeNotFoundOrUnauthorized:
			p = problem.NewNotFound(mktErr.Detail, instance)
		case marketplace.CodeSelfTradeForbidden:
			p = problem.NewForbidden(mktErr.Detail, instance)
		default:
			// listing_not_active, already_confirmed, invalid_state
			p = problem.NewConflict(mktErr.Detail, instance)
		}
		c.Header("Content-Type", "application/problem+json")
		c.JSON(p.Status, p.WithCode(mktErr.Code))
		return
	}

	logger.Error("Request failed", zap.String("path", instance), zap.Error(err))
	p := problem.NewInternal("An unexpected error occurred", instance)
	c.Header("Content-Type", "application/problem+json")
	c.JSON(p.Status, p)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		p := problem.NewValidation("Malformed identifier in path", c.Request.URL.Path)
		c.Header("Content-Type", "application/problem+json")
		c.JSON(p.Status, p)
		return uuid.Nil, false
	}
	return id, true
}

func sessionUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.UserID(c)
	if !ok {
		p := problem.NewUnauthorized("No authenticated session", c.Request.URL.Path)
		c.Header("Content-Type", "application/problem+json")
		c.JSON(p.Status, p)
		return uuid.Nil, false
	}
	return id, true
}

// BrowseListings handles GET /marketplace/listings.
func (h *MarketplaceHandler) BrowseListings(c *gin.Context) {
	var filter marketplace.ListingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		p := problem.NewValidation("Malformed query parameters", c.Request.URL.Path)
		c.Header("Content-Type", "application/problem+json")
		c.JSON(p.Status, p)
		return
	}

	listings, err := h.market.ListActiveListings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// GetListing handles GET /marketplace/listings/:id.
func (h *MarketplaceHandler) GetListing(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	listing, err := h.market.GetListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// GetSellerProfile handles GET /marketplace/profiles/:id.
func (h *MarketplaceHandler) GetSellerProfile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	profile, err := h.market.GetSellerProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// CreateListing handles POST /marketplace/listings.
func (h *MarketplaceHandler) CreateListing(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	var req marketplace.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		p := problem.NewValidation("Malformed request body", c.Request.URL.Path)
		c.Header("Content-Type", "application/problem+json")
		c.JSON(p.Status, p)
		return
	}

	listing, err := h.market.CreateListing(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// UpdateListing handles PUT /marketplace/listings/:id.
func (h *MarketplaceHandler) UpdateListing(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req marketplace.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		p := problem.NewValidation("Malformed request body", c.Request.URL.Path)
		c.Header("Content-Type", "application/problem+json")
		c.JSON(p.Status, p)
		return
	}

	listing, err := h.market.UpdateListing(c.Request.Context(), id, userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// RemoveListing handles DELETE /marketplace/listings/:id.
func (h *MarketplaceHandler) RemoveListing(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.market.RemoveListing(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// ListOwnListings handles GET /marketplace/my/listings.
func (h *MarketplaceHandler) ListOwnListings(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	listings, err := h.market.ListOwnListings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// ListListingOffers handles GET /marketplace/listings/:id/offers.
func (h *MarketplaceHandler) ListListingOffers(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	offers, err := h.market.ListOffersForListing(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

// ListOwnOffers handles GET /marketplace/my/offers.
func (h *MarketplaceHandler) ListOwnOffers(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	offers, err := h.market.ListUserOffers(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

// ListPendingTrades handles GET /marketplace/my/trades.
func (h *MarketplaceHandler) ListPendingTrades(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	trades, err := h.market.ListPendingTrades(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// CreateOffer handles POST /marketplace/listings/:id/offers.
func (h *MarketplaceHandler) CreateOffer(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req marketplace.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		p := problem.NewValidation("Malformed request body", c.Request.URL.Path)
		c.Header("Content-Type", "application/problem+json")
		c.JSON(p.Status, p)
		return
	}

	offer, err := h.market.CreateOffer(c.Request.Context(), id, userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

type acceptOfferRequest struct {
	AcceptedQuantity *int64 `json:"accepted_quantity,omitempty"`
}

// AcceptOffer handles POST /marketplace/offers/:id/accept. An
// accepted_quantity in the body makes the acceptance partial.
func (h *MarketplaceHandler) AcceptOffer(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req acceptOfferRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			p := problem.NewValidation("Malformed request body", c.Request.URL.Path)
			c.Header("Content-Type", "application/problem+json")
			c.JSON(p.Status, p)
			return
		}
	}

	var (
		trade interface{}
		err   error
	)
	if req.AcceptedQuantity != nil {
		trade, err = h.market.AcceptPartialOffer(c.Request.Context(), id, userID, *req.AcceptedQuantity)
	} else {
		trade, err = h.market.AcceptOffer(c.Request.Context(), id, userID)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// RejectOffer handles POST /marketplace/offers/:id/reject.
func (h *MarketplaceHandler) RejectOffer(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.market.RejectOffer(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// ConfirmTrade handles POST /marketplace/trades/:id/confirm.
func (h *MarketplaceHandler) ConfirmTrade(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	trade, err := h.market.ConfirmTrade(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// CancelTrade handles POST /marketplace/trades/:id/cancel.
func (h *MarketplaceHandler) CancelTrade(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.market.CancelTrade(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
