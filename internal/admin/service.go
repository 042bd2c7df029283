package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewind-labs/tradepost/internal/marketplace"
	"github.com/tradewind-labs/tradepost/pkg/models"
)

// Service is the moderation surface: dashboard aggregates, force overrides
// on stuck listings and trades, and the audit trail behind them. Overrides
// delegate the state transition to the marketplace service so the same
// locking and atomicity rules apply.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	market *marketplace.Service
}

// NewService creates the admin service.
func NewService(logger *zap.Logger, db *gorm.DB, market *marketplace.Service) (*Service, error) {
	return &Service{logger: logger, db: db, market: market}, nil
}

// Start starts the admin service
func (s *Service) Start() error {
	s.logger.Info("Admin service started")
	return nil
}

// Stop stops the admin service
func (s *Service) Stop() error {
	s.logger.Info("Admin service stopped")
	return nil
}

// DashboardStats is the headline numbers block of the moderation dashboard.
type DashboardStats struct {
	TotalUsers      int64 `json:"total_users"`
	ActiveListings  int64 `json:"active_listings"`
	PendingOffers   int64 `json:"pending_offers"`
	PendingTrades   int64 `json:"pending_trades"`
	CompletedTrades int64 `json:"completed_trades"`
	CancelledTrades int64 `json:"cancelled_trades"`
}

// Dashboard aggregates marketplace counters for the moderation surface.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	counts := []struct {
		dest  *int64
		model interface{}
		query func(*gorm.DB) *gorm.DB
	}{
		{&stats.TotalUsers, &models.User{}, func(q *gorm.DB) *gorm.DB { return q }},
		{&stats.ActiveListings, &models.Listing{}, func(q *gorm.DB) *gorm.DB {
			return q.Where("status = ?", models.ListingStatusActive)
		}},
		{&stats.PendingOffers, &models.Offer{}, func(q *gorm.DB) *gorm.DB {
			return q.Where("status = ?", models.OfferStatusPending)
		}},
		{&stats.PendingTrades, &models.TradeConfirmation{}, func(q *gorm.DB) *gorm.DB {
			return q.Where("status = ?", models.TradeStatusPending)
		}},
		{&stats.CompletedTrades, &models.TradeConfirmation{}, func(q *gorm.DB) *gorm.DB {
			return q.Where("status = ?", models.TradeStatusCompleted)
		}},
		{&stats.CancelledTrades, &models.TradeConfirmation{}, func(q *gorm.DB) *gorm.DB {
			return q.Where("status = ?", models.TradeStatusCancelled)
		}},
	}
	for _, c := range counts {
		if err := c.query(s.db.WithContext(ctx).Model(c.model)).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to aggregate dashboard stats: %w", err)
		}
	}
	return stats, nil
}

// ListTrades returns a page of trades in any status, newest first.
func (s *Service) ListTrades(ctx context.Context, status string, limit, offset int) ([]models.TradeConfirmation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&models.TradeConfirmation{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var trades []models.TradeConfirmation
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// ForceCloseTrade unwinds a stuck pending trade regardless of confirmation
// state, and records the audit entry.
func (s *Service) ForceCloseTrade(ctx context.Context, adminID, tradeID uuid.UUID, reason string) error {
	if err := s.market.ForceCancelTrade(ctx, tradeID); err != nil {
		return err
	}
	s.audit(ctx, adminID, "force_close_trade", "trade", tradeID.String(), reason)
	return nil
}

// CloseListing forces a listing closed regardless of owner or status, and
// records the audit entry.
func (s *Service) CloseListing(ctx context.Context, adminID, listingID uuid.UUID, reason string) error {
	if err := s.market.CloseListing(ctx, listingID); err != nil {
		return err
	}
	s.audit(ctx, adminID, "close_listing", "listing", listingID.String(), reason)
	return nil
}

// ListActions returns the most recent audit entries.
func (s *Service) ListActions(ctx context.Context, limit int) ([]models.AdminAction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var actions []models.AdminAction
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").Limit(limit).
		Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to list admin actions: %w", err)
	}
	return actions, nil
}

// audit writes one audit row per override. Audit failures are logged and
// swallowed: the override has already happened and must not be rolled back
// over bookkeeping.
func (s *Service) audit(ctx context.Context, adminID uuid.UUID, actionType, targetType, targetID, details string) {
	action := &models.AdminAction{
		AdminID:    adminID,
		ActionType: actionType,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(action).Error; err != nil {
		s.logger.Error("Failed to record admin action",
			zap.String("action_type", actionType),
			zap.String("target_id", targetID),
			zap.Error(err))
		return
	}
	s.logger.Info("Admin action recorded",
		zap.String("admin_id", adminID.String()),
		zap.String("action_type", actionType),
		zap.String("target_id", targetID))
}
