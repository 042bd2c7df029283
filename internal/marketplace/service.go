package marketplace

import (
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewind-labs/tradepost/internal/notification"
)

// Service owns the listing -> offer -> trade-confirmation lifecycle. It is
// the only writer of marketplace rows; callers hold no mutable state beyond
// one operation. All multi-row transitions run inside a gorm transaction
// under a per-listing lock, with status-guarded UPDATEs so a racing caller
// observes a typed conflict instead of corrupting state.
type Service struct {
	logger   *zap.Logger
	db       *gorm.DB
	notifier notification.Notifier
	validate *validator.Validate
	sanitize *bluemonday.Policy
	locks    *lockTable
}

// NewService creates a marketplace service over the given storage handle.
func NewService(logger *zap.Logger, db *gorm.DB, notifier notification.Notifier) (*Service, error) {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	svc := &Service{
		logger:   logger,
		db:       db,
		notifier: notifier,
		validate: validator.New(),
		sanitize: bluemonday.StrictPolicy(),
		locks:    newLockTable(),
	}
	return svc, nil
}

// Start starts the marketplace service
func (s *Service) Start() error {
	s.logger.Info("Marketplace service started")
	return nil
}

// Stop stops the marketplace service
func (s *Service) Stop() error {
	s.logger.Info("Marketplace service stopped")
	return nil
}

// validateStruct maps validator failures onto the ValidationError reason code.
func (s *Service) validateStruct(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return validationError("%v", err)
	}
	return nil
}
