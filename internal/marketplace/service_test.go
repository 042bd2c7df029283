package marketplace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradewind-labs/tradepost/internal/database"
	"github.com/tradewind-labs/tradepost/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache DB keeps every pooled connection on the same
	// in-memory store while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	svc, err := NewService(zap.NewNop(), db, nil)
	require.NoError(t, err)
	return svc, db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		DiscordID: username + "-discord",
		Username:  username,
		Role:      "user",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestListing(t *testing.T, svc *Service, ownerID uuid.UUID, quantity int64) *models.Listing {
	t.Helper()
	listing, err := svc.CreateListing(context.Background(), ownerID, CreateListingRequest{
		ItemID:               42,
		Quantity:             quantity,
		AskingPrice:          100,
		AcceptsItems:         true,
		AcceptsPartialOffers: true,
		Kind:                 models.ListingKindSelling,
	})
	require.NoError(t, err)
	return listing
}

func createTestOffer(t *testing.T, svc *Service, listingID, bidderID uuid.UUID, coins int64, requested *int64) *models.Offer {
	t.Helper()
	offer, err := svc.CreateOffer(context.Background(), listingID, bidderID, CreateOfferRequest{
		CoinAmount:        coins,
		QuantityRequested: requested,
	})
	require.NoError(t, err)
	return offer
}

func int64Ptr(v int64) *int64 { return &v }

func reloadListing(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Listing {
	t.Helper()
	var listing models.Listing
	require.NoError(t, db.Where("id = ?", id).First(&listing).Error)
	return &listing
}

func reloadOffer(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Offer {
	t.Helper()
	var offer models.Offer
	require.NoError(t, db.Where("id = ?", id).First(&offer).Error)
	return &offer
}

func reloadTrade(t *testing.T, db *gorm.DB, id uuid.UUID) *models.TradeConfirmation {
	t.Helper()
	var trade models.TradeConfirmation
	require.NoError(t, db.Where("id = ?", id).First(&trade).Error)
	return &trade
}

// lockTable sanity: concurrent acquires on the same key serialize.
func TestLockTableSerializes(t *testing.T) {
	locks := newLockTable()
	key := uuid.New()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.acquire(key)
			defer unlock()
			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()
			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, max)
}
