package models

import (
	"time"

	"github.com/google/uuid"
)

// QuantityUnlimited is the sentinel quantity for listings that never run out.
const QuantityUnlimited int64 = -1

// Listing kinds
const (
	ListingKindSelling = "selling"
	ListingKindBuying  = "buying"
)

// Listing statuses
const (
	ListingStatusActive  = "active"
	ListingStatusPending = "pending"
	ListingStatusSold    = "sold"
	ListingStatusRemoved = "removed"
	ListingStatusClosed  = "closed"
)

// Offer statuses
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
)

// Trade confirmation statuses
const (
	TradeStatusPending   = "pending"
	TradeStatusCompleted = "completed"
	TradeStatusCancelled = "cancelled"
)

// User represents a marketplace participant. Identity is established by an
// external session provider; this row only mirrors what it supplies.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	DiscordID string    `json:"discord_id" gorm:"uniqueIndex" validate:"required,max=32"`
	Username  string    `json:"username" validate:"required,min=2,max=64"`
	Avatar    string    `json:"avatar" validate:"omitempty,max=255"`
	Role      string    `json:"role" gorm:"default:user" validate:"required,oneof=user admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Listing is a posted intent to sell or buy a quantity of an item at a price.
// Quantity is strictly positive while active, or QuantityUnlimited.
type Listing struct {
	ID                   uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	OwnerID              uuid.UUID `json:"owner_id" gorm:"type:uuid;index" validate:"required,uuid"`
	ItemID               int64     `json:"item_id" validate:"required,gt=0"`
	Quantity             int64     `json:"quantity"`
	AskingPrice          int64     `json:"asking_price" validate:"required,gt=0"`
	AcceptsItems         bool      `json:"accepts_items"`
	AcceptsPartialOffers bool      `json:"accepts_partial_offers"`
	Kind                 string    `json:"kind" gorm:"index" validate:"required,oneof=selling buying"`
	Notes                string    `json:"notes" validate:"omitempty,max=500"`
	Status               string    `json:"status" gorm:"index;default:active" validate:"required,oneof=active pending sold removed closed"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Unlimited reports whether the listing never exhausts.
func (l *Listing) Unlimited() bool { return l.Quantity == QuantityUnlimited }

// Offer is a counter-proposal against a listing: coins, optionally a
// requested quantity, and optionally in-kind item lines.
type Offer struct {
	ID                uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ListingID         uuid.UUID   `json:"listing_id" gorm:"type:uuid;index" validate:"required,uuid"`
	UserID            uuid.UUID   `json:"user_id" gorm:"type:uuid;index" validate:"required,uuid"`
	CoinAmount        int64       `json:"coin_amount" validate:"min=0"`
	QuantityRequested *int64      `json:"quantity_requested,omitempty" validate:"omitempty,gt=0"`
	Message           string      `json:"message" validate:"omitempty,max=500"`
	Status            string      `json:"status" gorm:"index;default:pending" validate:"required,oneof=pending accepted rejected"`
	Items             []OfferItem `json:"item_offers" gorm:"foreignKey:OfferID"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// OfferItem is one in-kind line of an offer. Item identifiers are stored
// opaquely; the catalog collaborator resolves them for display only.
type OfferItem struct {
	ID       int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OfferID  uuid.UUID `json:"offer_id" gorm:"type:uuid;index" validate:"required,uuid"`
	ItemID   int64     `json:"item_id" validate:"required,gt=0"`
	Quantity int64     `json:"quantity" validate:"required,gt=0"`
}

// TradeConfirmation is the two-party handshake created once per accepted
// offer. Completed the instant both slots are set; cancellable only while
// neither is. Exhausted records whether the acceptance consumed the whole
// remaining listing and parked it pending.
type TradeConfirmation struct {
	ID                uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	OfferID           uuid.UUID  `json:"offer_id" gorm:"type:uuid;index" validate:"required,uuid"`
	ListingID         uuid.UUID  `json:"listing_id" gorm:"type:uuid;index" validate:"required,uuid"`
	SellerConfirmed   bool       `json:"seller_confirmed"`
	BuyerConfirmed    bool       `json:"buyer_confirmed"`
	SellerConfirmedAt *time.Time `json:"seller_confirmed_at,omitempty"`
	BuyerConfirmedAt  *time.Time `json:"buyer_confirmed_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	AcceptedQuantity  *int64     `json:"accepted_quantity,omitempty" validate:"omitempty,gt=0"`
	Exhausted         bool       `json:"exhausted"`
	Status            string     `json:"status" gorm:"index;default:pending" validate:"required,oneof=pending completed cancelled"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Partial reports whether the acceptance covered less than the full listing.
func (t *TradeConfirmation) Partial() bool { return t.AcceptedQuantity != nil }

// AdminAction is one audit row per moderation override.
type AdminAction struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	AdminID    uuid.UUID `json:"admin_id" gorm:"type:uuid;index" validate:"required,uuid"`
	ActionType string    `json:"action_type" validate:"required,max=64"`
	TargetType string    `json:"target_type" validate:"required,max=32"`
	TargetID   string    `json:"target_id" validate:"required,max=64"`
	Details    string    `json:"details" validate:"omitempty,max=1000"`
	CreatedAt  time.Time `json:"created_at"`
}
