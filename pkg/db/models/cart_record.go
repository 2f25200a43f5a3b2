package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aoinlabs/storefront-backend/pkg/enums"
)

// CartRecord is the per-user working cart. One active cart exists per user;
// converted and expired carts are retained for the retention window.
type CartRecord struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	Status         enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Currency       enums.Currency   `gorm:"column:currency;not null;default:'USD'"`
	Subtotal       decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	DiscountAmount decimal.Decimal  `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	Total          decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Fingerprint    string           `gorm:"column:fingerprint;not null;default:''"`
	Lines          []CartLine       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	ConvertedAt    *time.Time       `gorm:"column:converted_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
