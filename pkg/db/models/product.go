package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aoinlabs/storefront-backend/pkg/enums"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

// Product represents the canonical catalog listing priced per unit.
type Product struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU         string                  `gorm:"column:sku;not null"`
	Title       string                  `gorm:"column:title;not null"`
	Description *string                 `gorm:"column:description"`
	UnitPrice   decimal.Decimal         `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Currency    enums.Currency          `gorm:"column:currency;not null;default:'USD'"`
	Stock       int                     `gorm:"column:stock;not null;default:0"`
	Attributes  *types.AttributeCatalog `gorm:"column:attributes;type:jsonb;serializer:json"`
	IsActive    bool                    `gorm:"column:is_active;not null;default:true"`
	IsDeleted   bool                    `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
