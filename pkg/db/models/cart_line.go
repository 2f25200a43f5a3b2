package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aoinlabs/storefront-backend/pkg/enums"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

// CartLine persists a product selection inside a CartRecord. A line is
// matched by (cart_id, product_id, attribute_key); attribute_key is the
// canonical form of the selected attributes so the same selection always
// hits the same line. Removed lines are soft-deleted via status.
type CartLine struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID       uuid.UUID                `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:uq_cart_line_selection,priority:1"`
	ProductID    uuid.UUID                `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_cart_line_selection,priority:2"`
	AttributeKey string                   `gorm:"column:attribute_key;not null;default:'';uniqueIndex:uq_cart_line_selection,priority:3"`
	Attributes   types.AttributeSelection `gorm:"column:attributes;type:jsonb"`
	Quantity     int                      `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal          `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineSubtotal decimal.Decimal          `gorm:"column:line_subtotal;type:numeric(12,2);not null"`
	Status       enums.CartLineStatus     `gorm:"column:status;type:cart_line_status;not null;default:'ok'"`
	RemovedAt    *time.Time               `gorm:"column:removed_at"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// IsRemoved reports whether the line no longer contributes to totals.
func (l CartLine) IsRemoved() bool {
	return l.Status == enums.CartLineStatusRemoved
}
