package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aoinlabs/storefront-backend/pkg/db/models"
	"github.com/aoinlabs/storefront-backend/pkg/enums"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.CartRecord, error)
	Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	Update(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status enums.CartStatus) error
	SaveLine(ctx context.Context, line *models.CartLine) error
	RemoveAllLines(ctx context.Context, cartID uuid.UUID) error
}
