package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aoinlabs/storefront-backend/pkg/db/models"
	"github.com/aoinlabs/storefront-backend/pkg/enums"
)

// Repository exposes persistence operations for cart records and lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActiveByUser loads the user's active CartRecord with its lines.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_lines.created_at ASC")
		}).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByIDAndUser returns a CartRecord restricted to the provided user.
func (r *Repository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_lines.created_at ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a new CartRecord.
func (r *Repository) Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	if record.Status == "" {
		record.Status = enums.CartStatusActive
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Update saves the provided cart record without touching its lines.
func (r *Repository) Update(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	if err := r.db.WithContext(ctx).Omit("Lines").Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateStatus updates the status of a CartRecord owned by the user.
func (r *Repository) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status enums.CartStatus) error {
	updates := map[string]any{"status": status}
	if status == enums.CartStatusConverted {
		updates["converted_at"] = time.Now()
	}
	return r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates).Error
}

// SaveLine inserts or updates a single cart line.
func (r *Repository) SaveLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// RemoveAllLines soft-removes every active line of the cart.
func (r *Repository) RemoveAllLines(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("cart_id = ? AND status = ?", cartID, enums.CartLineStatusOK).
		Updates(map[string]any{
			"status":     enums.CartLineStatusRemoved,
			"removed_at": time.Now(),
		}).Error
}

// DeleteExpiredBefore hard-deletes carts that expired before the cutoff and
// returns the number of removed records. Lines cascade.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []enums.CartStatus{enums.CartStatusExpired, enums.CartStatusConverted}, cutoff).
		Delete(&models.CartRecord{})
	return res.RowsAffected, res.Error
}

// ExpireStaleActiveTx flags active carts untouched since the cutoff as expired
// and returns their IDs so the caller can emit expiry events in the same
// transaction.
func (r *Repository) ExpireStaleActiveTx(tx *gorm.DB, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Model(&models.CartRecord{}).
		Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = tx.Model(&models.CartRecord{}).
		Where("id IN ?", ids).
		Update("status", enums.CartStatusExpired).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
