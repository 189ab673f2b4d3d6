// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the manual
// registration queue.
//
// Concurrency contract: the partial unique index ux_queue_pending (created
// in AutoMigrate) allows at most one PENDING item per (marketplace, native
// product id). CreateQueueItemDedup leans on it with ON CONFLICT DO NOTHING,
// so two pipeline runs racing on the same unknown product enqueue one item.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// CreateQueueItemDedup inserts a pending queue item unless one already
// exists for the same (marketplace, native id). inserted=false means the
// pending slot was already taken and nothing was written.
func CreateQueueItemDedup(ctx context.Context, db *gorm.DB, item *domain.QueueItem) (inserted bool, err error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = domain.QueuePending
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetQueueItem fetches a queue item by ID, or ErrNotFound.
func GetQueueItem(ctx context.Context, db *gorm.DB, id string) (*domain.QueueItem, error) {
	var item domain.QueueItem
	if err := db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindPendingQueueItem returns the pending item for a native product id,
// or ErrNotFound.
func FindPendingQueueItem(ctx context.Context, db *gorm.DB, marketplace, marketplaceProductID string) (*domain.QueueItem, error) {
	var item domain.QueueItem
	err := db.WithContext(ctx).
		Where("marketplace = ? AND marketplace_product_id = ? AND status = ?",
			marketplace, marketplaceProductID, domain.QueuePending).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetQueueItemProduct fills the resolved product of a queue item when it has
// none yet. Items that already carry a product are left untouched.
func SetQueueItemProduct(ctx context.Context, db *gorm.DB, id, productID string) error {
	return db.WithContext(ctx).
		Model(&domain.QueueItem{}).
		Where("id = ? AND (product_id IS NULL OR product_id = '')", id).
		Updates(map[string]any{"product_id": productID, "updated_at": time.Now().UTC()}).Error
}

// ConcludeQueueItem marks an item concluded and pins the confirmed product.
// Returns ErrNotFound if the item does not exist.
func ConcludeQueueItem(ctx context.Context, db *gorm.DB, id, productID string) error {
	res := db.WithContext(ctx).
		Model(&domain.QueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.QueueConcluded,
			"product_id": productID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQueueItems returns a page of queue items in the given status,
// newest first.
func ListQueueItems(ctx context.Context, db *gorm.DB, status string, limit, offset int) ([]domain.QueueItem, error) {
	var out []domain.QueueItem
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

// SuggestProductForPending back-fills a freshly created product as the
// suggestion on every pending item whose suggested name resembles it and
// that has no suggestion yet. Returns the number of items updated.
func SuggestProductForPending(ctx context.Context, db *gorm.DB, productID, officialName string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.QueueItem{}).
		Where("status = ?", domain.QueuePending).
		Where("suggested_product_id IS NULL OR suggested_product_id = ''").
		Where("suggested_name LIKE ?", "%"+officialName+"%").
		Updates(map[string]any{"suggested_product_id": productID, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
