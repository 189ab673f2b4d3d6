// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for inbound
// gateway messages.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Deduplication contract:
//
//	InsertMessageDedup relies on the unique index over the message hash and
//	ON CONFLICT DO NOTHING. A duplicate insert is NOT an error: the function
//	reports inserted=false and the caller answers the gateway idempotently.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// InsertMessageDedup persists an inbound message exactly once. The message's
// ID and CreatedAt are assigned here; the caller must have set Hash and
// CorrelationID. inserted=false means a row with the same hash already
// existed and nothing was written.
func InsertMessageDedup(ctx context.Context, db *gorm.DB, m *domain.Message) (inserted bool, err error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetMessage fetches a message by ID, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageStatus sets the processing status of a message.
// Returns ErrNotFound if the message does not exist.
func UpdateMessageStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
