// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for parsed offers.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// CreateOffer inserts one parsed offer row. ID and CreatedAt are assigned
// here when unset.
func CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.StatusParsed
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	return db.WithContext(ctx).Create(o).Error
}

// GetOffer fetches an offer by ID, or ErrNotFound.
func GetOffer(ctx context.Context, db *gorm.DB, id string) (*domain.Offer, error) {
	var o domain.Offer
	if err := db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOffersByMessage returns every offer derived from one message, in
// extraction order.
func ListOffersByMessage(ctx context.Context, db *gorm.DB, messageID string) ([]domain.Offer, error) {
	var out []domain.Offer
	err := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("multi_order asc").
		Find(&out).Error
	return out, err
}

// SetOfferStatus writes a new status. Transition legality is the caller's
// concern (see domain.OfferStatus.Transition); this function only persists.
// Returns ErrNotFound if the offer does not exist.
func SetOfferStatus(ctx context.Context, db *gorm.DB, id string, status domain.OfferStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateOfferEnrichment fills the scraper-derived fields of an offer:
// the official product title, the canonical URL and the native catalog id.
// Returns ErrNotFound if the offer does not exist.
func UpdateOfferEnrichment(ctx context.Context, db *gorm.DB, id, officialName, cleanLink, marketplaceProductID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"official_name":          officialName,
			"clean_link":             cleanLink,
			"marketplace_product_id": marketplaceProductID,
			"updated_at":             time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
