// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for canonical
// products and their marketplace links.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// CreateProduct inserts a product. ID and timestamps are assigned when unset.
func CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return db.WithContext(ctx).Create(p).Error
}

// GetProduct fetches a product by ID, or ErrNotFound.
func GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var p domain.Product
	if err := db.WithContext(ctx).First(&p, "product_id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProductByOfficialName returns the product whose official name matches
// case-insensitively, or ErrNotFound.
func FindProductByOfficialName(ctx context.Context, db *gorm.DB, officialName string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("LOWER(official_name) = ?", strings.ToLower(strings.TrimSpace(officialName))).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProductNames returns (id, official name) for every product that has an
// official name, for fuzzy-match candidate generation.
func ListProductNames(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Select("product_id", "official_name").
		Where("official_name <> ''").
		Find(&out).Error
	return out, err
}

// ListProducts returns products, optionally filtered by active flag.
func ListProducts(ctx context.Context, db *gorm.DB, active *bool) ([]domain.Product, error) {
	q := db.WithContext(ctx).Order("created_at desc")
	if active != nil {
		q = q.Where("active = ?", *active)
	}
	var out []domain.Product
	err := q.Find(&out).Error
	return out, err
}

// UpdateProductPhoto records a stored product photo.
// Returns ErrNotFound if the product does not exist.
func UpdateProductPhoto(ctx context.Context, db *gorm.DB, id, photoURL, storagePath, mimetype string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("product_id = ?", id).
		Updates(map[string]any{
			"photo_url":           photoURL,
			"photo_storage_path":  storagePath,
			"photo_mimetype":      mimetype,
			"photo_downloaded_at": now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMarketplaceLink inserts a product-to-marketplace association.
// ID and timestamps are assigned when unset.
func CreateMarketplaceLink(ctx context.Context, db *gorm.DB, l *domain.MarketplaceLink) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	return db.WithContext(ctx).Create(l).Error
}

// FindActiveLink returns the active marketplace link for a native product
// id, or ErrNotFound.
func FindActiveLink(ctx context.Context, db *gorm.DB, marketplace, marketplaceProductID string) (*domain.MarketplaceLink, error) {
	var l domain.MarketplaceLink
	err := db.WithContext(ctx).
		Where("marketplace = ? AND marketplace_product_id = ? AND active = ?", marketplace, marketplaceProductID, true).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListMarketplaceLinks returns links, newest first, optionally narrowed to
// one marketplace.
func ListMarketplaceLinks(ctx context.Context, db *gorm.DB, marketplace string) ([]domain.MarketplaceLink, error) {
	q := db.WithContext(ctx).Model(&domain.MarketplaceLink{}).Order("created_at DESC")
	if marketplace != "" {
		q = q.Where("marketplace = ?", marketplace)
	}
	var out []domain.MarketplaceLink
	err := q.Find(&out).Error
	return out, err
}

// SetLinkActive toggles a marketplace link. ErrNotFound when the id is
// unknown.
func SetLinkActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	res := db.WithContext(ctx).Model(&domain.MarketplaceLink{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDistinctMarketplaces returns the marketplaces that have at least one
// link, sorted.
func ListDistinctMarketplaces(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).Model(&domain.MarketplaceLink{}).
		Distinct("marketplace").Order("marketplace ASC").Pluck("marketplace", &out).Error
	return out, err
}
