// Package services – ProductService
//
// This file implements catalog product creation. A product created here is
// active immediately (it comes from a curator, not the resolver) and is
// back-filled as the suggestion on pending queue items with a resembling
// name, so the operator confirming those items finds it preselected.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// ProductRepo defines the repository contract required by ProductService.
type ProductRepo interface {
	CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error
	ListProducts(ctx context.Context, db *gorm.DB, active *bool) ([]domain.Product, error)
	SuggestProductForPending(ctx context.Context, db *gorm.DB, productID, officialName string) (int64, error)
	ListMarketplaceLinks(ctx context.Context, db *gorm.DB, marketplace string) ([]domain.MarketplaceLink, error)
	SetLinkActive(ctx context.Context, db *gorm.DB, id string, active bool) error
	ListDistinctMarketplaces(ctx context.Context, db *gorm.DB) ([]string, error)
}

// ProductService manages curator-created catalog products.
type ProductService struct {
	DB   *gorm.DB
	Repo ProductRepo
}

// NewProductService constructs a ProductService.
func NewProductService(db *gorm.DB, r ProductRepo) *ProductService {
	return &ProductService{DB: db, Repo: r}
}

// Create persists an active product and suggests it on resembling pending
// queue items. It returns the new product id.
func (s *ProductService) Create(ctx context.Context, officialName, messageName string) (string, error) {
	officialName = strings.TrimSpace(officialName)
	if officialName == "" {
		return "", &ValidationError{Missing: []string{"nome_oficial"}}
	}

	product := &domain.Product{
		Name:         officialName,
		MessageName:  messageName,
		OfficialName: officialName,
		Active:       true,
	}
	if err := s.Repo.CreateProduct(ctx, s.DB, product); err != nil {
		return "", err
	}

	n, err := s.Repo.SuggestProductForPending(ctx, s.DB, product.ID, officialName)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("product_id", product.ID).
			Msg("queue suggestion backfill failed")
	} else if n > 0 {
		log.Ctx(ctx).Info().
			Str("product_id", product.ID).
			Int64("items", n).
			Msg("product suggested on pending queue items")
	}
	return product.ID, nil
}

// List returns catalog products, optionally filtered by active flag.
func (s *ProductService) List(ctx context.Context, active *bool) ([]domain.Product, error) {
	return s.Repo.ListProducts(ctx, s.DB, active)
}

// ListLinks returns marketplace links, optionally filtered by marketplace.
func (s *ProductService) ListLinks(ctx context.Context, marketplace string) ([]domain.MarketplaceLink, error) {
	return s.Repo.ListMarketplaceLinks(ctx, s.DB, strings.TrimSpace(marketplace))
}

// SetLinkActive toggles a marketplace link so the dispatcher stops (or
// resumes) using it.
func (s *ProductService) SetLinkActive(ctx context.Context, id string, active bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Missing: []string{"link_id"}}
	}
	if err := s.Repo.SetLinkActive(ctx, s.DB, id, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLinkNotFound
		}
		return err
	}
	log.Ctx(ctx).Info().Str("link_id", id).Bool("active", active).Msg("marketplace link toggled")
	return nil
}

// Marketplaces returns the distinct marketplaces present in the link table.
func (s *ProductService) Marketplaces(ctx context.Context) ([]string, error) {
	return s.Repo.ListDistinctMarketplaces(ctx, s.DB)
}
