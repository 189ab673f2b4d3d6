// Package services – ScrapeService
//
// This file implements content enrichment: scraping a Mercado Livre link
// through the read proxy and, for the offer-bound variant, persisting the
// approved official name, clean link and catalog id back onto the offer.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/scraper"
)

// ScrapeRepo defines the repository contract required by ScrapeService.
type ScrapeRepo interface {
	GetOffer(ctx context.Context, db *gorm.DB, id string) (*domain.Offer, error)
	UpdateOfferEnrichment(ctx context.Context, db *gorm.DB, id, officialName, cleanLink, marketplaceProductID string) error
}

// PageScraper retrieves and validates a product page.
type PageScraper interface {
	Scrape(ctx context.Context, link string) (*scraper.Result, error)
}

// ScrapeService enriches offers with scraped product page data.
type ScrapeService struct {
	DB      *gorm.DB
	Repo    ScrapeRepo
	Scraper PageScraper
}

// NewScrapeService constructs a ScrapeService.
func NewScrapeService(db *gorm.DB, r ScrapeRepo, sc PageScraper) *ScrapeService {
	return &ScrapeService{DB: db, Repo: r, Scraper: sc}
}

// ScrapeLink scrapes one product link directly.
func (s *ScrapeService) ScrapeLink(ctx context.Context, link string) (*scraper.Result, error) {
	if strings.TrimSpace(link) == "" {
		return nil, &ValidationError{Missing: []string{"link"}}
	}
	return s.Scraper.Scrape(ctx, link)
}

// ScrapeOffer scrapes the link of a stored offer and, when the page is
// approved, persists the enrichment onto the offer. ErrMissingLink when the
// offer carries no link.
func (s *ScrapeService) ScrapeOffer(ctx context.Context, offerID string) (*scraper.Result, error) {
	offer, err := s.Repo.GetOffer(ctx, s.DB, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	if offer.LinkScrape == "" {
		return nil, ErrMissingLink
	}

	result, err := s.Scraper.Scrape(ctx, offer.LinkScrape)
	if err != nil {
		return nil, err
	}
	if result.OK {
		err := s.Repo.UpdateOfferEnrichment(ctx, s.DB, offer.ID,
			result.Data.Title, result.Data.BaseURL, result.Data.CatalogID)
		if err != nil {
			return nil, err
		}
		log.Ctx(ctx).Info().
			Str("offer_id", offer.ID).
			Str("catalog_id", result.Data.CatalogID).
			Msg("offer enriched from product page")
	}
	return result, nil
}
