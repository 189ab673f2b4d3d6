// Package services – QueueService
//
// This file implements the manual confirmation queue: listing pending
// registrations and confirming one, which activates the marketplace link
// and concludes the queue item.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// QueueRepo defines the repository contract required by QueueService.
type QueueRepo interface {
	ListQueueItems(ctx context.Context, db *gorm.DB, status string, limit, offset int) ([]domain.QueueItem, error)
	ConcludeQueueItem(ctx context.Context, db *gorm.DB, id, productID string) error
	CreateMarketplaceLink(ctx context.Context, db *gorm.DB, l *domain.MarketplaceLink) error
}

// ConfirmInput is an operator's confirmation of a queued registration.
type ConfirmInput struct {
	QueueID              string
	ProductID            string
	Marketplace          string
	MarketplaceProductID string
	CleanLink            string
	AffiliateLink        string
}

// QueueService serves the manual confirmation queue.
type QueueService struct {
	DB   *gorm.DB
	Repo QueueRepo
}

// NewQueueService constructs a QueueService.
func NewQueueService(db *gorm.DB, r QueueRepo) *QueueService {
	return &QueueService{DB: db, Repo: r}
}

// List returns a page of queue items in one status, newest first. The page
// size is capped at 200.
func (s *QueueService) List(ctx context.Context, status string, limit, offset int) ([]domain.QueueItem, error) {
	if status == "" {
		status = domain.QueuePending
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListQueueItems(ctx, s.DB, status, limit, offset)
}

// Confirm activates a marketplace link for the confirmed product and
// concludes the queue item. It returns the new link's id.
func (s *QueueService) Confirm(ctx context.Context, in ConfirmInput) (string, error) {
	var missing []string
	if strings.TrimSpace(in.QueueID) == "" {
		missing = append(missing, "fila_id")
	}
	if strings.TrimSpace(in.ProductID) == "" {
		missing = append(missing, "produto_id")
	}
	if len(missing) > 0 {
		return "", &ValidationError{Missing: missing}
	}
	if in.Marketplace == "" || in.MarketplaceProductID == "" || in.CleanLink == "" || in.AffiliateLink == "" {
		return "", &ValidationError{Missing: []string{"marketplace", "marketplace_product_id", "link_limpo", "link_afiliado"}}
	}

	link := &domain.MarketplaceLink{
		ProductID:            in.ProductID,
		Marketplace:          in.Marketplace,
		MarketplaceProductID: in.MarketplaceProductID,
		CleanLink:            in.CleanLink,
		AffiliateLink:        in.AffiliateLink,
		Active:               true,
	}
	if err := s.Repo.CreateMarketplaceLink(ctx, s.DB, link); err != nil {
		return "", err
	}
	if err := s.Repo.ConcludeQueueItem(ctx, s.DB, in.QueueID, in.ProductID); err != nil {
		return "", err
	}
	return link.ID, nil
}
