package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

type fakeQueueRepo struct {
	listStatus string
	listLimit  int
	listOffset int

	concludedID      string
	concludedProduct string
	link             *domain.MarketplaceLink
}

func (r *fakeQueueRepo) ListQueueItems(ctx context.Context, db *gorm.DB, status string, limit, offset int) ([]domain.QueueItem, error) {
	r.listStatus, r.listLimit, r.listOffset = status, limit, offset
	return []domain.QueueItem{{ID: "fila-1"}}, nil
}

func (r *fakeQueueRepo) ConcludeQueueItem(ctx context.Context, db *gorm.DB, id, productID string) error {
	r.concludedID, r.concludedProduct = id, productID
	return nil
}

func (r *fakeQueueRepo) CreateMarketplaceLink(ctx context.Context, db *gorm.DB, l *domain.MarketplaceLink) error {
	l.ID = "link-1"
	r.link = l
	return nil
}

func TestQueueList_Defaults(t *testing.T) {
	repo := &fakeQueueRepo{}
	s := NewQueueService(nil, repo)

	if _, err := s.List(context.Background(), "", 0, -3); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.listStatus != domain.QueuePending || repo.listLimit != 50 || repo.listOffset != 0 {
		t.Errorf("defaults wrong: %s %d %d", repo.listStatus, repo.listLimit, repo.listOffset)
	}

	if _, err := s.List(context.Background(), domain.QueueConcluded, 1000, 10); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.listLimit != 200 {
		t.Errorf("limit cap = %d, want 200", repo.listLimit)
	}
}

func TestQueueConfirm(t *testing.T) {
	repo := &fakeQueueRepo{}
	s := NewQueueService(nil, repo)

	linkID, err := s.Confirm(context.Background(), ConfirmInput{
		QueueID:              "fila-1",
		ProductID:            "prod-1",
		Marketplace:          "mercadolivre",
		MarketplaceProductID: "MLB123",
		CleanLink:            "https://www.mercadolivre.com.br/p/MLB123",
		AffiliateLink:        "https://afil.io/x",
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if linkID != "link-1" {
		t.Errorf("link id = %q", linkID)
	}
	if !repo.link.Active {
		t.Error("confirmed link must be active")
	}
	if repo.concludedID != "fila-1" || repo.concludedProduct != "prod-1" {
		t.Errorf("conclude args: %q %q", repo.concludedID, repo.concludedProduct)
	}
}

func TestQueueConfirm_Validation(t *testing.T) {
	s := NewQueueService(nil, &fakeQueueRepo{})

	var verr *ValidationError
	if _, err := s.Confirm(context.Background(), ConfirmInput{}); !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	// Identity present but marketplace data incomplete.
	_, err := s.Confirm(context.Background(), ConfirmInput{QueueID: "f", ProductID: "p", Marketplace: "mercadolivre"})
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
