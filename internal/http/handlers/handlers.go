// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers depend on abstract service interfaces to keep transport concerns
// (binding, status codes, error envelopes) separate from business logic. Each
// endpoint group gets its own file; the shared response helpers live in
// response.go and the error-code taxonomy in errors.go.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/scraper"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// IngestService accepts raw gateway webhook deliveries.
type IngestService interface {
	// Ingest deduplicates and parses one delivery into persisted offers.
	Ingest(ctx context.Context, raw json.RawMessage) (*services.IngestResult, error)
}

// PipelineService advances parsed offers through coupon gating and product
// resolution, and applies manual product decisions.
type PipelineService interface {
	ProcessOffer(ctx context.Context, offerID, marketplace string) (*services.PipelineResult, error)
	ProcessDecision(ctx context.Context, in services.DecisionInput) (*services.PipelineResult, error)
}

// DispatchService renders and fans an approved offer out to active groups.
type DispatchService interface {
	Send(ctx context.Context, offerID string) (*services.DispatchResult, error)
}

// ScrapeService enriches offers from marketplace product pages.
type ScrapeService interface {
	ScrapeLink(ctx context.Context, link string) (*scraper.Result, error)
	ScrapeOffer(ctx context.Context, offerID string) (*scraper.Result, error)
}

// CouponService manages the coupon allow/deny list.
type CouponService interface {
	List(ctx context.Context, status string) ([]domain.Coupon, error)
	SetStatus(ctx context.Context, code, status string) error
	Remove(ctx context.Context, code string) error
}

// QueueService serves the manual product-confirmation queue.
type QueueService interface {
	List(ctx context.Context, status string, limit, offset int) ([]domain.QueueItem, error)
	Confirm(ctx context.Context, in services.ConfirmInput) (string, error)
}

// ProductService manages curated catalog products and their marketplace
// links.
type ProductService interface {
	Create(ctx context.Context, officialName, messageName string) (string, error)
	List(ctx context.Context, active *bool) ([]domain.Product, error)
	ListLinks(ctx context.Context, marketplace string) ([]domain.MarketplaceLink, error)
	SetLinkActive(ctx context.Context, id string, active bool) error
	Marketplaces(ctx context.Context) ([]string, error)
}

// TemplateService manages dispatch templates and rendering.
type TemplateService interface {
	List(ctx context.Context, f services.TemplateListFilter) ([]domain.Template, error)
	Create(ctx context.Context, t *domain.Template) error
	Update(ctx context.Context, id, name, body string, active *bool) error
	RenderRandom(ctx context.Context, marketplace, offerType string, vars services.TemplateVars) (*domain.Template, string, error)
}

// GroupService mirrors gateway groups and controls dispatch eligibility.
type GroupService interface {
	Sync(ctx context.Context, instanceID, instanceName string) (int, string, error)
	SetActive(ctx context.Context, instanceID, groupID string, active bool) error
	List(ctx context.Context, f services.GroupListFilter) ([]domain.Group, error)
}

// InstanceService mirrors gateway instances into the local registry.
type InstanceService interface {
	Sync(ctx context.Context) (int, error)
	List(ctx context.Context) ([]domain.Instance, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the offers API. It depends on
// abstract service interfaces to keep transport concerns decoupled from
// business logic.
type Handlers struct {
	ingestSvc   IngestService
	pipeSvc     PipelineService
	dispatchSvc DispatchService
	scrapeSvc   ScrapeService
	couponSvc   CouponService
	queueSvc    QueueService
	productSvc  ProductService
	templateSvc TemplateService
	groupSvc    GroupService
	instSvc     InstanceService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(
	ingestSvc IngestService,
	pipeSvc PipelineService,
	dispatchSvc DispatchService,
	scrapeSvc ScrapeService,
	couponSvc CouponService,
	queueSvc QueueService,
	productSvc ProductService,
	templateSvc TemplateService,
	groupSvc GroupService,
	instSvc InstanceService,
) *Handlers {
	return &Handlers{
		ingestSvc:   ingestSvc,
		pipeSvc:     pipeSvc,
		dispatchSvc: dispatchSvc,
		scrapeSvc:   scrapeSvc,
		couponSvc:   couponSvc,
		queueSvc:    queueSvc,
		productSvc:  productSvc,
		templateSvc: templateSvc,
		groupSvc:    groupSvc,
		instSvc:     instSvc,
	}
}
