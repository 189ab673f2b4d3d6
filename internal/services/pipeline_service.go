// Package services – PipelineService
//
// This file implements the offer pipeline: the coupon gate, the product
// resolver, and the registration queue handoff. An offer only advances when
// every coupon it carries is approved; unknown codes are registered for
// triage and halt the offer. Product resolution tries an exact catalog hit,
// then fuzzy candidates arbitrated by the semantic matcher, and finally
// provisions an inactive catalog product so the human confirmation queue has
// something concrete to approve.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/evolution"
	"github.com/promopipe/go-offers-backend/internal/llm"
	"github.com/promopipe/go-offers-backend/internal/match"
	"github.com/promopipe/go-offers-backend/internal/media"
)

// DefaultMarketplace is assumed when a pipeline request omits one.
const DefaultMarketplace = "mercadolivre"

// defaultSimilarityThreshold gates fuzzy product candidates.
const defaultSimilarityThreshold = 0.2

// PipelineRepo defines the repository contract required by PipelineService.
type PipelineRepo interface {
	GetOffer(ctx context.Context, db *gorm.DB, id string) (*domain.Offer, error)
	SetOfferStatus(ctx context.Context, db *gorm.DB, id string, status domain.OfferStatus) error
	GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error)
	GetInstance(ctx context.Context, db *gorm.DB, instanceID string) (*domain.Instance, error)

	GetCouponsByCodes(ctx context.Context, db *gorm.DB, codes []string) ([]domain.Coupon, error)
	RegisterCouponsPending(ctx context.Context, db *gorm.DB, codes []string) error

	FindActiveLink(ctx context.Context, db *gorm.DB, marketplace, marketplaceProductID string) (*domain.MarketplaceLink, error)
	FindProductByOfficialName(ctx context.Context, db *gorm.DB, officialName string) (*domain.Product, error)
	ListProductNames(ctx context.Context, db *gorm.DB) ([]domain.Product, error)
	CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error
	GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error)
	UpdateProductPhoto(ctx context.Context, db *gorm.DB, id, photoURL, storagePath, mimetype string) error

	FindPendingQueueItem(ctx context.Context, db *gorm.DB, marketplace, marketplaceProductID string) (*domain.QueueItem, error)
	SetQueueItemProduct(ctx context.Context, db *gorm.DB, id, productID string) error
	CreateQueueItemDedup(ctx context.Context, db *gorm.DB, item *domain.QueueItem) (bool, error)
}

// ProductMatcher arbitrates between fuzzy catalog candidates.
type ProductMatcher interface {
	MatchProduct(ctx context.Context, officialName string, candidates []llm.MatchCandidate) llm.MatchResult
}

// MediaFetcher retrieves message media from the gateway as base64.
type MediaFetcher interface {
	FetchMediaBase64(ctx context.Context, instanceName, messageID string) (*evolution.Media, error)
}

// PhotoStore uploads a base64 payload and returns its public URL.
type PhotoStore interface {
	Upload(ctx context.Context, path, b64, mimetype string) (string, error)
}

// PipelineResult is the outcome of one pipeline pass over an offer.
type PipelineResult struct {
	OK     bool
	Status domain.OfferStatus

	// ProductMarketplaceID and ProductID are set on produto_ok.
	ProductMarketplaceID string
	ProductID            string

	// QueueID and SuggestedProductID are set on produto_pendente.
	QueueID            string
	SuggestedProductID string
}

// DecisionInput carries the manual decision replay of a pipeline pass, used
// when an operator supplies the marketplace identity an offer was missing.
type DecisionInput struct {
	MessageID            string
	OfferID              string
	Marketplace          string
	MarketplaceProductID string
	MessageName          string
	OfficialName         string
	CleanLink            string
	MediaURL             string
}

// PipelineService advances parsed offers toward dispatch.
type PipelineService struct {
	DB      *gorm.DB
	Repo    PipelineRepo
	Matcher ProductMatcher
	Gateway MediaFetcher
	Photos  PhotoStore

	// SimilarityThreshold gates fuzzy candidates; defaults to 0.2.
	SimilarityThreshold float64
}

// NewPipelineService constructs a PipelineService. Gateway and Photos may be
// nil; the photo backfill is then skipped.
func NewPipelineService(db *gorm.DB, r PipelineRepo, m ProductMatcher, g MediaFetcher, p PhotoStore) *PipelineService {
	return &PipelineService{
		DB:                  db,
		Repo:                r,
		Matcher:             m,
		Gateway:             g,
		Photos:              p,
		SimilarityThreshold: defaultSimilarityThreshold,
	}
}

// setStatus persists an offer status change after validating it against the
// state machine. Re-entering the current status is a no-op, so reprocessing
// a halted offer stays idempotent.
func (s *PipelineService) setStatus(ctx context.Context, offer *domain.Offer, next domain.OfferStatus) error {
	if offer.Status == next {
		return nil
	}
	if _, err := offer.Status.Transition(next); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("offer_id", offer.ID).Msg("offer status transition rejected")
		return ErrInvalidTransition
	}
	if err := s.Repo.SetOfferStatus(ctx, s.DB, offer.ID, next); err != nil {
		return err
	}
	offer.Status = next
	return nil
}

// gateCoupons runs the coupon gate over an offer. It returns the halt result
// when a coupon blocks the offer, or nil when the offer may proceed.
func (s *PipelineService) gateCoupons(ctx context.Context, offer *domain.Offer) (*PipelineResult, error) {
	if len(offer.Coupons) == 0 {
		return nil, nil
	}

	known, err := s.Repo.GetCouponsByCodes(ctx, s.DB, offer.Coupons)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]string, len(known))
	for _, c := range known {
		byCode[c.Code] = c.Status
	}

	var pending, unknown []string
	approved := 0
	for _, raw := range offer.Coupons {
		code := strings.ToUpper(strings.TrimSpace(raw))
		switch byCode[code] {
		case domain.CouponBlocked:
			if err := s.setStatus(ctx, offer, domain.StatusCouponBlocked); err != nil {
				return nil, err
			}
			log.Ctx(ctx).Warn().
				Str("offer_id", offer.ID).
				Str("coupon", code).
				Msg("offer halted by blocked coupon")
			return &PipelineResult{OK: false, Status: domain.StatusCouponBlocked}, nil
		case domain.CouponApproved:
			approved++
		case domain.CouponPending:
			pending = append(pending, code)
		default:
			unknown = append(unknown, code)
		}
	}

	if len(unknown) > 0 {
		if err := s.Repo.RegisterCouponsPending(ctx, s.DB, unknown); err != nil {
			return nil, err
		}
	}
	if len(pending) > 0 || len(unknown) > 0 {
		if err := s.setStatus(ctx, offer, domain.StatusCouponPending); err != nil {
			return nil, err
		}
		log.Ctx(ctx).Warn().
			Str("offer_id", offer.ID).
			Strs("coupons", append(pending, unknown...)).
			Msg("offer awaiting coupon triage")
		return &PipelineResult{OK: false, Status: domain.StatusCouponPending}, nil
	}

	// Only record the gate pass when the offer has not moved beyond it.
	// Reprocessing a queued offer re-runs the gate, and produto_pendente
	// must not fall back to cupom_ok on its way to produto_ok.
	if approved == len(offer.Coupons) {
		switch offer.Status {
		case domain.StatusParsed, domain.StatusCouponPending:
			if err := s.setStatus(ctx, offer, domain.StatusCouponOK); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

// resolveProduct finds the catalog product for an official name: exact match
// first, then fuzzy candidates arbitrated by the semantic matcher. Returns
// "" when nothing matched.
func (s *PipelineService) resolveProduct(ctx context.Context, officialName string) (string, error) {
	if strings.TrimSpace(officialName) == "" {
		return "", nil
	}

	exact, err := s.Repo.FindProductByOfficialName(ctx, s.DB, officialName)
	if err == nil {
		return exact.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	products, err := s.Repo.ListProductNames(ctx, s.DB)
	if err != nil {
		return "", err
	}
	candidates := make([]match.Candidate, 0, len(products))
	for _, p := range products {
		candidates = append(candidates, match.Candidate{ID: p.ID, Name: p.OfficialName})
	}
	threshold := s.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultSimilarityThreshold
	}
	top := match.TopMatches(officialName, candidates, threshold, 5)
	if len(top) == 0 || s.Matcher == nil {
		return "", nil
	}

	llmCandidates := make([]llm.MatchCandidate, 0, len(top))
	for _, c := range top {
		llmCandidates = append(llmCandidates, llm.MatchCandidate{ProductID: c.ID, Name: c.Name})
	}
	choice := s.Matcher.MatchProduct(ctx, officialName, llmCandidates)
	if choice.Match && choice.ProductID != "" {
		return choice.ProductID, nil
	}
	return "", nil
}

// backfillPhoto downloads the originating message's media from the gateway,
// stores it, and records it on the product. Failures are logged and return
// ""; a missing photo never halts the pipeline here.
func (s *PipelineService) backfillPhoto(ctx context.Context, productID, messageID string) string {
	if productID == "" || messageID == "" || s.Gateway == nil || s.Photos == nil {
		return ""
	}
	msg, err := s.Repo.GetMessage(ctx, s.DB, messageID)
	if err != nil || msg.MessageID == "" {
		return ""
	}
	// The webhook only records the instance id; the gateway addresses
	// instances by name, so resolve it through the registry when absent.
	instanceName := msg.InstanceName
	if instanceName == "" {
		instanceName = msg.InstanceID
		if inst, ierr := s.Repo.GetInstance(ctx, s.DB, msg.InstanceID); ierr == nil && inst.InstanceName != "" {
			instanceName = inst.InstanceName
		}
	}
	if instanceName == "" {
		return ""
	}
	asset, err := s.Gateway.FetchMediaBase64(ctx, instanceName, msg.MessageID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("product_id", productID).
			Str("message_id", messageID).
			Msg("product photo download failed")
		return ""
	}
	mimetype := asset.Mimetype
	if mimetype == "" {
		mimetype = msg.MediaMimetype
	}
	if mimetype == "" {
		mimetype = "image/jpeg"
	}
	path := media.ProductPhotoPath(productID, mimetype)
	publicURL, err := s.Photos.Upload(ctx, path, asset.Base64, mimetype)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("product_id", productID).
			Msg("product photo upload failed")
		return ""
	}
	if err := s.Repo.UpdateProductPhoto(ctx, s.DB, productID, publicURL, path, mimetype); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("product_id", productID).
			Msg("product photo record failed")
	}
	return publicURL
}

// resolveOrProvision resolves the catalog product for an official name,
// creating an inactive product (with photo backfill) when nothing matched.
// It returns the product id and the photo URL it knows about.
func (s *PipelineService) resolveOrProvision(ctx context.Context, officialName, messageName, messageID string) (productID, photoURL string, err error) {
	productID, err = s.resolveProduct(ctx, officialName)
	if err != nil {
		return "", "", err
	}

	if productID == "" {
		name := firstOf(officialName, messageName, "Produto sem nome")
		product := &domain.Product{
			Name:         name,
			MessageName:  messageName,
			OfficialName: officialName,
			Active:       false,
		}
		if err := s.Repo.CreateProduct(ctx, s.DB, product); err != nil {
			return "", "", err
		}
		productID = product.ID
		photoURL = s.backfillPhoto(ctx, productID, messageID)
	}

	if photoURL == "" && productID != "" {
		if p, perr := s.Repo.GetProduct(ctx, s.DB, productID); perr == nil {
			photoURL = p.PhotoURL
		}
	}
	return productID, photoURL, nil
}

// ProcessOffer runs the full pipeline over one parsed offer: the coupon
// gate, the marketplace identity check, the product resolver, and the
// registration queue handoff.
func (s *PipelineService) ProcessOffer(ctx context.Context, offerID, marketplace string) (*PipelineResult, error) {
	if marketplace == "" {
		marketplace = DefaultMarketplace
	}

	tr := otel.Tracer("services/PipelineService")
	ctx, span := tr.Start(ctx, "ProcessOffer",
		trace.WithAttributes(
			attribute.String("offer.id", offerID),
			attribute.String("marketplace", marketplace),
		),
	)
	defer span.End()

	offer, err := s.Repo.GetOffer(ctx, s.DB, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	if marketplace != DefaultMarketplace {
		return nil, ErrMarketplaceNotSupported
	}

	if halt, err := s.gateCoupons(ctx, offer); err != nil || halt != nil {
		return halt, err
	}

	if offer.MarketplaceProductID == "" {
		if err := s.setStatus(ctx, offer, domain.StatusNoMarketplaceID); err != nil {
			return nil, err
		}
		log.Ctx(ctx).Warn().
			Str("offer_id", offer.ID).
			Msg("offer has no marketplace product id")
		return &PipelineResult{OK: false, Status: domain.StatusNoMarketplaceID}, nil
	}

	if link, err := s.Repo.FindActiveLink(ctx, s.DB, marketplace, offer.MarketplaceProductID); err == nil {
		if err := s.setStatus(ctx, offer, domain.StatusProductOK); err != nil {
			return nil, err
		}
		return &PipelineResult{
			OK:                   true,
			Status:               domain.StatusProductOK,
			ProductMarketplaceID: link.ID,
			ProductID:            link.ProductID,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	productID, photoURL, err := s.resolveOrProvision(ctx, offer.OfficialName, offer.ProductName, offer.MessageID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.Repo.FindPendingQueueItem(ctx, s.DB, marketplace, offer.MarketplaceProductID); err == nil {
		if existing.ProductID == "" && productID != "" {
			if err := s.Repo.SetQueueItemProduct(ctx, s.DB, existing.ID, productID); err != nil {
				return nil, err
			}
		}
		if err := s.setStatus(ctx, offer, domain.StatusProductPending); err != nil {
			return nil, err
		}
		return &PipelineResult{OK: true, Status: domain.StatusProductPending, QueueID: existing.ID}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	item := &domain.QueueItem{
		MessageID:            offer.MessageID,
		OfferID:              offer.ID,
		ProductID:            productID,
		Marketplace:          marketplace,
		MarketplaceProductID: offer.MarketplaceProductID,
		CleanLink:            offer.CleanLink,
		SuggestedName:        firstOf(offer.ProductName, offer.OfficialName),
		MediaURL:             photoURL,
	}
	if _, err := s.Repo.CreateQueueItemDedup(ctx, s.DB, item); err != nil {
		return nil, err
	}
	if err := s.setStatus(ctx, offer, domain.StatusProductPending); err != nil {
		return nil, err
	}
	return &PipelineResult{
		OK:                 true,
		Status:             domain.StatusProductPending,
		QueueID:            item.ID,
		SuggestedProductID: productID,
	}, nil
}

// ProcessDecision replays the resolver with operator-supplied marketplace
// identity and always lands the product on the registration queue unless an
// active link already exists.
func (s *PipelineService) ProcessDecision(ctx context.Context, in DecisionInput) (*PipelineResult, error) {
	marketplace := in.Marketplace
	if marketplace == "" {
		marketplace = DefaultMarketplace
	}
	if in.MarketplaceProductID == "" {
		return nil, &ValidationError{Missing: []string{"marketplace_product_id"}}
	}

	tr := otel.Tracer("services/PipelineService")
	ctx, span := tr.Start(ctx, "ProcessDecision",
		trace.WithAttributes(
			attribute.String("offer.id", in.OfferID),
			attribute.String("marketplace", marketplace),
			attribute.String("marketplace.product_id", in.MarketplaceProductID),
		),
	)
	defer span.End()

	if link, err := s.Repo.FindActiveLink(ctx, s.DB, marketplace, in.MarketplaceProductID); err == nil {
		return &PipelineResult{
			OK:                   true,
			Status:               domain.StatusProductOK,
			ProductMarketplaceID: link.ID,
			ProductID:            link.ProductID,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	productID, photoURL, err := s.resolveOrProvision(ctx, in.OfficialName, in.MessageName, in.MessageID)
	if err != nil {
		return nil, err
	}

	item := &domain.QueueItem{
		MessageID:            in.MessageID,
		OfferID:              in.OfferID,
		ProductID:            productID,
		Marketplace:          marketplace,
		MarketplaceProductID: in.MarketplaceProductID,
		CleanLink:            in.CleanLink,
		SuggestedName:        firstOf(in.MessageName, in.OfficialName),
		MediaURL:             firstOf(photoURL, in.MediaURL),
	}
	if _, err := s.Repo.CreateQueueItemDedup(ctx, s.DB, item); err != nil {
		return nil, err
	}
	return &PipelineResult{
		OK:        true,
		Status:    domain.StatusProductPending,
		ProductID: productID,
	}, nil
}
