// Package services – DispatchService
//
// This file implements the dispatcher: it verifies an offer is ready to
// leave (active marketplace link, product photo, active template), renders
// the final message, fans it out to the active groups of the originating
// instance, and records the attempt. A partial delivery still marks the
// offer sent; the per-group outcomes live in the dispatch record for
// operators to retry manually.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/evolution"
)

// DispatchRepo defines the repository contract required by DispatchService.
type DispatchRepo interface {
	GetOffer(ctx context.Context, db *gorm.DB, id string) (*domain.Offer, error)
	SetOfferStatus(ctx context.Context, db *gorm.DB, id string, status domain.OfferStatus) error
	GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error)
	FindActiveLink(ctx context.Context, db *gorm.DB, marketplace, marketplaceProductID string) (*domain.MarketplaceLink, error)
	GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error)
	GetInstance(ctx context.Context, db *gorm.DB, instanceID string) (*domain.Instance, error)
	ListActiveGroupIDs(ctx context.Context, db *gorm.DB, instanceID string) ([]string, error)
	CreateDispatchRecord(ctx context.Context, db *gorm.DB, r *domain.DispatchRecord) error
}

// MediaSender delivers an image with caption to one group.
type MediaSender interface {
	SendMedia(ctx context.Context, msg evolution.MediaMessage) (*evolution.SendResult, error)
}

// TemplateSource picks the template a dispatch renders with.
type TemplateSource interface {
	Random(ctx context.Context, marketplace, offerType string) (*domain.Template, error)
}

// DispatchResult is the outcome of one dispatch attempt. A precondition
// failure sets Reason and leaves Groups empty.
type DispatchResult struct {
	OK     bool
	Status domain.OfferStatus

	// Reason names the failed precondition: produto_marketplace_not_found,
	// produto_sem_foto or no_active_groups.
	Reason string

	Groups []domain.GroupResult
}

// DispatchService sends approved offers to subscriber groups.
type DispatchService struct {
	DB        *gorm.DB
	Repo      DispatchRepo
	Templates TemplateSource
	Sender    MediaSender
}

// NewDispatchService constructs a DispatchService.
func NewDispatchService(db *gorm.DB, r DispatchRepo, t TemplateSource, sender MediaSender) *DispatchService {
	return &DispatchService{DB: db, Repo: r, Templates: t, Sender: sender}
}

func (s *DispatchService) setStatus(ctx context.Context, offer *domain.Offer, next domain.OfferStatus) error {
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

// Send dispatches one offer. Precondition failures come back as a
// DispatchResult with Reason set; only missing entities and persistence
// problems surface as errors.
func (s *DispatchService) Send(ctx context.Context, offerID string) (*DispatchResult, error) {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(attribute.String("offer.id", offerID)),
	)
	defer span.End()

	offer, err := s.Repo.GetOffer(ctx, s.DB, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}

	marketplace := offer.Marketplace
	if marketplace == "" {
		marketplace = DefaultMarketplace
	}
	offerType := offer.OfferType
	if offerType == "" {
		offerType = "padrao"
	}

	link, err := s.Repo.FindActiveLink(ctx, s.DB, marketplace, offer.MarketplaceProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Ctx(ctx).Warn().
				Str("offer_id", offer.ID).
				Str("marketplace", marketplace).
				Msg("dispatch skipped, no active marketplace link")
			return &DispatchResult{OK: false, Status: offer.Status, Reason: "produto_marketplace_not_found"}, nil
		}
		return nil, err
	}

	product, err := s.Repo.GetProduct(ctx, s.DB, link.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if product.PhotoURL == "" {
		if err := s.setStatus(ctx, offer, domain.StatusNoPhoto); err != nil {
			return nil, err
		}
		log.Ctx(ctx).Warn().
			Str("offer_id", offer.ID).
			Str("product_id", product.ID).
			Msg("dispatch blocked, product has no photo")
		return &DispatchResult{OK: false, Status: domain.StatusNoPhoto, Reason: "produto_sem_foto"}, nil
	}

	template, err := s.Templates.Random(ctx, marketplace, offerType)
	if err != nil {
		return nil, err
	}
	finalText := RenderTemplate(template.Body, TemplateVars{
		MessageName:   offer.ProductName,
		OfferBody:     offer.OfferBody,
		AffiliateLink: link.AffiliateLink,
	})

	msg, err := s.Repo.GetMessage(ctx, s.DB, offer.MessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	instanceName := msg.InstanceID
	if inst, err := s.Repo.GetInstance(ctx, s.DB, msg.InstanceID); err == nil && inst.InstanceName != "" {
		instanceName = inst.InstanceName
	}

	groupIDs, err := s.Repo.ListActiveGroupIDs(ctx, s.DB, msg.InstanceID)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		log.Ctx(ctx).Warn().
			Str("offer_id", offer.ID).
			Str("instance_id", msg.InstanceID).
			Msg("dispatch skipped, no active groups")
		return &DispatchResult{OK: false, Status: offer.Status, Reason: "no_active_groups"}, nil
	}

	if s.Sender == nil {
		return nil, ErrGatewayUnconfigured
	}
	mimetype := product.PhotoMimetype
	if mimetype == "" {
		mimetype = "image/jpeg"
	}
	results := make([]domain.GroupResult, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		_, sendErr := s.Sender.SendMedia(ctx, evolution.MediaMessage{
			InstanceName: instanceName,
			RemoteJid:    groupID,
			MediaURL:     product.PhotoURL,
			Mimetype:     mimetype,
			Caption:      finalText,
			FileName:     "produto.jpg",
		})
		if sendErr != nil {
			log.Ctx(ctx).Warn().Err(sendErr).
				Str("offer_id", offer.ID).
				Str("group_id", groupID).
				Msg("group delivery failed")
		}
		results = append(results, domain.GroupResult{GroupID: groupID, OK: sendErr == nil})
	}

	record := &domain.DispatchRecord{
		OfferID:     offer.ID,
		BatchID:     offer.BatchID,
		ProductID:   link.ProductID,
		Marketplace: marketplace,
		FinalText:   finalText,
		CouponsUsed: offer.Coupons,
		InstanceID:  msg.InstanceID,
		Groups:      groupIDs,
		MediaURL:    product.PhotoURL,
		Results:     results,
		Status:      string(domain.StatusSent),
	}
	if err := s.Repo.CreateDispatchRecord(ctx, s.DB, record); err != nil {
		return nil, err
	}

	// The offer is marked sent even when some groups failed; the record
	// keeps the per-group outcomes for manual retry.
	if err := s.setStatus(ctx, offer, domain.StatusSent); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("offer_id", offer.ID).
		Str("instance_id", msg.InstanceID).
		Int("groups", len(results)).
		Msg("offer dispatched")
	return &DispatchResult{OK: true, Status: domain.StatusSent, Groups: results}, nil
}
