// Package services – IngestService
//
// This file implements the ingestion gateway: it normalizes the loosely
// structured webhook payloads emitted by the messaging gateway (several
// envelope shapes exist in the wild), deduplicates messages by content hash,
// and turns each newly seen message into one or more parsed offers. The
// deterministic extractor runs first; its result stands whenever at least
// one block parsed confidently, otherwise the semantic fallback chain is
// consulted and, on success, replaces it.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/extract"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IngestRepo defines the repository contract required by IngestService.
type IngestRepo interface {
	// InsertMessageDedup persists a message unless its hash was seen before.
	InsertMessageDedup(ctx context.Context, db *gorm.DB, m *domain.Message) (bool, error)

	// CreateOffer persists one parsed offer.
	CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error
}

// OfferParser is the semantic fallback consulted when the deterministic
// extractor produces no confident block.
type OfferParser interface {
	ParseOffers(ctx context.Context, message string) ([]extract.Offer, error)
}

// GatewayEvent is a normalized inbound message, extracted from whichever
// envelope shape the gateway delivered.
type GatewayEvent struct {
	InstanceID string
	GroupID    string
	Caption    string
	MediaURL   string
	MessageID  string
}

// IngestResult is the outcome of one webhook delivery.
type IngestResult struct {
	CorrelationID string `json:"correlation_id"`
	Duplicate     bool   `json:"duplicate"`
	MessageID     string `json:"-"`
	OfferCount    int    `json:"-"`
}

// IngestService ingests gateway webhook deliveries.
type IngestService struct {
	DB     *gorm.DB
	Repo   IngestRepo
	Parser OfferParser
}

// NewIngestService constructs an IngestService. Parser may be nil, in which
// case only the deterministic extractor runs.
func NewIngestService(db *gorm.DB, r IngestRepo, p OfferParser) *IngestService {
	return &IngestService{DB: db, Repo: r, Parser: p}
}

// gatewayKey mirrors the gateway's message key object.
type gatewayKey struct {
	RemoteJid string `json:"remoteJid"`
	ID        string `json:"id"`
}

// gatewayData mirrors the gateway's event data object.
type gatewayData struct {
	InstanceID string     `json:"instanceId"`
	Instance   string     `json:"instance"`
	Key        gatewayKey `json:"key"`
	Message    struct {
		Conversation string `json:"conversation"`
		ImageMessage struct {
			Caption string `json:"caption"`
			URL     string `json:"url"`
		} `json:"imageMessage"`
	} `json:"message"`
}

// gatewayEnvelope covers every envelope shape observed from the gateway:
// flat events, events nested under "body", and single-element arrays of
// either. Field fallbacks are resolved in ExtractGatewayEvent.
type gatewayEnvelope struct {
	Body *gatewayEnvelope `json:"body"`

	InstanceID string `json:"instanceId"`
	Instance   string `json:"instance"`
	GroupID    string `json:"group_id"`
	GroupIDAlt string `json:"groupId"`

	Caption string `json:"caption"`
	Text    string `json:"text"`
	Legenda string `json:"legenda"`

	MediaURL    string `json:"media_url"`
	MediaURLAlt string `json:"mediaUrl"`
	ImageURL    string `json:"image_url"`
	ImageURLAlt string `json:"imageUrl"`
	Image       struct {
		URL string `json:"url"`
	} `json:"image"`
	Media struct {
		URL string `json:"url"`
	} `json:"media"`

	Data *gatewayData `json:"data"`
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (e *gatewayEnvelope) mediaURL() string {
	return firstOf(
		e.MediaURL, e.MediaURLAlt, e.ImageURL, e.ImageURLAlt,
		e.Image.URL, e.Media.URL,
		func() string {
			if e.Data != nil {
				return e.Data.Message.ImageMessage.URL
			}
			return ""
		}(),
	)
}

// ExtractGatewayEvent normalizes a raw webhook body into a GatewayEvent.
// Array payloads contribute their first element; unknown fields are ignored.
func ExtractGatewayEvent(raw json.RawMessage) (GatewayEvent, error) {
	body := raw
	var arr []json.RawMessage
	if json.Unmarshal(raw, &arr) == nil {
		if len(arr) == 0 {
			return GatewayEvent{}, nil
		}
		body = arr[0]
	}

	var root gatewayEnvelope
	if err := json.Unmarshal(body, &root); err != nil {
		return GatewayEvent{}, err
	}

	inner := root.Body
	if inner == nil {
		inner = &gatewayEnvelope{}
	}

	data := inner.Data
	if data == nil {
		data = root.Data
	}
	if data == nil {
		data = &gatewayData{}
	}

	ev := GatewayEvent{
		InstanceID: firstOf(
			inner.InstanceID, root.InstanceID,
			inner.Instance, root.Instance,
			data.InstanceID, data.Instance,
		),
		GroupID: firstOf(
			data.Key.RemoteJid,
			inner.GroupID, root.GroupID, root.GroupIDAlt,
		),
		Caption: firstOf(
			data.Message.ImageMessage.Caption,
			data.Message.Conversation,
			inner.Caption, inner.Text, inner.Legenda,
			root.Caption, root.Text, root.Legenda,
		),
		MessageID: data.Key.ID,
	}
	if root.Body != nil {
		ev.MediaURL = inner.mediaURL()
	} else {
		ev.MediaURL = root.mediaURL()
	}
	return ev, nil
}

// stableHash derives the dedup key from the identifying fields of an event.
// The raw gateway envelope is deliberately excluded: retries arrive wrapped
// in differing envelopes and must still collapse onto the same hash.
func stableHash(ev GatewayEvent, linkScrape string) string {
	payload, _ := json.Marshal(struct {
		InstanceID string `json:"instance_id"`
		GroupID    string `json:"group_id"`
		MessageID  string `json:"message_id"`
		Caption    string `json:"caption"`
		MediaURL   string `json:"media_url"`
		LinkScrape string `json:"link_scrape"`
	}{ev.InstanceID, ev.GroupID, ev.MessageID, ev.Caption, ev.MediaURL, linkScrape})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Ingest processes one webhook delivery end to end. It returns a
// *ValidationError when the event lacks instance, group or caption.
// Duplicates are acknowledged without reprocessing.
func (s *IngestService) Ingest(ctx context.Context, raw json.RawMessage) (*IngestResult, error) {
	ev, err := ExtractGatewayEvent(raw)
	if err != nil {
		return nil, err
	}

	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("instance.id", ev.InstanceID),
			attribute.String("group.id", ev.GroupID),
		),
	)
	defer span.End()

	var missing []string
	if ev.InstanceID == "" {
		missing = append(missing, "instance_id")
	}
	if ev.GroupID == "" {
		missing = append(missing, "group_id")
	}
	if ev.Caption == "" {
		missing = append(missing, "legenda")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	marketplace, linkScrape := extract.DetectMarketplace(ev.Caption)
	correlationID := uuid.NewString()

	msg := &domain.Message{
		InstanceID:    ev.InstanceID,
		GroupID:       ev.GroupID,
		MessageID:     ev.MessageID,
		Caption:       ev.Caption,
		Marketplace:   marketplace,
		LinkScrape:    linkScrape,
		MediaURL:      ev.MediaURL,
		Hash:          stableHash(ev, linkScrape),
		CorrelationID: correlationID,
	}

	inserted, err := s.Repo.InsertMessageDedup(ctx, s.DB, msg)
	if err != nil {
		return nil, err
	}

	res := &IngestResult{CorrelationID: correlationID, Duplicate: !inserted, MessageID: msg.ID}
	if !inserted {
		log.Ctx(ctx).Info().
			Str("instance_id", ev.InstanceID).
			Str("group_id", ev.GroupID).
			Str("correlation_id", correlationID).
			Msg("duplicate message skipped")
		return res, nil
	}

	items := extract.ParseOffers(ev.Caption)
	confident := false
	for _, it := range items {
		if it.Status {
			confident = true
			break
		}
	}
	if !confident && s.Parser != nil {
		parsed, perr := s.Parser.ParseOffers(ctx, ev.Caption)
		switch {
		case perr != nil:
			log.Ctx(ctx).Warn().Err(perr).
				Str("correlation_id", correlationID).
				Msg("semantic extraction failed, keeping deterministic result")
		case len(parsed) > 0:
			items = parsed
		}
	}

	batchID := uuid.NewString()
	multi := len(items) > 1
	for i, it := range items {
		link := it.Link
		if link == "" {
			link = linkScrape
		}
		offer := &domain.Offer{
			MessageID:   msg.ID,
			BatchID:     batchID,
			MultiOffer:  multi,
			MultiOrder:  i + 1,
			Marketplace: marketplace,
			ProductName: it.Name,
			OfferBody:   it.Body,
			Coupons:     it.Coupons,
			SalePrice:   it.Price,
			LinkScrape:  link,
		}
		if err := s.Repo.CreateOffer(ctx, s.DB, offer); err != nil {
			return nil, err
		}
	}
	res.OfferCount = len(items)

	log.Ctx(ctx).Info().
		Str("instance_id", ev.InstanceID).
		Str("group_id", ev.GroupID).
		Str("marketplace", marketplace).
		Str("correlation_id", correlationID).
		Int("offers", len(items)).
		Msg("message ingested")
	return res, nil
}
