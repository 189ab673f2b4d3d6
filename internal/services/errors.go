// Package services defines the business logic of the offers pipeline:
// ingesting gateway webhooks, processing parsed offers through the coupon
// gate and product resolver, managing the registration queue and catalog,
// and dispatching rendered offers to subscriber groups.
//
// This file centralizes common service-level error values so that they can
// be consistently returned by service methods and checked by callers.
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline and catalog errors.
var (
	// ErrOfferNotFound indicates that the referenced parsed offer does not
	// exist.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrProductNotFound indicates that the referenced catalog product does
	// not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrMessageNotFound indicates that the originating gateway message of
	// an offer is missing.
	ErrMessageNotFound = errors.New("message not found")

	// ErrQueueItemNotFound indicates that the referenced registration queue
	// item does not exist.
	ErrQueueItemNotFound = errors.New("queue item not found")

	// ErrTemplateNotFound is returned by the dispatcher when no active
	// template exists for the offer's marketplace and type.
	ErrTemplateNotFound = errors.New("no active template for marketplace and type")

	// ErrInstanceNotFound indicates that the referenced gateway instance is
	// unknown.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrLinkNotFound indicates that the referenced marketplace link does
	// not exist.
	ErrLinkNotFound = errors.New("marketplace link not found")

	// ErrMarketplaceNotSupported is returned when pipeline processing is
	// requested for a marketplace the resolver does not handle yet.
	ErrMarketplaceNotSupported = errors.New("marketplace not supported")

	// ErrInvalidCouponStatus is returned when a coupon status value is
	// outside the allowed set.
	ErrInvalidCouponStatus = errors.New("coupon status must be aprovado, pendente or bloqueado")

	// ErrMissingLink is returned when an enrichment is requested for an
	// offer that carries no scrapeable link.
	ErrMissingLink = errors.New("offer has no link to scrape")

	// ErrInvalidTransition is returned when an offer status change is not
	// allowed by the state machine.
	ErrInvalidTransition = errors.New("invalid offer status transition")

	// ErrGatewayUnconfigured is returned when an operation needs the
	// messaging gateway but no client was configured at startup.
	ErrGatewayUnconfigured = errors.New("messaging gateway not configured")
)

// ValidationError reports the required fields missing from a request. It is
// returned by services that accept loosely structured gateway payloads, so
// the handler can echo the missing field names back to the caller.
type ValidationError struct {
	Missing []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}
