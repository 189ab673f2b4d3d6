// Offer status state machine.
//
// An offer's status is the only mutable field on the row. Instead of writing
// arbitrary strings from handlers, every change goes through Transition,
// which validates the move against a fixed table and reports why a move is
// rejected. Terminal states have no outgoing edges; the confirmation queue
// re-submission path is modeled as produto_pendente → produto_ok.
package domain

import "fmt"

// OfferStatus enumerates the pipeline states of a parsed offer.
type OfferStatus string

const (
	// StatusParsed is the initial state set at extraction time.
	StatusParsed OfferStatus = "parseada"

	// Coupon gate outcomes.
	StatusCouponBlocked OfferStatus = "cupom_bloqueado" // terminal
	StatusCouponPending OfferStatus = "cupom_pendente"  // awaits human coupon triage
	StatusCouponOK      OfferStatus = "cupom_ok"

	// Product resolution outcomes.
	StatusNoMarketplaceID OfferStatus = "sem_marketplace_id" // terminal
	StatusProductOK       OfferStatus = "produto_ok"
	StatusProductPending  OfferStatus = "produto_pendente"

	// Dispatch outcomes.
	StatusSent    OfferStatus = "enviada"  // terminal
	StatusNoPhoto OfferStatus = "sem_foto" // terminal
)

// transitions is the allowed-edge table. An offer with zero coupons skips the
// gate, so the product states are reachable directly from parseada.
var transitions = map[OfferStatus][]OfferStatus{
	StatusParsed: {
		StatusCouponBlocked, StatusCouponPending, StatusCouponOK,
		StatusNoMarketplaceID, StatusProductOK, StatusProductPending,
	},
	StatusCouponPending: {
		// re-submission re-runs the gate
		StatusCouponBlocked, StatusCouponOK,
		StatusNoMarketplaceID, StatusProductOK, StatusProductPending,
	},
	StatusCouponOK: {
		StatusNoMarketplaceID, StatusProductOK, StatusProductPending,
	},
	StatusProductPending: {
		// reprocessing re-runs the coupon gate, which may halt the offer
		// again if a coupon was blocked or reset while it sat in the queue
		StatusCouponBlocked, StatusCouponPending,
		StatusProductOK, StatusSent, StatusNoPhoto,
	},
	StatusProductOK: {
		StatusSent, StatusNoPhoto,
	},
	// cupom_bloqueado, sem_marketplace_id, enviada, sem_foto: terminal
}

// Terminal reports whether no outgoing transition exists from s.
func (s OfferStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known offer status.
func (s OfferStatus) Valid() bool {
	switch s {
	case StatusParsed, StatusCouponBlocked, StatusCouponPending, StatusCouponOK,
		StatusNoMarketplaceID, StatusProductOK, StatusProductPending,
		StatusSent, StatusNoPhoto:
		return true
	}
	return false
}

// Transition validates the move from s to next and returns next on success.
// The error carries the offending pair so callers can log it as-is.
func (s OfferStatus) Transition(next OfferStatus) (OfferStatus, error) {
	if !next.Valid() {
		return s, fmt.Errorf("unknown offer status %q", next)
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	if s.Terminal() {
		return s, fmt.Errorf("offer status %q is terminal, cannot move to %q", s, next)
	}
	return s, fmt.Errorf("invalid offer status transition %q -> %q", s, next)
}
