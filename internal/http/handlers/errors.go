// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes (e.g., bad_request, not_found) mirror common HTTP status
//     semantics to aid interoperability.
//   - Domain-specific codes keep the Portuguese field names the curation
//     tooling already branches on (oferta_id_required, fila_id_and_produto_id_required).
//   - All error responses must include both an HTTP status and one of these codes.

package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Ingestion and pipeline:
	ErrCodeMissingFields           = "missing_required_fields"
	ErrCodeOfferIDRequired         = "oferta_id_required"
	ErrCodeOfferNotFound           = "oferta_not_found"
	ErrCodeMarketplaceNotSupported = "marketplace_not_supported"
	ErrCodeMarketplaceIDRequired   = "marketplace_product_id_required"

	// Dispatch:
	ErrCodeTemplateNotFound = "template_not_found"
	ErrCodeMessageNotFound  = "mensagem_not_found"

	// Scraper:
	ErrCodeLinkRequired = "link_required"
	ErrCodeNoLink       = "sem_link"

	// Coupons:
	ErrCodeCouponCodeRequired  = "codigo_required"
	ErrCodeCouponStatusInvalid = "status_invalido"

	// Products and confirmation queue:
	ErrCodeOfficialNameRequired    = "nome_oficial_required"
	ErrCodeQueueConfirmRequired    = "fila_id_and_produto_id_required"
	ErrCodeMarketplaceDataRequired = "marketplace_data_required"
	ErrCodeQueueItemNotFound       = "fila_not_found"
	ErrCodeLinkIDRequired          = "link_id_required"
	ErrCodeLinkNotFound            = "link_not_found"

	// Templates:
	ErrCodeNameAndBodyRequired = "nome_and_body_required"
	ErrCodeTemplateIDRequired  = "template_id_required"

	// Groups and instances:
	ErrCodeInstanceRefRequired   = "instance_id_or_instance_name_required"
	ErrCodeInstanceGroupRequired = "instance_id_and_group_id_required"
	ErrCodeInstanceNotFound      = "instance_not_found"
)
