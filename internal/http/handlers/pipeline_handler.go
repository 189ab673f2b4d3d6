package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// ProcessOfferRequest selects a parsed offer for pipeline processing.
type ProcessOfferRequest struct {
	OfferID     string `json:"oferta_id" example:"a3b9be03-4999-4289-9f03-999b042d65d6"`
	Marketplace string `json:"marketplace" example:"mercadolivre"`
}

// ProductDecisionRequest carries a curator's manual product decision for an
// offer the resolver could not settle automatically.
type ProductDecisionRequest struct {
	MessageID            string `json:"mensagem_id"`
	OfferID              string `json:"oferta_id"`
	Marketplace          string `json:"marketplace" example:"mercadolivre"`
	MarketplaceProductID string `json:"marketplace_product_id" example:"MLB123456"`
	MessageName          string `json:"nome_msg"`
	OfficialName         string `json:"nome_oficial"`
	CleanLink            string `json:"link_limpo"`
	MediaURL             string `json:"media_url"`
}

// PipelineHaltResponse reports an offer halted by a pipeline gate. The offer
// keeps the returned status until reprocessed.
type PipelineHaltResponse struct {
	OK     bool               `json:"ok" example:"false"`
	Status domain.OfferStatus `json:"status" example:"cupom_pendente"`
}

// ProductOKResponse reports an offer resolved to an active catalog product.
type ProductOKResponse struct {
	OK                   bool               `json:"ok" example:"true"`
	Status               domain.OfferStatus `json:"status" example:"produto_ok"`
	ProductMarketplaceID string             `json:"produto_marketplace_id"`
	ProductID            string             `json:"produto_id"`
}

// ProductPendingResponse reports an offer parked in the confirmation queue.
type ProductPendingResponse struct {
	OK                 bool               `json:"ok" example:"true"`
	Status             domain.OfferStatus `json:"status" example:"produto_pendente"`
	QueueID            string             `json:"fila_id"`
	SuggestedProductID *string            `json:"produto_id_sugerido"`
}

// DecisionResponse acknowledges a manual product decision.
type DecisionResponse struct {
	OK                 bool               `json:"ok" example:"true"`
	Status             domain.OfferStatus `json:"status" example:"produto_pendente"`
	ProductID          string             `json:"produto_id"`
	SuggestedProductID *string            `json:"produto_id_sugerido"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ProcessOffer godoc
// @ID          processOffer
// @Summary     Run the pipeline for one offer
// @Description Gates the offer's coupons, resolves its catalog product and either approves it for dispatch or parks it in the confirmation queue. Gate halts return 200 with ok=false and the status the offer was left in.
// @Tags        Pipeline
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ProcessOfferRequest  true  "Offer selector"
//
// @Success     200  {object}  handlers.ProductOKResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Offer not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing offer id or unsupported marketplace"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /pipeline/oferta/processar [post]
func (h *Handlers) ProcessOffer(c *gin.Context) {
	var req ProcessOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.OfferID) == "" {
		fail(c, http.StatusUnprocessableEntity, ErrCodeOfferIDRequired, "oferta_id is required")
		return
	}

	res, err := h.pipeSvc.ProcessOffer(c.Request.Context(), strings.TrimSpace(req.OfferID), req.Marketplace)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOfferNotFound):
			fail(c, http.StatusNotFound, ErrCodeOfferNotFound, "offer not found")
		case errors.Is(err, services.ErrMarketplaceNotSupported):
			fail(c, http.StatusUnprocessableEntity, ErrCodeMarketplaceNotSupported, "only mercadolivre is supported")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	writePipelineResult(c, res)
}

// ProcessDecision godoc
// @ID          processDecision
// @Summary     Apply a manual product decision
// @Description Links an offer to the marketplace product a curator chose. If no active link exists yet, the product is provisioned and the offer is queued for final confirmation.
// @Tags        Pipeline
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ProductDecisionRequest  true  "Decision payload"
//
// @Success     200  {object}  handlers.DecisionResponse
// @Failure     422  {object}  handlers.ErrorResponse  "marketplace_product_id missing"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /pipeline/produto/decisao [post]
func (h *Handlers) ProcessDecision(c *gin.Context) {
	var req ProductDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.pipeSvc.ProcessDecision(c.Request.Context(), services.DecisionInput{
		MessageID:            req.MessageID,
		OfferID:              req.OfferID,
		Marketplace:          req.Marketplace,
		MarketplaceProductID: strings.TrimSpace(req.MarketplaceProductID),
		MessageName:          req.MessageName,
		OfficialName:         req.OfficialName,
		CleanLink:            req.CleanLink,
		MediaURL:             req.MediaURL,
	})
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeMarketplaceIDRequired, "marketplace_product_id is required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if res.Status == domain.StatusProductOK {
		ok(c, http.StatusOK, ProductOKResponse{
			OK:                   true,
			Status:               res.Status,
			ProductMarketplaceID: res.ProductMarketplaceID,
			ProductID:            res.ProductID,
		})
		return
	}
	ok(c, http.StatusOK, DecisionResponse{
		OK:                 res.OK,
		Status:             res.Status,
		ProductID:          res.ProductID,
		SuggestedProductID: optional(res.SuggestedProductID),
	})
}

// writePipelineResult maps a pipeline outcome onto the response envelope the
// curation tooling expects: halts are 200 with ok=false.
func writePipelineResult(c *gin.Context, res *services.PipelineResult) {
	switch {
	case !res.OK:
		ok(c, http.StatusOK, PipelineHaltResponse{OK: false, Status: res.Status})
	case res.Status == domain.StatusProductOK:
		ok(c, http.StatusOK, ProductOKResponse{
			OK:                   true,
			Status:               res.Status,
			ProductMarketplaceID: res.ProductMarketplaceID,
			ProductID:            res.ProductID,
		})
	default:
		ok(c, http.StatusOK, ProductPendingResponse{
			OK:                 true,
			Status:             res.Status,
			QueueID:            res.QueueID,
			SuggestedProductID: optional(res.SuggestedProductID),
		})
	}
}
