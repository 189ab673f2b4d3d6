package handlers

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/services"
	"github.com/promopipe/go-offers-backend/internal/utils"
)

// QueueListResponse wraps a window of the confirmation queue.
type QueueListResponse struct {
	OK     bool               `json:"ok" example:"true"`
	Items  []domain.QueueItem `json:"items"`
	Limit  int                `json:"limit" example:"50"`
	Offset int                `json:"offset" example:"0"`
}

// ConfirmQueueRequest finalizes a queued item with the curator's marketplace
// placement data.
type ConfirmQueueRequest struct {
	QueueID              string `json:"fila_id"`
	ProductID            string `json:"produto_id"`
	Marketplace          string `json:"marketplace" example:"mercadolivre"`
	MarketplaceProductID string `json:"marketplace_product_id" example:"MLB123456"`
	CleanLink            string `json:"link_limpo"`
	AffiliateLink        string `json:"link_afiliado"`
}

// ConfirmQueueResponse reports the marketplace link created by a confirmation.
type ConfirmQueueResponse struct {
	OK                   bool   `json:"ok" example:"true"`
	MarketplaceProductID string `json:"produto_marketplace_id"`
}

// ListQueue godoc
// @ID          listQueue
// @Summary     List confirmation-queue items
// @Tags        Queue
// @Produce     json
//
// @Param       status  query  string  false  "Queue status"  default(pendente)
// @Param       limit   query  int     false  "Page size"     maximum(200) default(50)
// @Param       offset  query  int     false  "Page offset"   default(0)
//
// @Success     200  {object}  handlers.QueueListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /fila/produto [get]
func (h *Handlers) ListQueue(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 50)
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := utils.AtoiDefault(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	items, err := h.queueSvc.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, QueueListResponse{
		OK:     true,
		Items:  items,
		Limit:  limit,
		Offset: offset,
	})
}

// ConfirmQueue godoc
// @ID          confirmQueue
// @Summary     Confirm a queued product registration
// @Description Records the curator-provided marketplace placement as an active link and concludes the queue item, unblocking the offer for dispatch.
// @Tags        Queue
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ConfirmQueueRequest  true  "Confirmation payload"
//
// @Success     200  {object}  handlers.ConfirmQueueResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Queue item not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing identifiers or marketplace data"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /fila/produto/confirmar [post]
func (h *Handlers) ConfirmQueue(c *gin.Context) {
	var req ConfirmQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	linkID, err := h.queueSvc.Confirm(c.Request.Context(), services.ConfirmInput{
		QueueID:              req.QueueID,
		ProductID:            req.ProductID,
		Marketplace:          req.Marketplace,
		MarketplaceProductID: req.MarketplaceProductID,
		CleanLink:            req.CleanLink,
		AffiliateLink:        req.AffiliateLink,
	})
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			code := ErrCodeMarketplaceDataRequired
			if slices.Contains(ve.Missing, "fila_id") || slices.Contains(ve.Missing, "produto_id") {
				code = ErrCodeQueueConfirmRequired
			}
			failMissing(c, code, ve.Missing)
		case errors.Is(err, services.ErrQueueItemNotFound):
			fail(c, http.StatusNotFound, ErrCodeQueueItemNotFound, "queue item not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ConfirmQueueResponse{OK: true, MarketplaceProductID: linkID})
}
