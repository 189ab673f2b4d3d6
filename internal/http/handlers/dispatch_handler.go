package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/http/middleware"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// DispatchRequest selects the offer to send.
type DispatchRequest struct {
	OfferID string `json:"oferta_id" example:"a3b9be03-4999-4289-9f03-999b042d65d6"`
}

// DispatchBlockedResponse reports a dispatch precondition failure. These are
// operational outcomes, not request errors, so they come back with 200.
type DispatchBlockedResponse struct {
	OK    bool   `json:"ok" example:"false"`
	Error string `json:"error" example:"produto_sem_foto"`
}

// DispatchResponse reports a completed fan-out with per-group outcomes.
type DispatchResponse struct {
	OK     bool                 `json:"ok" example:"true"`
	Status domain.OfferStatus   `json:"status" example:"enviada"`
	Groups []domain.GroupResult `json:"grupos"`
}

// Dispatch godoc
// @ID          dispatchOffer
// @Summary     Send an approved offer to active groups
// @Description Renders a random matching template and sends the offer's photo with the rendered caption to every active group of the originating instance. The offer is marked enviada even when individual groups fail.
// @Tags        Dispatch
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.DispatchRequest  true  "Offer selector"
//
// @Success     200  {object}  handlers.DispatchResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Offer, template or source message not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing offer id"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /dispatcher/enviar [post]
func (h *Handlers) Dispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.OfferID) == "" {
		fail(c, http.StatusUnprocessableEntity, ErrCodeOfferIDRequired, "oferta_id is required")
		return
	}

	res, err := h.dispatchSvc.Send(c.Request.Context(), strings.TrimSpace(req.OfferID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOfferNotFound):
			fail(c, http.StatusNotFound, ErrCodeOfferNotFound, "offer not found")
		case errors.Is(err, services.ErrTemplateNotFound):
			fail(c, http.StatusNotFound, ErrCodeTemplateNotFound, "no active template matches")
		case errors.Is(err, services.ErrMessageNotFound):
			fail(c, http.StatusNotFound, ErrCodeMessageNotFound, "source message not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	if !res.OK {
		middleware.DispatchOutcomes.WithLabelValues(res.Reason).Inc()
		ok(c, http.StatusOK, DispatchBlockedResponse{OK: false, Error: res.Reason})
		return
	}
	middleware.DispatchOutcomes.WithLabelValues(string(res.Status)).Inc()
	ok(c, http.StatusOK, DispatchResponse{OK: true, Status: res.Status, Groups: res.Groups})
}
