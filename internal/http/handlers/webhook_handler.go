package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/http/middleware"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// maxWebhookBody bounds gateway deliveries; media arrives as URLs, never
// inline, so anything past this is garbage.
const maxWebhookBody = 1 << 20

// WebhookResponse acknowledges a gateway delivery. Duplicate is true when the
// delivery hashed to an already-ingested message.
type WebhookResponse struct {
	OK            bool   `json:"ok" example:"true"`
	CorrelationID string `json:"correlation_id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Duplicate     bool   `json:"duplicate" example:"false"`
}

// Webhook godoc
// @ID          ingestWebhook
// @Summary     Ingest a gateway delivery
// @Description Accepts a raw messaging-gateway webhook payload, deduplicates it by content hash and parses it into offers. Always returns 200 for duplicates so the gateway stops retrying.
// @Tags        Ingestion
// @Accept      json
// @Produce     json
//
// @Param       body  body  object  true  "Raw gateway envelope (any supported shape)"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed JSON"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing required fields"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	if !json.Valid(raw) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.ingestSvc.Ingest(c.Request.Context(), json.RawMessage(raw))
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			failMissing(c, ErrCodeMissingFields, ve.Missing)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if res.Duplicate {
		middleware.IngestDuplicates.Inc()
	}
	ok(c, http.StatusOK, WebhookResponse{
		OK:            true,
		CorrelationID: res.CorrelationID,
		Duplicate:     res.Duplicate,
	})
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        Ops
// @Produce     json
// @Success     200  {object}  map[string]bool
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"ok": true})
}
