package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/services"
)

// ScrapeLinkRequest names the product page to scrape.
type ScrapeLinkRequest struct {
	Link string `json:"link" example:"https://www.mercadolivre.com.br/p/MLB123456"`
}

// ScrapeOfferRequest selects the offer whose stored link should be scraped.
type ScrapeOfferRequest struct {
	OfferID string `json:"oferta_id"`
}

// ScrapeLink godoc
// @ID          scrapeLink
// @Summary     Scrape a marketplace product page
// @Description Fetches the page through the read proxy, validates it as a product page and extracts the identification block. The scraper verdict is returned verbatim, including rejections.
// @Tags        Scraper
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ScrapeLinkRequest  true  "Page link"
//
// @Success     200  {object}  scraper.Result
// @Failure     422  {object}  handlers.ErrorResponse  "Missing link"
// @Failure     500  {object}  handlers.ErrorResponse  "Fetch or parse failure"
// @Router      /scrape/mercadolivre [post]
func (h *Handlers) ScrapeLink(c *gin.Context) {
	var req ScrapeLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.scrapeSvc.ScrapeLink(c.Request.Context(), strings.TrimSpace(req.Link))
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeLinkRequired, "link is required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, res)
}

// ScrapeOffer godoc
// @ID          scrapeOffer
// @Summary     Enrich an offer from its product page
// @Description Scrapes the offer's stored link and, when the page is approved, persists the official title, base URL and marketplace product id onto the offer.
// @Tags        Scraper
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ScrapeOfferRequest  true  "Offer selector"
//
// @Success     200  {object}  scraper.Result
// @Failure     404  {object}  handlers.ErrorResponse  "Offer not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing offer id"
// @Failure     500  {object}  handlers.ErrorResponse  "Fetch or parse failure"
// @Router      /scrape/mercadolivre/oferta [post]
func (h *Handlers) ScrapeOffer(c *gin.Context) {
	var req ScrapeOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.OfferID) == "" {
		fail(c, http.StatusUnprocessableEntity, ErrCodeOfferIDRequired, "oferta_id is required")
		return
	}

	res, err := h.scrapeSvc.ScrapeOffer(c.Request.Context(), strings.TrimSpace(req.OfferID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOfferNotFound):
			fail(c, http.StatusNotFound, ErrCodeOfferNotFound, "offer not found")
		case errors.Is(err, services.ErrMissingLink):
			// The offer exists but carries no scrapeable link; an
			// operational outcome, not a request error.
			ok(c, http.StatusOK, ErrorResponse{Code: ErrCodeNoLink})
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}
