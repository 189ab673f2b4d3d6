package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// CreateTemplateRequest registers a dispatch template. Marketplace defaults
// to mercadolivre and tipo to padrao.
type CreateTemplateRequest struct {
	Name        string `json:"nome" example:"oferta padrao"`
	Marketplace string `json:"marketplace" example:"mercadolivre"`
	OfferType   string `json:"tipo" example:"padrao"`
	Body        string `json:"body" example:"🔥 {{nome_msg}}\n{{oferta}}\n{{link_afiliado}}"`
	Active      *bool  `json:"ativo"`
}

// CreateTemplateResponse reports the id of the template just created.
type CreateTemplateResponse struct {
	OK         bool   `json:"ok" example:"true"`
	TemplateID string `json:"template_id"`
}

// TemplateListResponse wraps the templates matching a filter.
type TemplateListResponse struct {
	OK        bool              `json:"ok" example:"true"`
	Templates []domain.Template `json:"templates"`
}

// UpdateTemplateRequest adjusts a stored template. Empty nome or body keep
// the stored value; omitting ativo keeps the flag.
type UpdateTemplateRequest struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"nome"`
	Body       string `json:"body"`
	Active     *bool  `json:"ativo"`
}

// RenderTemplateRequest picks a random matching template and fills its
// placeholders with the given values.
type RenderTemplateRequest struct {
	Marketplace   string `json:"marketplace" example:"mercadolivre"`
	OfferType     string `json:"tipo" example:"padrao"`
	MessageName   string `json:"nome_msg"`
	OfferBody     string `json:"oferta"`
	AffiliateLink string `json:"link_afiliado"`
}

// RenderTemplateResponse carries the rendered text and the template it came
// from.
type RenderTemplateResponse struct {
	OK           bool   `json:"ok" example:"true"`
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_nome"`
	Text         string `json:"texto"`
}

// ListTemplates godoc
// @ID          listTemplates
// @Summary     List dispatch templates
// @Tags        Templates
// @Produce     json
//
// @Param       marketplace  query  string  false  "Marketplace filter"
// @Param       tipo         query  string  false  "Offer type filter"
// @Param       ativo        query  bool    false  "Active filter"
//
// @Success     200  {object}  handlers.TemplateListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /templates [get]
func (h *Handlers) ListTemplates(c *gin.Context) {
	templates, err := h.templateSvc.List(c.Request.Context(), services.TemplateListFilter{
		Marketplace: c.Query("marketplace"),
		OfferType:   c.Query("tipo"),
		Active:      boolQuery(c, "ativo"),
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, TemplateListResponse{OK: true, Templates: templates})
}

// CreateTemplate godoc
// @ID          createTemplate
// @Summary     Register a dispatch template
// @Tags        Templates
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateTemplateRequest  true  "Template payload"
//
// @Success     200  {object}  handlers.CreateTemplateResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Missing name or body"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /templates [post]
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	t := domain.Template{
		Name:        strings.TrimSpace(req.Name),
		Marketplace: req.Marketplace,
		OfferType:   req.OfferType,
		Body:        req.Body,
		Active:      true,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}
	if err := h.templateSvc.Create(c.Request.Context(), &t); err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeNameAndBodyRequired, "nome and body are required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, CreateTemplateResponse{OK: true, TemplateID: t.ID})
}

// UpdateTemplate godoc
// @ID          updateTemplate
// @Summary     Update a dispatch template
// @Description Adjusts a template's name, body or active flag. Fields left empty keep their stored value.
// @Tags        Templates
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.UpdateTemplateRequest  true  "Template update payload"
//
// @Success     200  {object}  handlers.AckResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Template not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing template id"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /templates/atualizar [post]
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.templateSvc.Update(c.Request.Context(), req.TemplateID, req.Name, req.Body, req.Active); err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			fail(c, http.StatusUnprocessableEntity, ErrCodeTemplateIDRequired, "template_id is required")
		case errors.Is(err, services.ErrTemplateNotFound):
			fail(c, http.StatusNotFound, ErrCodeTemplateNotFound, "template not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, AckResponse{OK: true})
}

// RenderTemplate godoc
// @ID          renderTemplate
// @Summary     Render a random matching template
// @Description Picks one active template at random among those matching the marketplace and offer type, substitutes the placeholders and returns the final text.
// @Tags        Templates
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RenderTemplateRequest  true  "Render payload"
//
// @Success     200  {object}  handlers.RenderTemplateResponse
// @Failure     404  {object}  handlers.ErrorResponse  "No matching template"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /templates/render [post]
func (h *Handlers) RenderTemplate(c *gin.Context) {
	var req RenderTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	t, text, err := h.templateSvc.RenderRandom(c.Request.Context(), req.Marketplace, req.OfferType, services.TemplateVars{
		MessageName:   req.MessageName,
		OfferBody:     req.OfferBody,
		AffiliateLink: req.AffiliateLink,
	})
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			fail(c, http.StatusNotFound, ErrCodeTemplateNotFound, "no active template matches")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, RenderTemplateResponse{
		OK:           true,
		TemplateID:   t.ID,
		TemplateName: t.Name,
		Text:         text,
	})
}
