package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// CreateProductRequest registers a curated catalog product.
type CreateProductRequest struct {
	OfficialName string `json:"nome_oficial" example:"Notebook Gamer X 16GB"`
	MessageName  string `json:"nome_msg"`
}

// CreateProductResponse reports the id of the product just created.
type CreateProductResponse struct {
	OK        bool   `json:"ok" example:"true"`
	ProductID string `json:"produto_id"`
}

// ProductListResponse wraps the catalog products matching a filter.
type ProductListResponse struct {
	OK       bool             `json:"ok" example:"true"`
	Products []domain.Product `json:"produtos"`
}

// LinkListResponse wraps the marketplace links matching a filter.
type LinkListResponse struct {
	OK    bool                     `json:"ok" example:"true"`
	Links []domain.MarketplaceLink `json:"links"`
}

// ActivateLinkRequest flips a marketplace link's dispatch eligibility.
// Ativo defaults to true.
type ActivateLinkRequest struct {
	LinkID string `json:"link_id"`
	Active *bool  `json:"ativo"`
}

// MarketplaceListResponse wraps the distinct marketplaces seen in links.
type MarketplaceListResponse struct {
	OK           bool     `json:"ok" example:"true"`
	Marketplaces []string `json:"marketplaces"`
}

// boolQuery parses an optional boolean query param; nil means absent or
// unparseable.
func boolQuery(c *gin.Context, name string) *bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// CreateProduct godoc
// @ID          createProduct
// @Summary     Register a curated product
// @Description Creates an active catalog product under its official name and backfills it as the suggestion on matching pending queue items.
// @Tags        Products
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateProductRequest  true  "Product payload"
//
// @Success     200  {object}  handlers.CreateProductResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Missing official name"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /produtos/criar [post]
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	id, err := h.productSvc.Create(c.Request.Context(), req.OfficialName, req.MessageName)
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeOfficialNameRequired, "nome_oficial is required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, CreateProductResponse{OK: true, ProductID: id})
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List catalog products
// @Tags        Products
// @Produce     json
//
// @Param       ativo  query  bool  false  "Filter by curation state"
//
// @Success     200  {object}  handlers.ProductListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /produtos [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	products, err := h.productSvc.List(c.Request.Context(), boolQuery(c, "ativo"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ProductListResponse{OK: true, Products: products})
}

// ListLinks godoc
// @ID          listLinks
// @Summary     List marketplace links
// @Tags        Products
// @Produce     json
//
// @Param       marketplace  query  string  false  "Marketplace filter"
//
// @Success     200  {object}  handlers.LinkListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /produtos/links [get]
func (h *Handlers) ListLinks(c *gin.Context) {
	links, err := h.productSvc.ListLinks(c.Request.Context(), c.Query("marketplace"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, LinkListResponse{OK: true, Links: links})
}

// ActivateLink godoc
// @ID          activateLink
// @Summary     Activate or deactivate a marketplace link
// @Description Toggles whether the dispatcher may use the affiliate link. Offers keep their own state; only link eligibility changes.
// @Tags        Products
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ActivateLinkRequest  true  "Link selector"
//
// @Success     200  {object}  handlers.AckResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Link not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing link id"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /produtos/links/ativar [post]
func (h *Handlers) ActivateLink(c *gin.Context) {
	var req ActivateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if err := h.productSvc.SetLinkActive(c.Request.Context(), req.LinkID, active); err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			fail(c, http.StatusUnprocessableEntity, ErrCodeLinkIDRequired, "link_id is required")
		case errors.Is(err, services.ErrLinkNotFound):
			fail(c, http.StatusNotFound, ErrCodeLinkNotFound, "marketplace link not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, AckResponse{OK: true})
}

// ListMarketplaces godoc
// @ID          listMarketplaces
// @Summary     List distinct marketplaces
// @Tags        Products
// @Produce     json
//
// @Success     200  {object}  handlers.MarketplaceListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /produtos/marketplaces [get]
func (h *Handlers) ListMarketplaces(c *gin.Context) {
	marketplaces, err := h.productSvc.Marketplaces(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, MarketplaceListResponse{OK: true, Marketplaces: marketplaces})
}
