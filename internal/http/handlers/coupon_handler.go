package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// CouponRequest names the coupon code to act on.
type CouponRequest struct {
	Code string `json:"codigo" example:"SAVE10"`
}

// CouponListResponse wraps the coupons matching a status filter.
type CouponListResponse struct {
	OK      bool            `json:"ok" example:"true"`
	Coupons []domain.Coupon `json:"cupons"`
}

// AckResponse is the minimal success envelope for imperative endpoints.
type AckResponse struct {
	OK bool `json:"ok" example:"true"`
}

// ListCoupons godoc
// @ID          listCoupons
// @Summary     List coupons by status
// @Tags        Coupons
// @Produce     json
//
// @Param       status  query  string  false  "aprovado (default), pendente or bloqueado"
//
// @Success     200  {object}  handlers.CouponListResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cupons [get]
func (h *Handlers) ListCoupons(c *gin.Context) {
	coupons, err := h.couponSvc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCouponStatus) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeCouponStatusInvalid, "status must be aprovado, pendente or bloqueado")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, CouponListResponse{OK: true, Coupons: coupons})
}

// ApproveCoupon godoc
// @ID          approveCoupon
// @Summary     Approve a coupon code
// @Tags        Coupons
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CouponRequest  true  "Coupon code"
// @Success     200  {object}  handlers.AckResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Missing code"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cupons/aprovar [post]
func (h *Handlers) ApproveCoupon(c *gin.Context) {
	h.setCouponStatus(c, domain.CouponApproved)
}

// BlockCoupon godoc
// @ID          blockCoupon
// @Summary     Block a coupon code
// @Tags        Coupons
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CouponRequest  true  "Coupon code"
// @Success     200  {object}  handlers.AckResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Missing code"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cupons/bloquear [post]
func (h *Handlers) BlockCoupon(c *gin.Context) {
	h.setCouponStatus(c, domain.CouponBlocked)
}

// PendCoupon godoc
// @ID          pendCoupon
// @Summary     Mark a coupon code pending triage
// @Tags        Coupons
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CouponRequest  true  "Coupon code"
// @Success     200  {object}  handlers.AckResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Missing code"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cupons/pendente [post]
func (h *Handlers) PendCoupon(c *gin.Context) {
	h.setCouponStatus(c, domain.CouponPending)
}

// RemoveCoupon godoc
// @ID          removeCoupon
// @Summary     Forget a coupon code entirely
// @Tags        Coupons
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CouponRequest  true  "Coupon code"
// @Success     200  {object}  handlers.AckResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Missing code"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cupons/remover [post]
func (h *Handlers) RemoveCoupon(c *gin.Context) {
	req, done := bindCoupon(c)
	if done {
		return
	}
	if err := h.couponSvc.Remove(c.Request.Context(), req.Code); err != nil {
		h.couponError(c, err)
		return
	}
	ok(c, http.StatusOK, AckResponse{OK: true})
}

func (h *Handlers) setCouponStatus(c *gin.Context, status string) {
	req, done := bindCoupon(c)
	if done {
		return
	}
	if err := h.couponSvc.SetStatus(c.Request.Context(), req.Code, status); err != nil {
		h.couponError(c, err)
		return
	}
	ok(c, http.StatusOK, AckResponse{OK: true})
}

func bindCoupon(c *gin.Context) (CouponRequest, bool) {
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return req, true
	}
	return req, false
}

func (h *Handlers) couponError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusUnprocessableEntity, ErrCodeCouponCodeRequired, "codigo is required")
	case errors.Is(err, services.ErrInvalidCouponStatus):
		fail(c, http.StatusUnprocessableEntity, ErrCodeCouponStatusInvalid, "status must be aprovado, pendente or bloqueado")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
