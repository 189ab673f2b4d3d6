// Package services – CouponService
//
// This file implements coupon curation. Every code lives in exactly one of
// three states (aprovado, pendente, bloqueado); moving a code to a state is
// an upsert, so approving a blocked coupon both removes the block and
// records the approval in one step.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// CouponRepo defines the repository contract required by CouponService.
type CouponRepo interface {
	SetCouponStatus(ctx context.Context, db *gorm.DB, code, status string) error
	DeleteCoupon(ctx context.Context, db *gorm.DB, code string) error
	ListCouponsByStatus(ctx context.Context, db *gorm.DB, status string) ([]domain.Coupon, error)
}

// CouponService curates the coupon allow/deny lists.
type CouponService struct {
	DB   *gorm.DB
	Repo CouponRepo
}

// NewCouponService constructs a CouponService.
func NewCouponService(db *gorm.DB, r CouponRepo) *CouponService {
	return &CouponService{DB: db, Repo: r}
}

func validCouponStatus(status string) bool {
	switch status {
	case domain.CouponApproved, domain.CouponPending, domain.CouponBlocked:
		return true
	}
	return false
}

// List returns the coupons in one status, newest first.
func (s *CouponService) List(ctx context.Context, status string) ([]domain.Coupon, error) {
	if status == "" {
		status = domain.CouponApproved
	}
	if !validCouponStatus(status) {
		return nil, ErrInvalidCouponStatus
	}
	return s.Repo.ListCouponsByStatus(ctx, s.DB, status)
}

// SetStatus moves a code into the given state.
func (s *CouponService) SetStatus(ctx context.Context, code, status string) error {
	if strings.TrimSpace(code) == "" {
		return &ValidationError{Missing: []string{"codigo"}}
	}
	if !validCouponStatus(status) {
		return ErrInvalidCouponStatus
	}
	return s.Repo.SetCouponStatus(ctx, s.DB, code, status)
}

// Remove forgets a code entirely; the coupon gate will treat it as unknown
// again.
func (s *CouponService) Remove(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return &ValidationError{Missing: []string{"codigo"}}
	}
	return s.Repo.DeleteCoupon(ctx, s.DB, code)
}
