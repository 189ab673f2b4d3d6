// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for coupon codes.
//
// A coupon code lives in exactly one of three states (aprovado, pendente,
// bloqueado); the unique index on code makes simultaneous membership
// impossible. Moving a code between states is an upsert that overwrites the
// status; first sighting of an unknown code is an upsert that does NOT
// overwrite, so a curator's earlier verdict always wins.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// NormalizeCouponCode trims and uppercases a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetCouponsByCodes returns the stored state of every listed code that is
// known. Unknown codes are simply absent from the result.
func GetCouponsByCodes(ctx context.Context, db *gorm.DB, codes []string) ([]domain.Coupon, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var out []domain.Coupon
	err := db.WithContext(ctx).
		Where("code IN ?", codes).
		Find(&out).Error
	return out, err
}

// RegisterCouponsPending inserts the given codes as pending, silently
// skipping codes that already exist in any state.
func RegisterCouponsPending(ctx context.Context, db *gorm.DB, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Coupon, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, domain.Coupon{
			ID:        uuid.NewString(),
			Code:      NormalizeCouponCode(c),
			Status:    domain.CouponPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// SetCouponStatus moves a code into the given state, creating it if unknown.
func SetCouponStatus(ctx context.Context, db *gorm.DB, code, status string) error {
	now := time.Now().UTC()
	row := domain.Coupon{
		ID:        uuid.NewString(),
		Code:      NormalizeCouponCode(code),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.Assignments(map[string]any{"status": status, "updated_at": now}),
		}).
		Create(&row).Error
}

// DeleteCoupon forgets a code entirely, whatever its state. Deleting an
// unknown code is a no-op.
func DeleteCoupon(ctx context.Context, db *gorm.DB, code string) error {
	return db.WithContext(ctx).
		Where("code = ?", NormalizeCouponCode(code)).
		Delete(&domain.Coupon{}).Error
}

// ListCouponsByStatus returns every code in the given state, newest first.
func ListCouponsByStatus(ctx context.Context, db *gorm.DB, status string) ([]domain.Coupon, error) {
	var out []domain.Coupon
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
