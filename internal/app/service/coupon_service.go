package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CouponInput struct {
	Code              string
	Description       string
	DiscountType      model.DiscountType
	DiscountValue     decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	MaxDiscount       *decimal.Decimal
	UsageLimit        *int
	ValidFrom         time.Time
	ValidTo           time.Time
	IsActive          bool
}

type CouponService interface {
	CreateCoupon(ctx context.Context, input CouponInput) (*model.Coupon, error)
	ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*model.Coupon, error)
	ApplyCoupon(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error)
	DeactivateExpiredCoupons(ctx context.Context, now time.Time) (int64, error)
}

type couponService struct {
	couponRepo repository.CouponRepository
}

func NewCouponService(couponRepo repository.CouponRepository) CouponService {
	return &couponService{couponRepo: couponRepo}
}

// NormalizeCouponCode is the canonical form codes are stored and looked up in.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// checkCoupon returns a CouponInvalidError when coupon cannot be applied to subtotal at now.
func checkCoupon(coupon *model.Coupon, subtotal decimal.Decimal, now time.Time) error {
	if reason := coupon.Usable(now); reason != "" {
		return &apperrors.CouponInvalidError{Code: coupon.Code, Reason: reason}
	}
	if !coupon.MeetsMinimum(subtotal) {
		return &apperrors.CouponInvalidError{Code: coupon.Code, Reason: apperrors.CouponReasonBelowMinimum}
	}
	return nil
}

func couponLookupError(err error, code string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &apperrors.CouponInvalidError{Code: code, Reason: apperrors.CouponReasonNotFound}
	}
	return err
}

func validateCouponInput(input CouponInput) error {
	code := NormalizeCouponCode(input.Code)
	if err := requireText("code", code, 50); err != nil {
		return err
	}
	if !input.DiscountType.Valid() {
		return apperrors.NewValidation("discount_type", "must be percentage or fixed")
	}
	if !input.DiscountValue.IsPositive() {
		return apperrors.NewValidation("discount_value", "must be greater than 0")
	}
	if input.DiscountType == model.DiscountPercentage && input.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return apperrors.NewValidation("discount_value", "percentage must not exceed 100")
	}
	if input.MinPurchaseAmount.IsNegative() {
		return apperrors.NewValidation("min_purchase_amount", "must not be negative")
	}
	if input.MaxDiscount != nil && !input.MaxDiscount.IsPositive() {
		return apperrors.NewValidation("max_discount", "must be greater than 0")
	}
	if input.UsageLimit != nil && *input.UsageLimit < 0 {
		return apperrors.NewValidation("usage_limit", "must not be negative")
	}
	if input.ValidFrom.IsZero() || input.ValidTo.IsZero() {
		return apperrors.NewValidation("valid_from", "validity window is required")
	}
	if input.ValidTo.Before(input.ValidFrom) {
		return apperrors.NewValidation("valid_to", "must not be before valid_from")
	}
	return nil
}

func (s *couponService) CreateCoupon(ctx context.Context, input CouponInput) (*model.Coupon, error) {
	if err := validateCouponInput(input); err != nil {
		return nil, err
	}

	coupon := &model.Coupon{
		Code:              NormalizeCouponCode(input.Code),
		Description:       input.Description,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue.Round(2),
		MinPurchaseAmount: input.MinPurchaseAmount.Round(2),
		UsageLimit:        input.UsageLimit,
		ValidFrom:         input.ValidFrom,
		ValidTo:           input.ValidTo,
		IsActive:          input.IsActive,
	}
	if input.MaxDiscount != nil {
		coupon.MaxDiscount = decimal.NewNullDecimal(input.MaxDiscount.Round(2))
	}

	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, apperrors.ClassifyDBError(err, "coupon", coupon.Code)
	}

	logger.Info("Coupon created", map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
		"type":      coupon.DiscountType,
	})
	return coupon, nil
}

// ValidateCoupon checks that code exists and is applicable to subtotal at now.
// Every rejection is a CouponInvalidError carrying the reason.
func (s *couponService) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*model.Coupon, error) {
	code = NormalizeCouponCode(code)
	coupon, err := s.couponRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, couponLookupError(err, code)
	}
	if err := checkCoupon(coupon, subtotal, now); err != nil {
		logger.Warn("Coupon rejected", map[string]interface{}{
			"code":  code,
			"error": err.Error(),
		})
		return nil, err
	}
	return coupon, nil
}

// ApplyCoupon returns the discount code would give on subtotal without
// consuming a use.
func (s *couponService) ApplyCoupon(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	coupon, err := s.ValidateCoupon(ctx, code, subtotal, now)
	if err != nil {
		return decimal.Zero, err
	}
	return coupon.Discount(subtotal), nil
}

func (s *couponService) DeactivateExpiredCoupons(ctx context.Context, now time.Time) (int64, error) {
	affected, err := s.couponRepo.DeactivateExpired(ctx, now)
	if err != nil {
		logger.Error("Failed to deactivate expired coupons", err)
		return 0, err
	}
	if affected > 0 {
		logger.Info("Expired coupons deactivated", map[string]interface{}{
			"count": affected,
		})
	}
	return affected, nil
}
