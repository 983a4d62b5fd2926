package service

import (
	"errors"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCoupon(code string) CouponInput {
	return CouponInput{
		Code:          code,
		DiscountType:  model.DiscountFixed,
		DiscountValue: dec("5"),
		ValidFrom:     fixedNow.Add(-24 * time.Hour),
		ValidTo:       fixedNow.Add(24 * time.Hour),
		IsActive:      true,
	}
}

func couponReason(t *testing.T, err error) string {
	var couponErr *apperrors.CouponInvalidError
	require.True(t, errors.As(err, &couponErr), "expected coupon error, got %v", err)
	return couponErr.Reason
}

func TestCouponService_CreateCoupon_Validation(t *testing.T) {
	env := setupServiceTest(t)
	zero := dec("0")
	negative := -1

	tests := []struct {
		name   string
		mutate func(*CouponInput)
	}{
		{name: "blank code", mutate: func(c *CouponInput) { c.Code = " " }},
		{name: "unknown type", mutate: func(c *CouponInput) { c.DiscountType = "bogo" }},
		{name: "zero value", mutate: func(c *CouponInput) { c.DiscountValue = dec("0") }},
		{name: "percentage over 100", mutate: func(c *CouponInput) {
			c.DiscountType = model.DiscountPercentage
			c.DiscountValue = dec("100.01")
		}},
		{name: "negative minimum", mutate: func(c *CouponInput) { c.MinPurchaseAmount = dec("-1") }},
		{name: "zero cap", mutate: func(c *CouponInput) { c.MaxDiscount = &zero }},
		{name: "negative limit", mutate: func(c *CouponInput) { c.UsageLimit = &negative }},
		{name: "missing window", mutate: func(c *CouponInput) { c.ValidFrom = time.Time{} }},
		{name: "inverted window", mutate: func(c *CouponInput) { c.ValidTo = c.ValidFrom.Add(-time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := activeCoupon("VALID")
			tt.mutate(&input)
			_, err := env.coupons.CreateCoupon(ctx, input)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestCouponService_CreateCoupon_NormalizesCode(t *testing.T) {
	env := setupServiceTest(t)

	coupon, err := env.coupons.CreateCoupon(ctx, activeCoupon("  spring5 "))
	require.NoError(t, err)
	assert.Equal(t, "SPRING5", coupon.Code)

	_, err = env.coupons.CreateCoupon(ctx, activeCoupon("Spring5"))
	assert.True(t, apperrors.IsConflict(err))
}

func TestCouponService_ValidateCoupon(t *testing.T) {
	env := setupServiceTest(t)
	limit := 5

	inactive := activeCoupon("OFF")
	inactive.IsActive = false
	future := activeCoupon("SOON")
	future.ValidFrom = fixedNow.Add(time.Hour)
	future.ValidTo = fixedNow.Add(48 * time.Hour)
	past := activeCoupon("OLD")
	past.ValidFrom = fixedNow.Add(-48 * time.Hour)
	past.ValidTo = fixedNow.Add(-time.Hour)
	minimum := activeCoupon("MIN50")
	minimum.MinPurchaseAmount = dec("50")
	exhausted := activeCoupon("USEDUP")
	exhausted.UsageLimit = &limit

	for _, input := range []CouponInput{inactive, future, past, minimum, exhausted, activeCoupon("GOOD")} {
		_, err := env.coupons.CreateCoupon(ctx, input)
		require.NoError(t, err)
	}
	require.NoError(t, env.db.Model(&model.Coupon{}).Where("code = ?", "USEDUP").Update("usage_count", 5).Error)

	tests := []struct {
		code       string
		subtotal   string
		wantReason string
	}{
		{code: "missing", subtotal: "100", wantReason: apperrors.CouponReasonNotFound},
		{code: "OFF", subtotal: "100", wantReason: apperrors.CouponReasonInactive},
		{code: "SOON", subtotal: "100", wantReason: apperrors.CouponReasonNotStarted},
		{code: "OLD", subtotal: "100", wantReason: apperrors.CouponReasonExpired},
		{code: "USEDUP", subtotal: "100", wantReason: apperrors.CouponReasonExhausted},
		{code: "MIN50", subtotal: "49.99", wantReason: apperrors.CouponReasonBelowMinimum},
		{code: "MIN50", subtotal: "50"},
		{code: "good", subtotal: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.subtotal, func(t *testing.T) {
			coupon, err := env.coupons.ValidateCoupon(ctx, tt.code, dec(tt.subtotal), fixedNow)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, couponReason(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, NormalizeCouponCode(tt.code), coupon.Code)
		})
	}
}

func TestCouponService_ApplyCoupon_DoesNotConsumeUse(t *testing.T) {
	env := setupServiceTest(t)
	maxDiscount := dec("5.00")
	input := activeCoupon("TENOFF")
	input.DiscountType = model.DiscountPercentage
	input.DiscountValue = dec("10")
	input.MaxDiscount = &maxDiscount
	_, err := env.coupons.CreateCoupon(ctx, input)
	require.NoError(t, err)

	discount, err := env.coupons.ApplyCoupon(ctx, "TENOFF", dec("100.00"), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "5.00", discount.StringFixed(2))

	discount, err = env.coupons.ApplyCoupon(ctx, "TENOFF", dec("30.00"), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "3.00", discount.StringFixed(2))

	coupon, err := env.coupons.couponRepo.FindByCode(ctx, "TENOFF")
	require.NoError(t, err)
	assert.Zero(t, coupon.UsageCount)
}

func TestCouponService_DeactivateExpiredCoupons(t *testing.T) {
	env := setupServiceTest(t)
	past := activeCoupon("EXPIRED")
	past.ValidFrom = fixedNow.Add(-48 * time.Hour)
	past.ValidTo = fixedNow.Add(-time.Hour)
	_, err := env.coupons.CreateCoupon(ctx, past)
	require.NoError(t, err)
	_, err = env.coupons.CreateCoupon(ctx, activeCoupon("CURRENT"))
	require.NoError(t, err)

	affected, err := env.coupons.DeactivateExpiredCoupons(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = env.coupons.DeactivateExpiredCoupons(ctx, fixedNow)
	require.NoError(t, err)
	assert.Zero(t, affected)

	_, err = env.coupons.ValidateCoupon(ctx, "CURRENT", dec("10"), fixedNow)
	assert.NoError(t, err)
}
