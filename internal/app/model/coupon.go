package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Coupon rejection reasons reported by Usable.
const (
	CouponInactive   = "inactive"
	CouponNotStarted = "not_started"
	CouponExpired    = "expired"
	CouponExhausted  = "exhausted"
)

type Coupon struct {
	Base
	Code              string              `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Description       string              `gorm:"size:200" json:"description"`
	DiscountType      DiscountType        `gorm:"type:varchar(10);not null" json:"discount_type"`
	DiscountValue     decimal.Decimal     `gorm:"type:numeric(10,2);not null" json:"discount_value"`
	MinPurchaseAmount decimal.Decimal     `gorm:"type:numeric(10,2);not null" json:"min_purchase_amount"`
	MaxDiscount       decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"max_discount"` // caps percentage coupons
	UsageLimit        *int                `json:"usage_limit,omitempty"`                 // nil means unlimited
	UsageCount        int                 `gorm:"not null;default:0" json:"usage_count"`
	ValidFrom         time.Time           `gorm:"not null" json:"valid_from"`
	ValidTo           time.Time           `gorm:"not null;index" json:"valid_to"`
	IsActive          bool                `gorm:"not null" json:"is_active"`
}

func (Coupon) TableName() string {
	return "coupons"
}

// Usable returns "" when the coupon can be redeemed at now, otherwise the reason it cannot.
func (c Coupon) Usable(now time.Time) string {
	switch {
	case !c.IsActive:
		return CouponInactive
	case now.Before(c.ValidFrom):
		return CouponNotStarted
	case now.After(c.ValidTo):
		return CouponExpired
	case c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit:
		return CouponExhausted
	}
	return ""
}

// IsValid reports whether the coupon is active, inside its window and not exhausted.
func (c Coupon) IsValid(now time.Time) bool {
	return c.Usable(now) == ""
}

// MeetsMinimum reports whether subtotal reaches the minimum purchase amount.
func (c Coupon) MeetsMinimum(subtotal decimal.Decimal) bool {
	return !subtotal.LessThan(c.MinPurchaseAmount)
}

// Discount computes the amount taken off subtotal. The result is rounded to
// cents and never exceeds subtotal.
func (c Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred).Round(2)
		if c.MaxDiscount.Valid && discount.GreaterThan(c.MaxDiscount.Decimal) {
			discount = c.MaxDiscount.Decimal
		}
	case DiscountFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(discount, subtotal)
}
