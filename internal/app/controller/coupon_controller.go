package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

type CouponController struct {
	couponService service.CouponService
	now           func() time.Time
}

func NewCouponController(couponService service.CouponService) *CouponController {
	return &CouponController{
		couponService: couponService,
		now:           time.Now,
	}
}

type CreateCouponRequest struct {
	Code              string             `json:"code" binding:"required,max=50"`
	Description       string             `json:"description"`
	DiscountType      model.DiscountType `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue     decimal.Decimal    `json:"discount_value"`
	MinPurchaseAmount decimal.Decimal    `json:"min_purchase_amount"`
	MaxDiscount       *decimal.Decimal   `json:"max_discount"`
	UsageLimit        *int               `json:"usage_limit" binding:"omitempty,min=0"`
	ValidFrom         time.Time          `json:"valid_from" binding:"required"`
	ValidTo           time.Time          `json:"valid_to" binding:"required"`
	IsActive          *bool              `json:"is_active"`
}

type ApplyCouponRequest struct {
	Code     string          `json:"code" binding:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CreateCoupon creates a coupon (Staff only)
// POST /api/v1/admin/coupons
func (ctrl *CouponController) CreateCoupon(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	coupon, err := ctrl.couponService.CreateCoupon(c.Request.Context(), service.CouponInput{
		Code:              req.Code,
		Description:       req.Description,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxDiscount:       req.MaxDiscount,
		UsageLimit:        req.UsageLimit,
		ValidFrom:         req.ValidFrom,
		ValidTo:           req.ValidTo,
		IsActive:          isActive,
	})
	if err != nil {
		respondError(c, "Failed to create coupon", err, map[string]interface{}{"code": req.Code})
		return
	}

	log.Info("Coupon created", map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Coupon created successfully",
		"coupon":  coupon,
	})
}

// ApplyCoupon previews the discount a coupon gives on a subtotal without using it up
// POST /api/v1/coupons/apply
func (ctrl *CouponController) ApplyCoupon(c *gin.Context) {
	var req ApplyCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	discount, err := ctrl.couponService.ApplyCoupon(c.Request.Context(), req.Code, req.Subtotal, ctrl.now())
	if err != nil {
		respondError(c, "Coupon rejected", err, map[string]interface{}{"code": req.Code})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":     req.Code,
		"subtotal": req.Subtotal,
		"discount": discount,
		"total":    req.Subtotal.Sub(discount),
	})
}
